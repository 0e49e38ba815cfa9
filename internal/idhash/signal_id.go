package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeSignalID computes a deterministic signal_id using SHA256.
// Formula: SHA256(symbol|strategy|setup|generated_at_unix_ms)
// Returns hex-encoded hash (64 characters).
func ComputeSignalID(symbol, strategy, setup string, generatedAt time.Time) string {
	data := fmt.Sprintf("%s|%s|%s|%d", symbol, strategy, setup, generatedAt.UnixMilli())
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(signal_id|symbol|entered_at_unix_ms)
func ComputeTradeID(signalID, symbol string, enteredAt time.Time) string {
	data := fmt.Sprintf("%s|%s|%d", signalID, symbol, enteredAt.UnixMilli())
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
