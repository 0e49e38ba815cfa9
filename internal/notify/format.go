// Package notify renders signals and exit alerts into user-facing
// messages and delivers them over Telegram.
package notify

import (
	"fmt"
	"strings"

	"equity-signal-lab/internal/domain"
)

// FormatSignal renders a final signal as a Telegram HTML message.
func FormatSignal(s *domain.FinalSignal) string {
	c := s.Candidate

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b> %s\n", strings.Repeat("⭐", s.Stars), c.Symbol, c.Direction)
	fmt.Fprintf(&b, "Strategy: %s", c.Strategy)
	if c.Setup != "" {
		fmt.Fprintf(&b, " (%s)", c.Setup)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Entry: %.2f | SL: %.2f\n", c.Entry, c.StopLoss)
	fmt.Fprintf(&b, "T1: %.2f | T2: %.2f\n", c.Target1, c.Target2)
	fmt.Fprintf(&b, "Qty: %d (₹%.0f)\n", s.Quantity, s.CapitalRequired)
	fmt.Fprintf(&b, "Score: %.2f | Rank #%d\n", s.Score, s.Rank)
	fmt.Fprintf(&b, "Valid until %s", s.ExpiresAt.Format("15:04"))
	return b.String()
}

// FormatExitAlert renders an exit or advisory alert as a Telegram HTML
// message.
func FormatExitAlert(a *domain.ExitAlert) string {
	t := a.Trade

	var b strings.Builder
	if a.ExitReason != nil {
		fmt.Fprintf(&b, "🔴 <b>EXIT %s</b> — %s\n", t.Symbol, exitReasonLabel(*a.ExitReason))
	} else {
		fmt.Fprintf(&b, "⚠️ <b>%s</b>\n", t.Symbol)
	}
	fmt.Fprintf(&b, "Price: %.2f | P&L: %+.2f%%\n", a.CurrentPrice, a.PnLPct)
	if a.TrailingSLUpdate != nil {
		fmt.Fprintf(&b, "Stop moved to %.2f\n", *a.TrailingSLUpdate)
	}
	if a.KeyboardHint != "" {
		b.WriteString(a.KeyboardHint)
	}
	return strings.TrimRight(b.String(), "\n")
}

func exitReasonLabel(r domain.ExitReason) string {
	switch r {
	case domain.ExitReasonStopLoss:
		return "stop-loss hit"
	case domain.ExitReasonTrailingSL:
		return "trailing stop hit"
	case domain.ExitReasonTarget2:
		return "target 2 hit"
	case domain.ExitReasonTimeExit:
		return "session close"
	default:
		return string(r)
	}
}
