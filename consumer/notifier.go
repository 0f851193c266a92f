package main

import (
	"fmt"
	"io"

	"github.com/observatorio-agua/notifications/pkg/models"
)

// ANSI escape codes for the admin terminal.
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[91m"
	ansiGreen  = "\033[92m"
	ansiYellow = "\033[93m"
	ansiBlue   = "\033[94m"
)

const rule = "======================================================"

// ConsoleNotifier renders incoming notifications for observatory
// administrators. It owns its notification counter; the receive loop passes
// envelopes in and captures nothing else.
type ConsoleNotifier struct {
	out   io.Writer
	count int
}

func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

// Count returns the number of notifications displayed so far.
func (n *ConsoleNotifier) Count() int {
	return n.count
}

func (n *ConsoleNotifier) printHeader() {
	// Clear the screen so the terminal always shows the latest notification.
	fmt.Fprint(n.out, "\033[2J\033[H")
	fmt.Fprintf(n.out, "%s%s%s%s\n", ansiBold, ansiBlue, rule, ansiReset)
	fmt.Fprintf(n.out, "%s%s  WATER QUALITY DATA OBSERVATORY%s\n", ansiBold, ansiBlue, ansiReset)
	fmt.Fprintf(n.out, "%s%s  Administrator Notification System%s\n", ansiBold, ansiBlue, ansiReset)
	fmt.Fprintf(n.out, "%s%s%s%s\n", ansiBold, ansiBlue, rule, ansiReset)
	fmt.Fprintln(n.out, "Connected to broker - listening for notifications...")
	fmt.Fprintf(n.out, "Notifications received: %d\n", n.count)
	fmt.Fprintf(n.out, "%s%s%s%s\n\n", ansiBold, ansiBlue, rule, ansiReset)
}

// Display renders one notification and bumps the counter. The write either
// completes for the whole notification or fails before anything new is shown;
// a failure leaves the previously rendered notification on screen.
func (n *ConsoleNotifier) Display(env models.Envelope) error {
	if n.out == nil {
		return fmt.Errorf("notifier has no output")
	}

	n.count++
	n.printHeader()

	rec := env.Data
	fmt.Fprintf(n.out, "%sNEW DATA UPLOAD DETECTED%s\n", ansiBold, ansiReset)
	fmt.Fprintf(n.out, "%sBatch ID:%s %s\n", ansiBold, ansiReset, rec.BatchID)
	fmt.Fprintf(n.out, "%sDate and time:%s %s\n", ansiBold, ansiReset, rec.Timestamp)
	fmt.Fprintf(n.out, "%sLocation:%s %s\n", ansiBold, ansiReset, rec.Location)
	fmt.Fprintf(n.out, "%sReporting entity:%s %s\n", ansiBold, ansiReset, rec.ReportingEntity)
	fmt.Fprintf(n.out, "\n%sMeasurements:%s\n", ansiBold, ansiReset)

	for i, m := range rec.Measurements {
		color, status := ansiGreen, "Normal"
		if m.ThresholdExceeded {
			color, status = ansiRed, "ALERT"
		}
		fmt.Fprintf(n.out, "  %d. %s: %s%v %s%s - Status: %s%s%s\n",
			i+1, m.Parameter, color, m.Value, m.Unit, ansiReset, color, status, ansiReset)
	}

	if alerts := rec.AlertCount(); alerts > 0 {
		fmt.Fprintf(n.out, "\n%s%sATTENTION! %d parameter(s) exceed permissible limits.%s\n",
			ansiBold, ansiRed, alerts, ansiReset)
		fmt.Fprintf(n.out, "%sAdministrator review required.%s\n", ansiYellow, ansiReset)
	}

	fmt.Fprintf(n.out, "\n%s%s%s%s\n", ansiBold, ansiBlue, rule, ansiReset)
	fmt.Fprintln(n.out, "Waiting for new notifications... (Ctrl+C to exit)")
	return nil
}
