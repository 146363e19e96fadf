package report

import (
	"fmt"
	"io"
	"strings"
)

const rule = "--------------------------------"

// Render writes the human-readable report.
func Render(w io.Writer, r *Report) error {
	var b strings.Builder

	section(&b, "Uptime report (by total requests)")
	fmt.Fprintf(&b, "Total requests: %d\n", r.Total)
	fmt.Fprintf(&b, "Uptime (HTTP %d): %.2f%% (%d/%d)\n", HealthyStatus, r.Uptime, r.Healthy, r.Total)
	b.WriteString("\n")
	b.WriteString("Status breakdown:\n")
	for _, s := range r.Status {
		fmt.Fprintf(&b, "- %d: %d (%.2f%%)\n", s.Status, s.Count, s.Percent)
	}

	section(&b, "Uptime report (by observed time)")
	fmt.Fprintf(&b, "Window: %s -> %s\n", FormatISO(r.WindowStart), FormatISO(r.WindowEnd))
	fmt.Fprintf(&b, "Total monitoring time: %.2f minutes\n", r.Window.Minutes())
	if r.TimeUptimeOK {
		fmt.Fprintf(&b, "Uptime (HTTP %d): %.2f%%\n", HealthyStatus, r.TimeUptime)
	} else {
		fmt.Fprintf(&b, "Uptime (HTTP %d): N/A\n", HealthyStatus)
		if r.Total < 2 {
			b.WriteString("Note: need at least 2 log entries to compute time-based uptime.\n")
		} else {
			b.WriteString("Note: all log entries share one timestamp; no time was observed.\n")
		}
	}
	b.WriteString(rule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderNoData writes the short-circuit message for an empty log.
func RenderNoData(w io.Writer) error {
	var b strings.Builder
	section(&b, "Uptime report")
	b.WriteString("No data found in request_logs. Run the monitor first (uptimeprobe monitor).\n")
	b.WriteString(rule + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func section(b *strings.Builder, title string) {
	b.WriteString(rule + "\n")
	b.WriteString(title + "\n")
	b.WriteString(rule + "\n")
}
