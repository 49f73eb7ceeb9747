package audit

import (
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatEntries renders audit entries as a human-readable text timeline,
// most recent last.
func FormatEntries(entries []Entry) string {
	if len(entries) == 0 {
		return "No entries found.\n"
	}

	var b strings.Builder

	first := formatDate(entries[0].Timestamp)
	last := formatTimeOnly(entries[len(entries)-1].Timestamp)
	b.WriteString(fmt.Sprintf("%d entries | %s–%s UTC\n", len(entries), first, last))
	b.WriteString(separator + "\n")

	for _, e := range entries {
		ts := formatTimeOnly(e.Timestamp)
		op := strings.ToUpper(e.Op)
		project := truncate(e.Project, 32)
		target := truncate(e.Target, 24)

		levels := ""
		if e.Op == "protect" {
			if e.Category == "tag" {
				levels = "create=" + e.Push
			} else {
				levels = fmt.Sprintf("merge=%s push=%s", e.Merge, e.Push)
			}
		}

		b.WriteString(fmt.Sprintf("%-10s %-11s %-7s %-32s %-24s %s\n",
			ts, op, e.Category, project, target, levels))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatCounts(entries))

	return b.String()
}

func formatCounts(entries []Entry) string {
	var protects, unprotects int
	runs := map[string]bool{}
	for _, e := range entries {
		switch e.Op {
		case "protect":
			protects++
		case "unprotect":
			unprotects++
		}
		if e.RunID != "" {
			runs[e.RunID] = true
		}
	}
	return fmt.Sprintf("Summary: %d protect, %d unprotect across %d runs\n",
		protects, unprotects, len(runs))
}

func formatDate(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
