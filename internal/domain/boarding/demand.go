package boarding

import "strings"

// LineDemand is the per-line tally of confirmed boardings (`line_demand` table).
type LineDemand struct {
	LineID             string `json:"line_id"`
	TotalConfirmations uint64 `json:"total_confirmations"`
}

// NormalizeLineKey trims and upper-cases a line identifier before it is used as a
// demand key, so "x" and "X" share one counter.
func NormalizeLineKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
