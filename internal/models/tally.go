package models

// Tally is the derived vote count for a poll at a point in time.
type Tally struct {
	A     int     `json:"a"`
	B     int     `json:"b"`
	Total int     `json:"total"`
	APct  float64 `json:"a_pct"`
	BPct  float64 `json:"b_pct"`
}

// NewTally builds a Tally from raw counts. A zero total yields 0% on both sides.
func NewTally(a, b int) Tally {
	t := Tally{A: a, B: b, Total: a + b}
	if t.Total > 0 {
		t.APct = float64(a) / float64(t.Total)
		t.BPct = float64(b) / float64(t.Total)
	}
	return t
}
