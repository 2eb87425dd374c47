package model

import "strings"

// DecodeCellKey splits a wire-format "{docId}-{metricId}" key into its
// composite parts using the known metric ids. When several metric ids are
// valid suffixes of the key, the longest one wins so that a metric id that
// happens to be a suffix of another cannot claim its cells. Returns false
// when no known metric id matches.
func DecodeCellKey(key string, metrics []Metric) (CellKey, bool) {
	best := ""
	for _, m := range metrics {
		if m.ID == "" || len(m.ID)+1 > len(key) {
			continue
		}
		if strings.HasSuffix(key, "-"+m.ID) && len(m.ID) > len(best) {
			best = m.ID
		}
	}
	if best == "" {
		return CellKey{}, false
	}
	return CellKey{
		DocID:    key[:len(key)-len(best)-1],
		MetricID: best,
	}, true
}

// DecodeCells converts a wire-format cell map into a composite-key map,
// dropping keys that reference no known metric.
func DecodeCells(cells map[string]Cell, metrics []Metric) map[CellKey]Cell {
	decoded := make(map[CellKey]Cell, len(cells))
	for key, cell := range cells {
		ck, ok := DecodeCellKey(key, metrics)
		if !ok {
			continue
		}
		decoded[ck] = cell
	}
	return decoded
}
