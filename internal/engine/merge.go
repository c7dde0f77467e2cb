package engine

import "github.com/kevin-cantwell/relsql/internal/sql"

// mergeRecords returns all of a in order, followed by the elements of b not
// already present in a, preserving b's relative order. Presence is decided by
// record-value equality; the hash only buckets candidates.
func mergeRecords(a, b []sql.Record) []sql.Record {
	merged := make([]sql.Record, 0, len(a)+len(b))
	merged = append(merged, a...)

	seen := make(map[uint64][]sql.Record, len(a))
	for _, rec := range a {
		h := rec.Hash()
		seen[h] = append(seen[h], rec)
	}

	for _, rec := range b {
		h := rec.Hash()
		if containsRecord(seen[h], rec) {
			continue
		}
		merged = append(merged, rec)
		seen[h] = append(seen[h], rec)
	}

	return merged
}

func containsRecord(bucket []sql.Record, rec sql.Record) bool {
	for _, other := range bucket {
		if rec.Equal(other) {
			return true
		}
	}
	return false
}

// mergeTimes folds src into dst and returns dst. On a key collision within a
// single statement src wins; engines are expected to emit unique stage names
// per call, so callers must not rely on the collision branch.
func mergeTimes(dst, src sql.QueryTimes) sql.QueryTimes {
	if dst == nil {
		dst = make(sql.QueryTimes, len(src))
	}
	for stage, d := range src {
		dst[stage] = d
	}
	return dst
}
