// Package dedup collapses repeated observations, within one run and across
// the batch files of several runs.
package dedup

import (
	"github.com/FranksOps/dugout/internal/storage"
)

// Records keeps the first record for every (text, permalink) key, in input
// order, and sets CharLen on each survivor. Survivors are copies, so the
// caller's records are never modified. Applying Records to its own output
// returns an equal list.
func Records(records []*storage.Record) []*storage.Record {
	out, _ := collapse(records)
	return out
}

// collapse is Records that also reports how many inputs were dropped.
func collapse(records []*storage.Record) ([]*storage.Record, int) {
	seen := make(map[storage.Key]struct{}, len(records))
	out := make([]*storage.Record, 0, len(records))
	dropped := 0
	for _, r := range records {
		if r == nil {
			continue
		}
		k := r.Key()
		if _, dup := seen[k]; dup {
			dropped++
			continue
		}
		seen[k] = struct{}{}

		cp := *r
		cp.CharLen = cp.TextLen()
		out = append(out, &cp)
	}
	return out, dropped
}
