package sync

import (
	"sort"

	"github.com/user/tally/internal/model"
)

// tieBreakColumns are consulted in order when sorting merged records;
// the first column present in the combined schema decides recency.
var tieBreakColumns = []string{"timestamp", "created_at", "updated_at", "date"}

// Merge combines a local and a remote copy of one table that diverged.
// Records from both sides are sorted ascending by the first available
// tie-break column and deduplicated by id, keeping the later occurrence
// at its sorted position, so the most recent version of each record
// wins and the merged table stays ordered by the tie-break column. When
// either side lacks an id column the rows cannot be correlated, so the
// remote copy is taken wholesale and resolved=false reports the
// unresolved conflict.
func Merge(local, remote *model.Table) (*model.Table, bool) {
	if !local.HasColumn(model.IDColumn) || !remote.HasColumn(model.IDColumn) {
		out := model.NewTable(local.Key, remote.Columns)
		for _, rec := range remote.Records {
			out.Records = append(out.Records, rec.Clone())
		}
		return out, false
	}

	columns := unionColumns(local.Columns, remote.Columns)

	combined := make([]model.Record, 0, len(local.Records)+len(remote.Records))
	for _, rec := range local.Records {
		combined = append(combined, rec.Clone())
	}
	for _, rec := range remote.Records {
		combined = append(combined, rec.Clone())
	}

	if col := pickTieBreak(columns); col != "" {
		sort.SliceStable(combined, func(i, j int) bool {
			return model.CompareValues(combined[i][col], combined[j][col]) < 0
		})
	}

	// Later occurrence wins: earlier sightings of a duplicated id are
	// dropped and the survivor keeps its place in the sorted sequence.
	last := make(map[int64]int, len(combined))
	for i, rec := range combined {
		if id, ok := rec.ID(); ok {
			last[id] = i
		}
	}
	merged := make([]model.Record, 0, len(combined))
	for i, rec := range combined {
		if id, ok := rec.ID(); ok && last[id] != i {
			continue
		}
		merged = append(merged, rec)
	}

	out := model.NewTable(local.Key, columns)
	out.Records = merged
	return out, true
}

// pickTieBreak returns the first tie-break column present in the schema.
func pickTieBreak(columns []string) string {
	has := make(map[string]bool, len(columns))
	for _, c := range columns {
		has[c] = true
	}
	for _, c := range tieBreakColumns {
		if has[c] {
			return c
		}
	}
	return ""
}

// unionColumns merges two column sets, local order first.
func unionColumns(local, remote []string) []string {
	out := make([]string, 0, len(local)+len(remote))
	seen := make(map[string]bool, len(local)+len(remote))
	for _, c := range local {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range remote {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
