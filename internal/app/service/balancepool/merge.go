package balancepool

import "balance_pool/internal/domain/entity"

type mergeResult struct {
	upserts []entity.BalanceRecord
	removed []string
}

func (m mergeResult) changed() bool {
	return len(m.upserts) > 0 || len(m.removed) > 0
}

// mergeBalances diffs incoming records against current. Unknown zero records
// are ignored, unchanged records are skipped, records that become zero are
// removed and everything else replaces the stored value. When a batch carries
// the same identity twice the last record wins.
func mergeBalances(current map[string]entity.BalanceRecord, incoming []entity.BalanceRecord) mergeResult {
	latest := make(map[string]entity.BalanceRecord, len(incoming))
	order := make([]string, 0, len(incoming))
	for _, r := range incoming {
		id := r.ID()
		if _, seen := latest[id]; !seen {
			order = append(order, id)
		}
		latest[id] = r
	}

	var res mergeResult
	for _, id := range order {
		r := latest[id]
		existing, known := current[id]
		switch {
		case r.IsZero() && !known:
		case r.IsZero():
			res.removed = append(res.removed, id)
		case known && existing.Equal(r):
		default:
			res.upserts = append(res.upserts, r)
		}
	}
	return res
}

func (m mergeResult) apply(current map[string]entity.BalanceRecord) {
	for _, id := range m.removed {
		delete(current, id)
	}
	for _, r := range m.upserts {
		current[r.ID()] = r
	}
}
