package service

import "github.com/roleta_leads/backend/internal/models"

// FilterEligible returns the subsequence of entries whose seller can receive
// a lead right now: active and not in the absent set. Relative order is
// preserved; an empty result means "no recipient available", which callers
// treat as an expected outcome rather than a queue error.
func FilterEligible(entries []models.QueueEntry, absent map[int64]bool) []models.QueueEntry {
	out := make([]models.QueueEntry, 0, len(entries))
	for _, e := range entries {
		if !e.SellerActive {
			continue
		}
		if absent[e.SellerID] {
			continue
		}
		out = append(out, e)
	}
	return out
}
