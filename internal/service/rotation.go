package service

import "github.com/roleta_leads/backend/internal/models"

// Rotate computes the queue order after promote moves to the tail. All other
// entries keep their relative order and slide down one position, so the
// persisted seq values stay contiguous from 1. Rotation always works on the
// raw queue: ineligible sellers that were skipped keep their slots.
func Rotate(entries []models.QueueEntry, promote int64) []int64 {
	out := make([]int64, 0, len(entries))
	found := false
	for _, e := range entries {
		if e.SellerID == promote {
			found = true
			continue
		}
		out = append(out, e.SellerID)
	}
	if found {
		out = append(out, promote)
	}
	return out
}

func sellerIDs(entries []models.QueueEntry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.SellerID)
	}
	return out
}
