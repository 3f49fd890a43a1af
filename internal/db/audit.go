package db

import (
	"context"

	"github.com/roleta_leads/backend/internal/models"
)

// RecordAssignment appends to the assignment log. The engine never updates
// or deletes rows here.
func (s *Store) RecordAssignment(ctx context.Context, e models.AssignmentLogEntry) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO assignment_log (unit_id, seller_id, lead_id, queue_length, prior_owner, prior_access_lists, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.UnitID, e.SellerID, e.LeadID, e.QueueLength, e.PriorOwner, e.PriorAccessLists, e.CreatedAt)
	return err
}

func (s *Store) ListAssignmentLog(ctx context.Context, unitID int64, limit int) ([]models.AssignmentLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, unit_id, seller_id, lead_id, queue_length, prior_owner, prior_access_lists, created_at
		FROM assignment_log
		WHERE unit_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, unitID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AssignmentLogEntry
	for rows.Next() {
		var e models.AssignmentLogEntry
		if err := rows.Scan(&e.ID, &e.UnitID, &e.SellerID, &e.LeadID, &e.QueueLength, &e.PriorOwner, &e.PriorAccessLists, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
