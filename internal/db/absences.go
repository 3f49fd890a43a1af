package db

import (
	"context"
	"errors"
	"time"

	"github.com/roleta_leads/backend/internal/models"
)

var ErrAbsenceNotFound = errors.New("absence not found")

func (s *Store) AddAbsence(ctx context.Context, a models.Absence) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO absences (seller_id, starts_at, ends_at, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, a.SellerID, a.Start, a.End, a.Reason).Scan(&id)
	return id, err
}

func (s *Store) RemoveAbsence(ctx context.Context, absenceID int64) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM absences WHERE id = $1`, absenceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAbsenceNotFound
	}
	return nil
}

// AbsentSellers returns the subset of sellerIDs with an absence window
// covering at. Overlapping windows for the same seller both count.
func (s *Store) AbsentSellers(ctx context.Context, sellerIDs []int64, at time.Time) (map[int64]bool, error) {
	if len(sellerIDs) == 0 {
		return map[int64]bool{}, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT DISTINCT seller_id FROM absences
		WHERE seller_id = ANY($1) AND starts_at <= $2 AND ends_at >= $2
	`, sellerIDs, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]bool{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (s *Store) ListAbsencesForUnit(ctx context.Context, unitID int64) ([]models.Absence, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT a.id, a.seller_id, a.starts_at, a.ends_at, a.reason
		FROM absences a
		JOIN sellers s ON s.id = a.seller_id
		WHERE s.unit_id = $1
		ORDER BY a.starts_at DESC, a.id DESC
	`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Absence
	for rows.Next() {
		var a models.Absence
		if err := rows.Scan(&a.ID, &a.SellerID, &a.Start, &a.End, &a.Reason); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
