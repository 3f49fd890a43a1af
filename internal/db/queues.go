package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/roleta_leads/backend/internal/models"
)

func (s *Store) GetUnit(ctx context.Context, unitID int64) (models.Unit, error) {
	var u models.Unit
	err := s.Pool.QueryRow(ctx,
		`SELECT id, name, department_ref, active FROM units WHERE id = $1`,
		unitID,
	).Scan(&u.ID, &u.Name, &u.DepartmentRef, &u.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Unit{}, ErrUnitNotFound
	}
	return u, err
}

func (s *Store) ListUnits(ctx context.Context) ([]models.Unit, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, department_ref, active FROM units ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Unit
	for rows.Next() {
		var u models.Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.DepartmentRef, &u.Active); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// EnrollUnit creates an empty queue of the given kind for the unit. Enrolling
// an already enrolled unit is a no-op.
func (s *Store) EnrollUnit(ctx context.Context, unitID int64, kind models.QueueKind) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO queues (unit_id, kind, version)
		VALUES ($1, $2, 1)
		ON CONFLICT (unit_id, kind) DO NOTHING
	`, unitID, kind)
	return err
}

func (s *Store) UnenrollUnit(ctx context.Context, unitID int64, kind models.QueueKind) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		var queueID int64
		err := tx.QueryRow(ctx, `SELECT id FROM queues WHERE unit_id = $1 AND kind = $2`, unitID, kind).Scan(&queueID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQueueNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM queue_entries WHERE queue_id = $1`, queueID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM queues WHERE id = $1`, queueID)
		return err
	})
}

func (s *Store) LoadQueue(ctx context.Context, unitID int64, kind models.QueueKind) (models.Queue, error) {
	var q models.Queue
	err := s.Pool.QueryRow(ctx,
		`SELECT id, unit_id, kind, version FROM queues WHERE unit_id = $1 AND kind = $2`,
		unitID, kind,
	).Scan(&q.ID, &q.UnitID, &q.Kind, &q.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Queue{}, ErrQueueNotFound
	}
	if err != nil {
		return models.Queue{}, err
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT e.seller_id, e.seq, s.name, s.active
		FROM queue_entries e
		JOIN sellers s ON s.id = e.seller_id
		WHERE e.queue_id = $1
		ORDER BY e.seq ASC
	`, q.ID)
	if err != nil {
		return models.Queue{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var e models.QueueEntry
		if err := rows.Scan(&e.SellerID, &e.Seq, &e.SellerName, &e.SellerActive); err != nil {
			return models.Queue{}, err
		}
		q.Entries = append(q.Entries, e)
	}
	return q, rows.Err()
}

// ReplaceQueue swaps the full entry set for the queue, renumbering seq as
// 1..N in the given order. The version check makes the write a compare-and-
// swap: a concurrent writer that committed first leaves the stored version
// ahead of expectedVersion and this call fails with ErrVersionConflict.
func (s *Store) ReplaceQueue(ctx context.Context, queueID int64, sellerIDs []int64, expectedVersion int64) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE queues SET version = version + 1 WHERE id = $1 AND version = $2`,
			queueID, expectedVersion,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrVersionConflict
		}
		if _, err := tx.Exec(ctx, `DELETE FROM queue_entries WHERE queue_id = $1`, queueID); err != nil {
			return err
		}
		rows := make([][]any, 0, len(sellerIDs))
		for i, sellerID := range sellerIDs {
			rows = append(rows, []any{queueID, sellerID, i + 1})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"queue_entries"},
			[]string{"queue_id", "seller_id", "seq"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
}
