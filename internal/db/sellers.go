package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/roleta_leads/backend/internal/models"
)

var ErrSellerNotFound = errors.New("seller not found")

func (s *Store) GetSeller(ctx context.Context, sellerID int64) (models.Seller, error) {
	var out models.Seller
	err := s.Pool.QueryRow(ctx,
		`SELECT id, name, unit_id, active FROM sellers WHERE id = $1`,
		sellerID,
	).Scan(&out.ID, &out.Name, &out.UnitID, &out.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Seller{}, ErrSellerNotFound
	}
	return out, err
}

func (s *Store) ListSellers(ctx context.Context, unitID int64) ([]models.Seller, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, name, unit_id, active FROM sellers WHERE unit_id = $1 ORDER BY name ASC, id ASC`,
		unitID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Seller
	for rows.Next() {
		var sl models.Seller
		if err := rows.Scan(&sl.ID, &sl.Name, &sl.UnitID, &sl.Active); err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}
