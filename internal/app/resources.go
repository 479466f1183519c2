package app

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// PG also serves as the ResourceDirectory. Inventory management lives
// upstream; this side only resolves names and clears the booked flag.

func (p *PG) Resource(ctx context.Context, id int64) (*Resource, error) {
	q := `SELECT r.id, r.name, rt.name, r.is_booked
	      FROM resources r JOIN resource_types rt ON rt.id = r.resource_type_id
	      WHERE r.id=$1`
	var res Resource
	err := p.db.QueryRow(ctx, q, id).Scan(&res.ID, &res.Name, &res.TypeName, &res.IsBooked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResourceNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &res, nil
}

func (p *PG) ClearBooked(ctx context.Context, id int64) (*Resource, error) {
	q := `UPDATE resources r SET is_booked=false
	      FROM resource_types rt
	      WHERE r.id=$1 AND rt.id = r.resource_type_id
	      RETURNING r.id, r.name, rt.name, r.is_booked`
	var res Resource
	err := p.db.QueryRow(ctx, q, id).Scan(&res.ID, &res.Name, &res.TypeName, &res.IsBooked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResourceNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &res, nil
}
