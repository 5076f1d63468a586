package repository

import (
	"context"

	"geoimport_backend/internal/crs"
)

// LoadVerticalDatums reads the vertical datum reference table. Rows keep
// their declaration order so the range fallback stays deterministic.
func (r *Repository) LoadVerticalDatums(ctx context.Context) ([]crs.VerticalDatumRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT srid, srid_min, srid_max, datum_name, datum_type, transformation_method
		FROM vertical_datum_refs
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make([]crs.VerticalDatumRef, 0)
	for rows.Next() {
		var (
			ref  crs.VerticalDatumRef
			srid *int
		)
		if err := rows.Scan(&srid, &ref.SRIDMin, &ref.SRIDMax, &ref.DatumName, &ref.Type, &ref.Method); err != nil {
			return nil, err
		}
		if srid != nil {
			ref.SRID = *srid
		}
		refs = append(refs, ref)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return refs, nil
}
