package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gallery/internal/domain"
)

// ProfileRepositoryPG implements domain.ProfileRepository using PostgreSQL.
type ProfileRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewProfileRepository constructs a new output profile repository instance.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepositoryPG {
	return &ProfileRepositoryPG{pool: pool}
}

// GetByID fetches an output profile by its identifier.
func (r *ProfileRepositoryPG) GetByID(ctx context.Context, id string) (*domain.OutputProfile, error) {
	query := `
SELECT id, name, width, height, quality, format, max_file_size_kb, maintain_aspect, letterbox, letterbox_color
FROM output_profiles
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var p domain.OutputProfile
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Width,
		&p.Height,
		&p.Quality,
		&p.Format,
		&p.MaxFileSizeKB,
		&p.MaintainAspect,
		&p.Letterbox,
		&p.LetterboxColor,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
