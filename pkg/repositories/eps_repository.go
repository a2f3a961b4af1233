package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/medialert/medialert-engine/pkg/database"
	"github.com/medialert/medialert-engine/pkg/models"
)

// EPSRepository reads the insurer catalog. The catalog is maintained by
// migrations, so there are no write methods and nothing here is audited.
type EPSRepository interface {
	// ListActive returns active insurers ordered by name.
	ListActive(ctx context.Context) ([]*models.EPS, error)
	GetByID(ctx context.Context, id int64) (*models.EPS, error)
}

type epsRepository struct{}

// NewEPSRepository creates a new EPS repository.
func NewEPSRepository() EPSRepository {
	return &epsRepository{}
}

var _ EPSRepository = (*epsRepository)(nil)

func (r *epsRepository) ListActive(ctx context.Context) ([]*models.EPS, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx,
		"SELECT id, name, nit, status FROM eps WHERE status = $1 ORDER BY name",
		models.EPSStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list eps: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[models.EPS])
	if err != nil {
		return nil, fmt.Errorf("failed to scan eps: %w", err)
	}
	return list, nil
}

func (r *epsRepository) GetByID(ctx context.Context, id int64) (*models.EPS, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var e models.EPS
	err := scope.Conn.QueryRow(ctx, "SELECT id, name, nit, status FROM eps WHERE id = $1", id).
		Scan(&e.ID, &e.Name, &e.NIT, &e.Status)
	if err != nil {
		return nil, translateError("get eps", err)
	}
	return &e, nil
}
