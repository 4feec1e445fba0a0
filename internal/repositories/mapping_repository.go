package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/flowtask/taskd/internal/models"
)

type MappingRepository interface {
	// FindByProject returns the active mapping of a project, or nil.
	FindByProject(ctx context.Context, userID, projectID string) (*models.TaskListMapping, error)
	ListActive(ctx context.Context) ([]models.TaskListMapping, error)
	TouchSynced(ctx context.Context, userID, id string, at time.Time) error
}

type mappingRepository struct {
	db dbtx
}

func NewMappingRepository(db *sql.DB) MappingRepository {
	return &mappingRepository{db: db}
}

const mappingColumns = `id, user_id, project_id, provider_id, source, external_list_id, is_active, last_synced_at, created_at`

func scanMapping(row rowScanner) (*models.TaskListMapping, error) {
	m := &models.TaskListMapping{}
	err := row.Scan(&m.ID, &m.UserID, &m.ProjectID, &m.ProviderID, &m.Source,
		&m.ExternalListID, &m.IsActive, &m.LastSyncedAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *mappingRepository) FindByProject(ctx context.Context, userID, projectID string) (*models.TaskListMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM task_list_mappings
		WHERE project_id = $1 AND user_id = $2 AND is_active
		ORDER BY created_at ASC LIMIT 1`
	m, err := scanMapping(r.db.QueryRowContext(ctx, query, projectID, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find mapping by project: %w", err)
	}
	return m, nil
}

// ListActive is used by the sync worker, which runs on behalf of every user.
func (r *mappingRepository) ListActive(ctx context.Context) ([]models.TaskListMapping, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+mappingColumns+` FROM task_list_mappings
		WHERE is_active ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var out []models.TaskListMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *mappingRepository) TouchSynced(ctx context.Context, userID, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE task_list_mappings SET last_synced_at = $1 WHERE id = $2 AND user_id = $3`, at, id, userID)
	if err != nil {
		return fmt.Errorf("touch mapping: %w", err)
	}
	return nil
}
