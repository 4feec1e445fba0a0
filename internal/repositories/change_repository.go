package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/flowtask/taskd/internal/models"
)

// ChangeRepository persists the append-only task change log.
type ChangeRepository interface {
	Append(ctx context.Context, change *models.TaskChange) error
	// ListPending returns unsynced entries of a mapping, oldest first.
	ListPending(ctx context.Context, userID, mappingID string, limit int) ([]models.TaskChange, error)
	MarkSynced(ctx context.Context, userID string, ids []string, providerID string, at time.Time) error
}

type changeRepository struct {
	db dbtx
}

func NewChangeRepository(db *sql.DB) ChangeRepository {
	return &changeRepository{db: db}
}

func (r *changeRepository) Append(ctx context.Context, change *models.TaskChange) error {
	data, err := json.Marshal(change.ChangeData)
	if err != nil {
		return fmt.Errorf("encode change data: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO task_changes (id, task_id, change_type, user_id, change_data, provider_id, mapping_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		change.ID, change.TaskID, string(change.ChangeType), change.UserID, string(data),
		change.ProviderID, change.MappingID, change.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task change: %w", err)
	}
	return nil
}

func (r *changeRepository) ListPending(ctx context.Context, userID, mappingID string, limit int) ([]models.TaskChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, change_type, user_id, change_data, provider_id, mapping_id, created_at, synced_at
		FROM task_changes
		WHERE mapping_id = $1 AND user_id = $2 AND synced_at IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT $3`, mappingID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending changes: %w", err)
	}
	defer rows.Close()

	var out []models.TaskChange
	for rows.Next() {
		var c models.TaskChange
		var raw []byte
		if err := rows.Scan(&c.ID, &c.TaskID, &c.ChangeType, &c.UserID, &raw,
			&c.ProviderID, &c.MappingID, &c.CreatedAt, &c.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan task change: %w", err)
		}
		if err := json.Unmarshal(raw, &c.ChangeData); err != nil {
			return nil, fmt.Errorf("decode change data %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *changeRepository) MarkSynced(ctx context.Context, userID string, ids []string, providerID string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE task_changes SET synced_at = $1, provider_id = $2
		WHERE id = ANY($3) AND user_id = $4`, at, providerID, pq.Array(ids), userID)
	if err != nil {
		return fmt.Errorf("mark changes synced: %w", err)
	}
	return nil
}
