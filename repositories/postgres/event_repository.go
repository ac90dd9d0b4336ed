package postgres

import (
	"context"
	"fmt"

	"github.com/openclaims/coverd/models"
	"github.com/openclaims/coverd/repositories"
	"go.uber.org/zap"
)

// EventRepository implements the repositories.EventRepository interface
type EventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB, logger *zap.Logger) repositories.EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new event
func (r *EventRepository) Insert(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (id, kind, policy_id, payload, request_id, emitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		event.ID,
		event.Kind,
		event.PolicyID,
		event.Payload,
		event.RequestID,
		event.EmittedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	r.logger.Debug("event inserted",
		zap.String("id", event.ID.String()),
		zap.String("kind", string(event.Kind)))
	return nil
}

// ListByPolicy retrieves events for a policy with pagination, oldest first
func (r *EventRepository) ListByPolicy(ctx context.Context, id models.PolicyID, limit, offset int) ([]*models.Event, error) {
	query := `
		SELECT id, kind, policy_id, payload, request_id, emitted_at
		FROM events
		WHERE policy_id = $1
		ORDER BY emitted_at ASC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event := &models.Event{}
		err := rows.Scan(
			&event.ID,
			&event.Kind,
			&event.PolicyID,
			&event.Payload,
			&event.RequestID,
			&event.EmittedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return events, nil
}
