package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	domainerrors "coolrouter/contexts/oracle-routing/request-broker/domain/errors"
	"coolrouter/contexts/oracle-routing/request-broker/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateRequestWithOutbox(ctx context.Context, request entities.Request, event ports.EventEnvelope) error {
	row, err := requestModelFromEntity(request, request.CreatedAt)
	if err != nil {
		return err
	}
	outboxRow, err := outboxModelFromEnvelope(event)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRequestExists
			}
			return r.logError("broker_repo_create_request_failed", err, "request_id", request.ID)
		}
		if err := tx.Create(&outboxRow).Error; err != nil {
			return r.logError("broker_repo_create_outbox_failed", err, "request_id", request.ID)
		}
		return nil
	})
}

func (r *Repository) GetRequest(ctx context.Context, requestID string) (entities.Request, error) {
	var row requestModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(requestID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Request{}, domainerrors.ErrRequestNotFound
		}
		return entities.Request{}, r.logError("broker_repo_get_request_failed", err, "request_id", requestID)
	}
	return row.toEntity()
}

func (r *Repository) UpdateRequestWithOutbox(ctx context.Context, request entities.Request, events []ports.EventEnvelope) error {
	row, err := requestModelFromEntity(request, time.Now().UTC())
	if err != nil {
		return err
	}
	outboxRows := make([]outboxModel, 0, len(events))
	for _, event := range events {
		outboxRow, err := outboxModelFromEnvelope(event)
		if err != nil {
			return err
		}
		outboxRows = append(outboxRows, outboxRow)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&requestModel{}).
			Where("id = ?", row.ID).
			Updates(map[string]any{
				"status":           row.Status,
				"votes":            row.Votes,
				"total_votes_cast": row.TotalVotesCast,
				"winning_hash":     row.WinningHash,
				"updated_at":       row.UpdatedAt,
			})
		if result.Error != nil {
			return r.logError("broker_repo_update_request_failed", result.Error, "request_id", request.ID)
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrRequestNotFound
		}
		for i := range outboxRows {
			if err := tx.Create(&outboxRows[i]).Error; err != nil {
				return r.logError("broker_repo_update_outbox_failed", err, "request_id", request.ID)
			}
		}
		return nil
	})
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("broker_repo_list_outbox_failed", err)
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			CreatedAt:    row.CreatedAt,
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("id = ?", outboxID).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		}).
		Error
	if err != nil {
		return r.logError("broker_repo_mark_outbox_failed", err, "outbox_id", outboxID)
	}
	return nil
}

func outboxModelFromEnvelope(event ports.EventEnvelope) (outboxModel, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return outboxModel{}, err
	}
	return outboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    event.OccurredAt.UTC(),
	}, nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "oracle-routing/request-broker",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("request broker repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
