package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/internal/models"
	"github.com/customeros/mailbackup/internal/tracing"
)

type syncRunRepository struct {
	db *gorm.DB
}

func NewSyncRunRepository(db *gorm.DB) interfaces.SyncRunRepository {
	return &syncRunRepository{db: db}
}

func (r *syncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncRunRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if run == nil {
		return ErrInvalidInput
	}
	tracing.TagAccount(span, run.AccountID)

	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, run.ID)
	return nil
}

// ListByAccount returns the latest runs first
func (r *syncRunRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.SyncRun, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncRunRepository.ListByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	if limit <= 0 {
		limit = 20
	}

	var runs []*models.SyncRun
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return runs, nil
}
