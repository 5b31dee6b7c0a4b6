package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/internal/models"
	"github.com/customeros/mailbackup/internal/tracing"
)

type folderMarkerRepository struct {
	db *gorm.DB
}

func NewFolderMarkerRepository(db *gorm.DB) interfaces.FolderMarkerRepository {
	return &folderMarkerRepository{db: db}
}

// GetOrCreate returns the marker for path, reporting whether this call created it.
func (r *folderMarkerRepository) GetOrCreate(ctx context.Context, accountID, path string) (*models.FolderMarker, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderMarkerRepository.GetOrCreate")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)
	span.SetTag("folder.name", path)

	if accountID == "" || path == "" {
		return nil, false, ErrInvalidInput
	}

	marker := &models.FolderMarker{AccountID: accountID, Path: path}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(marker)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return nil, false, result.Error
	}
	created := result.RowsAffected == 1

	var stored models.FolderMarker
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND path = ?", accountID, path).
		First(&stored).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}

	span.SetTag("created", created)
	return &stored, created, nil
}

func (r *folderMarkerRepository) SetIgnore(ctx context.Context, accountID, path string, ignore bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderMarkerRepository.SetIgnore")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	err := r.db.WithContext(ctx).
		Model(&models.FolderMarker{}).
		Where("account_id = ? AND path = ?", accountID, path).
		Update("ignore", ignore).Error
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (r *folderMarkerRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.FolderMarker, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderMarkerRepository.ListByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var markers []*models.FolderMarker
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("path ASC").
		Find(&markers).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return markers, nil
}
