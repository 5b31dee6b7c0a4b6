package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/internal/models"
	"github.com/customeros/mailbackup/internal/tracing"
)

type archivedEmailRepository struct {
	db *gorm.DB
}

func NewArchivedEmailRepository(db *gorm.DB) interfaces.ArchivedEmailRepository {
	return &archivedEmailRepository{db: db}
}

// FilterByIdentity finds the archived copy of messageID, nil if there is none.
func (r *archivedEmailRepository) FilterByIdentity(ctx context.Context, accountID, messageID string) (*models.ArchivedEmail, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "archivedEmailRepository.FilterByIdentity")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)
	span.SetTag("message.id", messageID)

	var email models.ArchivedEmail
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND message_id = ?", accountID, messageID).
		First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, classifyDataError(err)
	}
	return &email, nil
}

// GetOrCreateByIdentity inserts email unless (account, message id) is already stored.
// On conflict the stored row is returned and created is false.
func (r *archivedEmailRepository) GetOrCreateByIdentity(ctx context.Context, email *models.ArchivedEmail) (*models.ArchivedEmail, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "archivedEmailRepository.GetOrCreateByIdentity")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if email == nil || email.AccountID == "" || email.MessageID == "" {
		return nil, false, ErrInvalidInput
	}
	tracing.TagAccount(span, email.AccountID)
	span.SetTag("message.id", email.MessageID)

	result := r.db.WithContext(ctx).
		Omit("Folders").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "message_id"}},
			DoNothing: true,
		}).
		Create(email)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return nil, false, classifyDataError(result.Error)
	}
	if result.RowsAffected == 1 {
		tracing.TagEntity(span, email.ID)
		return email, true, nil
	}

	stored, err := r.FilterByIdentity(ctx, email.AccountID, email.MessageID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}
	if stored == nil {
		err = gorm.ErrRecordNotFound
		tracing.TraceErr(span, err)
		return nil, false, err
	}
	span.SetTag("duplicate", true)
	return stored, false, nil
}

// AssociateFolder links email to folder. Linking twice is a no-op.
func (r *archivedEmailRepository) AssociateFolder(ctx context.Context, email *models.ArchivedEmail, folder *models.FolderMarker) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "archivedEmailRepository.AssociateFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if email == nil || folder == nil {
		return ErrInvalidInput
	}
	tracing.TagEntity(span, email.ID)
	span.SetTag("folder.name", folder.Path)

	err := r.db.WithContext(ctx).
		Model(email).
		Omit("Folders.*").
		Association("Folders").
		Append(folder)
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (r *archivedEmailRepository) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "archivedEmailRepository.CountByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ArchivedEmail{}).
		Where("account_id = ?", accountID).
		Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}
