package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/internal/models"
	"github.com/customeros/mailbackup/internal/tracing"
)

type emailAccountRepository struct {
	db *gorm.DB
}

func NewEmailAccountRepository(db *gorm.DB) interfaces.EmailAccountRepository {
	return &emailAccountRepository{db: db}
}

// GetByID returns nil when the account does not exist
func (r *emailAccountRepository) GetByID(ctx context.Context, id string) (*models.EmailAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, id)

	var account models.EmailAccount
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &account, nil
}

func (r *emailAccountRepository) ListSyncEnabled(ctx context.Context) ([]*models.EmailAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.ListSyncEnabled")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []*models.EmailAccount
	result := r.db.WithContext(ctx).
		Where("sync = ?", true).
		Order("created_at ASC").
		Find(&accounts)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return nil, result.Error
	}
	span.SetTag("accounts.count", len(accounts))
	return accounts, nil
}

func (r *emailAccountRepository) Create(ctx context.Context, account *models.EmailAccount) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if account == nil {
		return ErrInvalidInput
	}

	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagAccount(span, account.ID)
	return nil
}
