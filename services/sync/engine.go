package sync

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/customeros/mailbackup/config"
	"github.com/customeros/mailbackup/dto"
	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/internal/enum"
	mberrors "github.com/customeros/mailbackup/internal/errors"
	"github.com/customeros/mailbackup/internal/logger"
	"github.com/customeros/mailbackup/internal/models"
	"github.com/customeros/mailbackup/internal/repository"
	"github.com/customeros/mailbackup/internal/tracing"
	"github.com/customeros/mailbackup/internal/utils"
	"github.com/customeros/mailbackup/services/connector"
	"github.com/customeros/mailbackup/services/decoder"
	"github.com/customeros/mailbackup/services/storage"
)

// ConnectorFactory builds an unopened connector for account.
type ConnectorFactory func(account *models.EmailAccount, log logger.Logger) (interfaces.MailConnector, error)

type Engine struct {
	cfg       *config.SyncConfig
	log       logger.Logger
	repos     *repository.Repositories
	storage   interfaces.StorageService
	publisher interfaces.EventPublisher
	decoder   *decoder.Decoder
	connect   ConnectorFactory
	now       func() time.Time
}

func NewEngine(cfg *config.SyncConfig, log logger.Logger, repos *repository.Repositories,
	storage interfaces.StorageService, publisher interfaces.EventPublisher) *Engine {
	return &Engine{
		cfg:       cfg,
		log:       log,
		repos:     repos,
		storage:   storage,
		publisher: publisher,
		decoder:   decoder.NewDecoder(log),
		connect:   connector.New,
		now:       utils.Now,
	}
}

// SyncAccount runs one backup pass over every folder of account. The returned summary is
// never nil; the error is set only for failed runs.
func (e *Engine) SyncAccount(ctx context.Context, account *models.EmailAccount) (*dto.RunSummary, error) {
	summary := &dto.RunSummary{
		RunID:     utils.GenerateUUID(),
		AccountID: account.ID,
		StartedAt: e.now(),
	}
	ctx = utils.SetAccountInContext(ctx, account.ID, summary.RunID)

	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncEngine.SyncAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	e.log.Infof("Syncing %s", account)
	err := e.syncAccount(ctx, account, summary)
	summary.FinishedAt = e.now()
	if err != nil {
		tracing.TraceErr(span, err)
		summary.Outcome = enum.SyncOutcomeFailed
		summary.AddError(err)
		e.log.Errorf("Sync of %s failed: %v", account, err)
	} else {
		e.log.Infof("Sync of %s finished: %s, %d new, %d duplicates, %d undecodable",
			account, summary.Outcome, summary.NewMessages, summary.Duplicates, summary.DecodeFailures)
	}
	span.LogKV("outcome", summary.Outcome.String())

	e.recordRun(context.WithoutCancel(ctx), summary)
	return summary, err
}

func (e *Engine) SyncAccountByID(ctx context.Context, accountID string) (*dto.RunSummary, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncEngine.SyncAccountByID")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	account, err := e.repos.EmailAccountRepository.GetByID(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if account == nil {
		err = errors.Wrap(mberrors.ErrAccountNotFound, accountID)
		tracing.TraceErr(span, err)
		return nil, err
	}

	return e.SyncAccount(ctx, account)
}

// SyncAll runs every sync-enabled account, each over its own session. Per-account failures
// are reported in the summaries only.
func (e *Engine) SyncAll(ctx context.Context) ([]*dto.RunSummary, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncEngine.SyncAll")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	accounts, err := e.repos.EmailAccountRepository.ListSyncEnabled(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.LogKV("accounts", len(accounts))

	limit := e.cfg.MaxParallelAccounts
	if limit <= 0 {
		limit = 1
	}

	summaries := make([]*dto.RunSummary, len(accounts))
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for i, account := range accounts {
		g.Go(func() error {
			summaries[i], _ = e.SyncAccount(ctx, account)
			return nil
		})
	}
	_ = g.Wait()

	return summaries, nil
}

func (e *Engine) syncAccount(ctx context.Context, account *models.EmailAccount, summary *dto.RunSummary) error {
	if !account.Sync {
		summary.Outcome = enum.SyncOutcomeSkipped
		return nil
	}

	conn, err := e.connect(account, e.log)
	if err != nil {
		return err
	}
	if err := conn.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			e.log.Warnf("Closing session of %s: %v", account, err)
		}
	}()

	filter := interfaces.SearchFilter{OnlyRead: account.JustRead}
	if account.WeeksBefore > 0 {
		filter.Before = utils.StartOfDay(e.now()).AddDate(0, 0, -7*account.WeeksBefore)
	}

	folders, err := conn.Directories(ctx)
	if err != nil {
		return err
	}

	for _, folder := range folders {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		marker, created, err := e.repos.FolderMarkerRepository.GetOrCreate(ctx, account.ID, folder)
		if err != nil {
			return errors.Wrapf(err, "folder marker %s", folder)
		}
		if created {
			e.log.Infof("Registered folder %s of %s", folder, account)
			summary.FoldersRegistered++
			continue
		}
		if marker.Ignore {
			summary.FoldersIgnored++
			continue
		}

		if err := e.syncFolder(ctx, conn, account, marker, filter, summary); err != nil {
			if ctx.Err() != nil {
				summary.Cancelled = true
				break
			}
			return errors.Wrapf(err, "folder %s", folder)
		}
		if summary.Cancelled {
			break
		}
		summary.FoldersSwept++
	}

	switch {
	case summary.Cancelled || summary.DecodeFailures > 0:
		summary.Outcome = enum.SyncOutcomePartial
	default:
		summary.Outcome = enum.SyncOutcomeSuccess
	}
	return nil
}

func (e *Engine) syncFolder(ctx context.Context, conn interfaces.MailConnector, account *models.EmailAccount,
	marker *models.FolderMarker, filter interfaces.SearchFilter, summary *dto.RunSummary) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncEngine.syncFolder")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("folder", marker.Path)

	ids, err := conn.EnumerateIDs(ctx, marker.Path, filter)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	for id := range ids {
		if ctx.Err() != nil {
			summary.Cancelled = true
			return nil
		}

		kept, err := e.syncMessage(ctx, conn, account, marker, id, summary)
		if err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		if kept && account.Remove {
			if err := conn.MarkForDeletion(ctx, id); err != nil {
				tracing.TraceErr(span, err)
				return err
			}
		}
	}

	if account.Remove {
		if err := conn.CommitDeletions(ctx); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}
	return nil
}

// syncMessage archives one message. kept reports that the message is stored locally,
// either now or by an earlier run.
func (e *Engine) syncMessage(ctx context.Context, conn interfaces.MailConnector, account *models.EmailAccount,
	marker *models.FolderMarker, id uint32, summary *dto.RunSummary) (kept bool, err error) {
	msg := connector.NewRemoteMessage(conn, marker.Path, id)

	if err := msg.Load(ctx, connector.HeaderLoaded); err != nil {
		return false, err
	}
	if msg.State() == connector.Unloaded {
		e.skipUndecodable(summary, marker, id, errors.Wrap(mberrors.ErrDecode, "message header unavailable"))
		return false, nil
	}

	identity := ""
	if header, err := decoder.ParseHeader(msg.Header()); err == nil {
		identity = decoder.ExtractIdentity(header)
	}
	if identity != "" {
		existing, err := e.repos.ArchivedEmailRepository.FilterByIdentity(ctx, account.ID, identity)
		if errors.Is(err, mberrors.ErrDecode) {
			e.skipUndecodable(summary, marker, id, err)
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if existing != nil {
			summary.Duplicates++
			return true, e.repos.ArchivedEmailRepository.AssociateFolder(ctx, existing, marker)
		}
	}

	if err := msg.Load(ctx, connector.FullyLoaded); err != nil {
		return false, err
	}
	if msg.State() != connector.FullyLoaded {
		e.skipUndecodable(summary, marker, id, errors.Wrap(mberrors.ErrDecode, "message body unavailable"))
		return false, nil
	}

	decoded, err := e.decoder.Decode(msg.Raw())
	if err != nil {
		e.skipUndecodable(summary, marker, id, err)
		return false, nil
	}

	if identity == "" {
		existing, err := e.repos.ArchivedEmailRepository.FilterByIdentity(ctx, account.ID, decoded.Identity)
		if errors.Is(err, mberrors.ErrDecode) {
			e.skipUndecodable(summary, marker, id, err)
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if existing != nil {
			summary.Duplicates++
			return true, e.repos.ArchivedEmailRepository.AssociateFolder(ctx, existing, marker)
		}
	}

	email, created, err := e.archive(ctx, account, decoded)
	if errors.Is(err, mberrors.ErrDecode) {
		e.skipUndecodable(summary, marker, id, err)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if created {
		summary.NewMessages++
		e.publishArchived(ctx, email, marker)
	} else {
		summary.Duplicates++
	}

	return true, e.repos.ArchivedEmailRepository.AssociateFolder(ctx, email, marker)
}

func (e *Engine) archive(ctx context.Context, account *models.EmailAccount, decoded *decoder.DecodedMessage) (*models.ArchivedEmail, bool, error) {
	key := storage.RawMessageKey(account.Path, decoded.Digest)
	if err := e.storage.Upload(ctx, key, decoded.Raw, storage.RawMessageContentType); err != nil {
		return nil, false, errors.Wrapf(err, "store raw message %s", decoded.Identity)
	}

	return e.repos.ArchivedEmailRepository.GetOrCreateByIdentity(ctx, &models.ArchivedEmail{
		AccountID:  account.ID,
		MessageID:  decoded.Identity,
		RawPath:    key,
		SendBy:     decoded.Sender,
		Subject:    decoded.Subject,
		Content:    decoded.Body,
		SearchText: decoded.SearchText,
		Attaches:   decoded.Attachments,
		Date:       decoded.Date,
	})
}

func (e *Engine) skipUndecodable(summary *dto.RunSummary, marker *models.FolderMarker, id uint32, err error) {
	e.log.Warnf("Skipping message %d of folder %s: %v", id, marker.Path, err)
	summary.DecodeFailures++
	summary.AddError(errors.Wrapf(err, "%s #%d", marker.Path, id))
}

func (e *Engine) publishArchived(ctx context.Context, email *models.ArchivedEmail, marker *models.FolderMarker) {
	err := e.publisher.PublishEmailArchived(ctx, dto.EmailArchived{
		AccountID: email.AccountID,
		EmailID:   email.ID,
		MessageID: email.MessageID,
		Folder:    marker.Path,
		RawPath:   email.RawPath,
		SendBy:    email.SendBy,
		Subject:   email.Subject,
		Date:      email.Date,
	})
	if err != nil {
		e.log.Warnf("Publishing archived email %s: %v", email.ID, err)
	}
}

func (e *Engine) recordRun(ctx context.Context, summary *dto.RunSummary) {
	err := e.repos.SyncRunRepository.Create(ctx, &models.SyncRun{
		ID:                summary.RunID,
		AccountID:         summary.AccountID,
		Outcome:           summary.Outcome,
		NewMessages:       summary.NewMessages,
		Duplicates:        summary.Duplicates,
		DecodeFailures:    summary.DecodeFailures,
		FoldersSwept:      summary.FoldersSwept,
		FoldersRegistered: summary.FoldersRegistered,
		Errors:            pq.StringArray(summary.Errors),
		StartedAt:         summary.StartedAt,
		FinishedAt:        summary.FinishedAt,
	})
	if err != nil {
		e.log.Errorf("Saving sync run %s: %v", summary.RunID, err)
	}

	if err := e.publisher.PublishSyncCompleted(ctx, summary); err != nil {
		e.log.Warnf("Publishing sync run %s: %v", summary.RunID, err)
	}
}
