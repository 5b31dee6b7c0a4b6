package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailbackup/dto"
	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/internal/models"
	"github.com/customeros/mailbackup/internal/repository"
	"github.com/customeros/mailbackup/internal/tracing"
)

type AccountsHandler struct {
	repos          *repository.Repositories
	publisher      interfaces.EventPublisher
	runHistorySize int
}

// AccountStatus is the backup state of one account
type AccountStatus struct {
	Account       *models.EmailAccount   `json:"account"`
	ArchivedCount int64                  `json:"archivedCount"`
	Folders       []*models.FolderMarker `json:"folders"`
	LastRun       *models.SyncRun        `json:"lastRun,omitempty"`
}

func NewAccountsHandler(repos *repository.Repositories, publisher interfaces.EventPublisher, runHistorySize int) *AccountsHandler {
	return &AccountsHandler{
		repos:          repos,
		publisher:      publisher,
		runHistorySize: runHistorySize,
	}
}

// Status returns the account with its folders, archive size and latest run.
func (h *AccountsHandler) Status() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AccountsHandler.Status")
		defer span.Finish()

		account, ok := h.loadAccount(c, span)
		if !ok {
			return
		}

		status := AccountStatus{Account: account}
		var err error
		if status.ArchivedCount, err = h.repos.ArchivedEmailRepository.CountByAccount(ctx, account.ID); err != nil {
			h.internalError(c, span, err)
			return
		}
		if status.Folders, err = h.repos.FolderMarkerRepository.ListByAccount(ctx, account.ID); err != nil {
			h.internalError(c, span, err)
			return
		}
		runs, err := h.repos.SyncRunRepository.ListByAccount(ctx, account.ID, 1)
		if err != nil {
			h.internalError(c, span, err)
			return
		}
		if len(runs) > 0 {
			status.LastRun = runs[0]
		}

		c.JSON(http.StatusOK, status)
	}
}

// ListRuns returns the most recent sync runs of an account, newest first.
func (h *AccountsHandler) ListRuns() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AccountsHandler.ListRuns")
		defer span.Finish()

		limit := h.runHistorySize
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
				return
			}
			limit = parsed
		}

		account, ok := h.loadAccount(c, span)
		if !ok {
			return
		}

		runs, err := h.repos.SyncRunRepository.ListByAccount(ctx, account.ID, limit)
		if err != nil {
			h.internalError(c, span, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

// RequestSync queues an out-of-schedule sync of the account.
func (h *AccountsHandler) RequestSync() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AccountsHandler.RequestSync")
		defer span.Finish()

		account, ok := h.loadAccount(c, span)
		if !ok {
			return
		}
		if !account.Sync {
			c.JSON(http.StatusConflict, gin.H{"error": "sync is disabled for this account"})
			return
		}

		err := h.publisher.PublishSyncRequested(ctx, dto.SyncRequested{AccountID: account.ID})
		if err != nil {
			h.internalError(c, span, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"status": "sync requested", "id": account.ID})
	}
}

func (h *AccountsHandler) loadAccount(c *gin.Context, span opentracing.Span) (*models.EmailAccount, bool) {
	id := c.Param("id")
	tracing.TagAccount(span, id)

	account, err := h.repos.EmailAccountRepository.GetByID(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, span, err)
		return nil, false
	}
	if account == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return nil, false
	}
	return account, true
}

func (h *AccountsHandler) internalError(c *gin.Context, span opentracing.Span, err error) {
	tracing.TraceErr(span, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
