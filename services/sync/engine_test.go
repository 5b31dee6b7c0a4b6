package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailbackup/config"
	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/internal/enum"
	mberrors "github.com/customeros/mailbackup/internal/errors"
	"github.com/customeros/mailbackup/internal/logger"
	"github.com/customeros/mailbackup/internal/models"
	"github.com/customeros/mailbackup/internal/repository"
	"github.com/customeros/mailbackup/internal/utils"
	"github.com/customeros/mailbackup/services/decoder"
	"github.com/customeros/mailbackup/services/storage"
)

var fixedNow = time.Date(2024, time.March, 14, 15, 30, 0, 0, time.UTC)

type harness struct {
	engine     *Engine
	connectors map[string]*fakeConnector
	built      atomic.Int32
	accounts   *memoryAccounts
	folders    *memoryFolders
	emails     *memoryEmails
	runs       *memoryRuns
	storage    *memoryStorage
	publisher  *recordingPublisher
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()
	return appLogger
}

func newHarness(accounts ...*models.EmailAccount) *harness {
	h := &harness{
		connectors: make(map[string]*fakeConnector),
		accounts:   &memoryAccounts{accounts: accounts},
		folders:    newMemoryFolders(),
		emails:     newMemoryEmails(),
		runs:       &memoryRuns{},
		storage:    &memoryStorage{objects: make(map[string][]byte)},
		publisher:  &recordingPublisher{},
	}
	for _, account := range accounts {
		h.connectors[account.ID] = newFakeConnector()
	}

	log := getLogger()
	h.engine = &Engine{
		cfg: &config.SyncConfig{MaxParallelAccounts: 2},
		log: log,
		repos: &repository.Repositories{
			EmailAccountRepository:  h.accounts,
			FolderMarkerRepository:  h.folders,
			ArchivedEmailRepository: h.emails,
			SyncRunRepository:       h.runs,
		},
		storage:   h.storage,
		publisher: h.publisher,
		decoder:   decoder.NewDecoder(log),
		connect: func(account *models.EmailAccount, log logger.Logger) (interfaces.MailConnector, error) {
			h.built.Add(1)
			return h.connectors[account.ID], nil
		},
		now: func() time.Time { return fixedNow },
	}
	return h
}

func testAccount(id string) *models.EmailAccount {
	return &models.EmailAccount{
		ID:       id,
		User:     "user",
		Password: "secret",
		Host:     "mail.test",
		Protocol: enum.ProtocolIMAP4,
		SSL:      true,
		Path:     "/backup/" + id,
		Sync:     true,
	}
}

// registerFolders marks every remote folder as already seen so the next run sweeps them.
func (h *harness) registerFolders(account *models.EmailAccount) {
	for _, folder := range h.connectors[account.ID].order {
		_, _, _ = h.folders.GetOrCreate(context.Background(), account.ID, folder)
	}
}

func TestSyncAccount_FirstSeenFoldersAreOnlyRegistered(t *testing.T) {
	account := testAccount("eacc_1")
	h := newHarness(account)
	conn := h.connectors[account.ID]
	conn.addFolder("INBOX", rawMessage("<1@mail.test>", "one"), rawMessage("<2@mail.test>", "two"))
	conn.addFolder("Sent", rawMessage("<3@mail.test>", "three"))

	summary, err := h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, enum.SyncOutcomeSuccess, summary.Outcome)
	assert.Equal(t, 2, summary.FoldersRegistered)
	assert.Equal(t, 0, summary.FoldersSwept)
	assert.Equal(t, 0, summary.NewMessages)
	assert.Empty(t, conn.selects)
	assert.Zero(t, conn.headerFetches)
	assert.Equal(t, 1, conn.closed)

	summary, err = h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, enum.SyncOutcomeSuccess, summary.Outcome)
	assert.Equal(t, 0, summary.FoldersRegistered)
	assert.Equal(t, 2, summary.FoldersSwept)
	assert.Equal(t, 3, summary.NewMessages)
	assert.Equal(t, 2, conn.closed)
}

func TestSyncAccount_Idempotent(t *testing.T) {
	account := testAccount("eacc_1")
	h := newHarness(account)
	conn := h.connectors[account.ID]
	conn.addFolder("INBOX", rawMessage("<1@mail.test>", "one"), rawMessage("<2@mail.test>", "two"))
	h.registerFolders(account)

	first, err := h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, 2, first.NewMessages)
	assert.Equal(t, 0, first.Duplicates)
	fullFetches := conn.fullFetches
	markers := h.folders.snapshot()
	links := h.emails.linkSnapshot()

	second, err := h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, enum.SyncOutcomeSuccess, second.Outcome)
	assert.Equal(t, 0, second.NewMessages)
	assert.Equal(t, 2, second.Duplicates)
	assert.Equal(t, fullFetches, conn.fullFetches, "duplicates are detected from the header")
	assert.Equal(t, markers, h.folders.snapshot())
	assert.Equal(t, links, h.emails.linkSnapshot())
	assert.Equal(t, map[string][]string{"<1@mail.test>": {"INBOX"}, "<2@mail.test>": {"INBOX"}}, links)

	count, err := h.emails.CountByAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Len(t, h.storage.objects, 2)
	assert.Len(t, h.publisher.archived, 2)
	assert.Len(t, h.publisher.completed, 2)
	assert.Len(t, h.runs.runs, 2)
}

func TestSyncAccount_StoresRawMessage(t *testing.T) {
	account := testAccount("eacc_1")
	h := newHarness(account)
	raw := rawMessage("<1@mail.test>", "hello")
	h.connectors[account.ID].addFolder("INBOX", raw)
	h.registerFolders(account)

	_, err := h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)

	key := storage.RawMessageKey(account.Path, decoder.ContentDigest(raw))
	assert.Equal(t, raw, h.storage.objects[key])

	email, err := h.emails.FilterByIdentity(context.Background(), account.ID, "<1@mail.test>")
	require.NoError(t, err)
	require.NotNil(t, email)
	assert.Equal(t, key, email.RawPath)
	assert.Equal(t, "hello", email.Subject)
	assert.Equal(t, "sender@mail.test", email.SendBy)
	assert.Contains(t, email.SearchText, "hello body")
	assert.Equal(t, time.Date(2023, time.January, 2, 15, 4, 5, 0, time.UTC), email.Date.UTC())

	require.Len(t, h.publisher.archived, 1)
	assert.Equal(t, "INBOX", h.publisher.archived[0].Folder)
	assert.Equal(t, email.ID, h.publisher.archived[0].EmailID)
}

func TestSyncAccount_MessageInSeveralFoldersIsArchivedOnce(t *testing.T) {
	account := testAccount("eacc_1")
	h := newHarness(account)
	conn := h.connectors[account.ID]
	shared := rawMessage("<shared@mail.test>", "shared")
	conn.addFolder("INBOX", shared)
	conn.addFolder("Archive", shared)
	h.registerFolders(account)

	summary, err := h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NewMessages)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, []string{"Archive", "INBOX"}, h.emails.folderPaths(account.ID, "<shared@mail.test>"))
}

func TestSyncAccount_MessageWithoutIdentity(t *testing.T) {
	account := testAccount("eacc_1")
	h := newHarness(account)
	raw := rawMessage("", "anonymous")
	h.connectors[account.ID].addFolder("INBOX", raw)
	h.registerFolders(account)

	summary, err := h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NewMessages)

	identity := decoder.PlaceholderIdentity(decoder.ContentDigest(raw))
	email, err := h.emails.FilterByIdentity(context.Background(), account.ID, identity)
	require.NoError(t, err)
	assert.NotNil(t, email)

	summary, err = h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.NewMessages)
	assert.Equal(t, 1, summary.Duplicates)
}

func TestSyncAccount_IgnoredFolderIsNotSwept(t *testing.T) {
	account := testAccount("eacc_1")
	h := newHarness(account)
	conn := h.connectors[account.ID]
	conn.addFolder("INBOX", rawMessage("<1@mail.test>", "one"))
	conn.addFolder("Spam", rawMessage("<2@mail.test>", "spam"))
	h.registerFolders(account)
	require.NoError(t, h.folders.SetIgnore(context.Background(), account.ID, "Spam", true))

	summary, err := h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FoldersSwept)
	assert.Equal(t, 1, summary.FoldersIgnored)
	assert.Equal(t, 1, summary.NewMessages)
	assert.NotContains(t, conn.selects, "Spam")
}

func TestSyncAccount_RemoveMarksEveryMessageAndCommitsOncePerFolder(t *testing.T) {
	account := testAccount("eacc_1")
	account.Remove = true
	h := newHarness(account)
	conn := h.connectors[account.ID]
	conn.addFolder("INBOX", rawMessage("<1@mail.test>", "one"), rawMessage("<2@mail.test>", "two"), rawMessage("<3@mail.test>", "three"))
	conn.addFolder("Sent", rawMessage("<1@mail.test>", "one"))
	h.registerFolders(account)

	summary, err := h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, enum.SyncOutcomeSuccess, summary.Outcome)
	assert.Equal(t, []uint32{1, 2, 3}, conn.marked["INBOX"])
	assert.Equal(t, []uint32{1}, conn.marked["Sent"])
	assert.Equal(t, map[string]int{"INBOX": 1, "Sent": 1}, conn.commits)
}

func TestSyncAccount_KeepsRemoteMessagesWithoutRemove(t *testing.T) {
	account := testAccount("eacc_1")
	h := newHarness(account)
	conn := h.connectors[account.ID]
	conn.addFolder("INBOX", rawMessage("<1@mail.test>", "one"))
	h.registerFolders(account)

	_, err := h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)
	assert.Empty(t, conn.marked)
	assert.Empty(t, conn.commits)
}

func TestSyncAccount_DecodeFailureIsSkipped(t *testing.T) {
	account := testAccount("eacc_1")
	account.Remove = true
	h := newHarness(account)
	conn := h.connectors[account.ID]
	conn.addFolder("INBOX", rawMessage("<1@mail.test>", "one"), []byte("  \r\n"), rawMessage("<3@mail.test>", "three"))
	h.registerFolders(account)

	summary, err := h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, enum.SyncOutcomePartial, summary.Outcome)
	assert.Equal(t, 1, summary.DecodeFailures)
	assert.Equal(t, 2, summary.NewMessages)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "INBOX #2")
	assert.Equal(t, []uint32{1, 3}, conn.marked["INBOX"])

	require.Len(t, h.runs.runs, 1)
	assert.Equal(t, enum.SyncOutcomePartial, h.runs.runs[0].Outcome)
	assert.Equal(t, 1, h.runs.runs[0].DecodeFailures)
}

func TestSyncAccount_CancellationGivesPartial(t *testing.T) {
	account := testAccount("eacc_1")
	h := newHarness(account)
	conn := h.connectors[account.ID]
	conn.addFolder("INBOX", rawMessage("<1@mail.test>", "one"), rawMessage("<2@mail.test>", "two"), rawMessage("<3@mail.test>", "three"))
	conn.addFolder("Sent", rawMessage("<4@mail.test>", "four"))
	h.registerFolders(account)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn.cancel = cancel
	conn.cancelAfter = 1

	summary, err := h.engine.SyncAccount(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, enum.SyncOutcomePartial, summary.Outcome)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.NewMessages)
	assert.Equal(t, 0, summary.FoldersSwept)
	assert.NotContains(t, conn.selects, "Sent")
	assert.Equal(t, 1, conn.closed)
	assert.Len(t, h.runs.runs, 1)
}

func TestSyncAccount_OpenFailure(t *testing.T) {
	account := testAccount("eacc_1")
	h := newHarness(account)
	conn := h.connectors[account.ID]
	conn.openErr = mberrors.ErrConnection
	conn.addFolder("INBOX", rawMessage("<1@mail.test>", "one"))

	summary, err := h.engine.SyncAccount(context.Background(), account)
	assert.ErrorIs(t, err, mberrors.ErrConnection)
	require.NotNil(t, summary)
	assert.Equal(t, enum.SyncOutcomeFailed, summary.Outcome)
	assert.NotEmpty(t, summary.Errors)
	assert.Empty(t, conn.selects)
	assert.Zero(t, conn.closed)

	require.Len(t, h.runs.runs, 1)
	assert.Equal(t, enum.SyncOutcomeFailed, h.runs.runs[0].Outcome)
	require.Len(t, h.publisher.completed, 1)
}

func TestSyncAccount_PersistenceFailureAbortsRun(t *testing.T) {
	account := testAccount("eacc_1")
	h := newHarness(account)
	conn := h.connectors[account.ID]
	conn.addFolder("INBOX", rawMessage("<1@mail.test>", "one"))
	h.registerFolders(account)
	h.emails.err = errors.New("database is gone")

	summary, err := h.engine.SyncAccount(context.Background(), account)
	assert.Error(t, err)
	assert.Equal(t, enum.SyncOutcomeFailed, summary.Outcome)
	assert.Equal(t, 1, conn.closed)
}

func TestSyncAccount_UnstorableTextIsCleaned(t *testing.T) {
	account := testAccount("eacc_1")
	h := newHarness(account)
	raw := []byte("From: Sender <sender@mail.test>\r\n" +
		"Subject: caf\xe9 " + strings.Repeat("x", 700) + "\r\n" +
		"Message-Id: <" + strings.Repeat("a", 300) + "@mail.test>\r\n" +
		"Content-Type: text/plain; charset=x-bogus\r\n" +
		"\r\n" +
		"bad \xff\xfe bytes\x00 here\r\n")
	h.connectors[account.ID].addFolder("INBOX", rawMessage("<1@mail.test>", "one"), raw)
	h.registerFolders(account)

	summary, err := h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, enum.SyncOutcomeSuccess, summary.Outcome)
	assert.Equal(t, 2, summary.NewMessages)

	identity := decoder.PlaceholderIdentity(decoder.ContentDigest(raw))
	email, err := h.emails.FilterByIdentity(context.Background(), account.ID, identity)
	require.NoError(t, err)
	require.NotNil(t, email)
	assert.Equal(t, decoder.MaxSubjectLength, utf8.RuneCountInString(email.Subject))
	assert.True(t, utf8.ValidString(email.Content))
}

func TestSyncAccount_RejectedMessageIsSkipped(t *testing.T) {
	account := testAccount("eacc_1")
	account.Remove = true
	h := newHarness(account)
	conn := h.connectors[account.ID]
	conn.addFolder("INBOX", rawMessage("<1@mail.test>", "one"), rawMessage("<2@mail.test>", "rejected"), rawMessage("<3@mail.test>", "three"))
	h.registerFolders(account)
	h.emails.reject = func(email *models.ArchivedEmail) error {
		if email.Subject == "rejected" {
			return fmt.Errorf("sqlstate 22021: %w", mberrors.ErrDecode)
		}
		return nil
	}

	for run := 0; run < 2; run++ {
		summary, err := h.engine.SyncAccount(context.Background(), account)
		require.NoError(t, err)
		assert.Equal(t, enum.SyncOutcomePartial, summary.Outcome)
		assert.Equal(t, 1, summary.DecodeFailures)
		require.Len(t, summary.Errors, 1)
		assert.Contains(t, summary.Errors[0], "INBOX #2")
	}
	assert.Equal(t, []uint32{1, 3, 1, 3}, conn.marked["INBOX"])
	assert.Equal(t, 2, conn.commits["INBOX"])

	count, err := h.emails.CountByAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	require.Len(t, h.runs.runs, 2)
	assert.Equal(t, enum.SyncOutcomePartial, h.runs.runs[1].Outcome)
}

func TestSyncAccount_DisabledAccountIsSkipped(t *testing.T) {
	account := testAccount("eacc_1")
	account.Sync = false
	h := newHarness(account)

	summary, err := h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, enum.SyncOutcomeSkipped, summary.Outcome)
	assert.Zero(t, h.built.Load())
}

func TestSyncAccount_SearchFilter(t *testing.T) {
	account := testAccount("eacc_1")
	account.WeeksBefore = 2
	account.JustRead = true
	h := newHarness(account)
	conn := h.connectors[account.ID]
	conn.addFolder("INBOX")
	h.registerFolders(account)

	_, err := h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)
	require.Len(t, conn.filters, 1)
	assert.Equal(t, utils.StartOfDay(fixedNow).AddDate(0, 0, -14), conn.filters[0].Before)
	assert.True(t, conn.filters[0].OnlyRead)

	account.WeeksBefore = 0
	_, err = h.engine.SyncAccount(context.Background(), account)
	require.NoError(t, err)
	require.Len(t, conn.filters, 2)
	assert.Nil(t, conn.filters[1].Before)
}

func TestSyncAccountByID(t *testing.T) {
	account := testAccount("eacc_1")
	h := newHarness(account)
	h.connectors[account.ID].addFolder("INBOX")

	summary, err := h.engine.SyncAccountByID(context.Background(), "eacc_1")
	require.NoError(t, err)
	assert.Equal(t, "eacc_1", summary.AccountID)

	_, err = h.engine.SyncAccountByID(context.Background(), "eacc_missing")
	assert.ErrorIs(t, err, mberrors.ErrAccountNotFound)
}

func TestSyncAll(t *testing.T) {
	first := testAccount("eacc_1")
	second := testAccount("eacc_2")
	disabled := testAccount("eacc_3")
	disabled.Sync = false
	h := newHarness(first, second, disabled)
	h.connectors[first.ID].addFolder("INBOX", rawMessage("<1@mail.test>", "one"))
	h.connectors[second.ID].openErr = mberrors.ErrAuth
	h.registerFolders(first)

	summaries, err := h.engine.SyncAll(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	outcomes := map[string]enum.SyncOutcome{}
	for _, summary := range summaries {
		outcomes[summary.AccountID] = summary.Outcome
	}
	assert.Equal(t, map[string]enum.SyncOutcome{
		"eacc_1": enum.SyncOutcomeSuccess,
		"eacc_2": enum.SyncOutcomeFailed,
	}, outcomes)
	assert.Len(t, h.runs.runs, 2)
}
