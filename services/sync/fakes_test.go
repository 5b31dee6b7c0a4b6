package sync

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	gosync "sync"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/customeros/mailbackup/dto"
	"github.com/customeros/mailbackup/interfaces"
	mberrors "github.com/customeros/mailbackup/internal/errors"
	"github.com/customeros/mailbackup/internal/models"
	"github.com/customeros/mailbackup/internal/utils"
	"github.com/customeros/mailbackup/services/decoder"
)

// fakeConnector serves folders of raw messages keyed by id and records what the engine asks for.
type fakeConnector struct {
	folders map[string]map[uint32][]byte
	order   []string

	openErr error
	listErr error
	// cancel is invoked after cancelAfter full fetches
	cancel      context.CancelFunc
	cancelAfter int

	opened        bool
	closed        int
	current       string
	selects       []string
	filters       []interfaces.SearchFilter
	headerFetches int
	fullFetches   int
	marked        map[string][]uint32
	commits       map[string]int
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		folders: make(map[string]map[uint32][]byte),
		marked:  make(map[string][]uint32),
		commits: make(map[string]int),
	}
}

func (f *fakeConnector) addFolder(name string, messages ...[]byte) {
	folder := make(map[uint32][]byte)
	for i, raw := range messages {
		folder[uint32(i+1)] = raw
	}
	f.folders[name] = folder
	f.order = append(f.order, name)
}

func (f *fakeConnector) Open(ctx context.Context) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = true
	return nil
}

func (f *fakeConnector) Close() error {
	f.closed++
	return nil
}

func (f *fakeConnector) Directories(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return slices.Clone(f.order), nil
}

func (f *fakeConnector) SelectFolder(ctx context.Context, name string) (uint32, error) {
	f.selects = append(f.selects, name)
	folder, ok := f.folders[name]
	if !ok {
		return 0, nil
	}
	f.current = name
	return uint32(len(folder)), nil
}

func (f *fakeConnector) CurrentFolder() string {
	return f.current
}

func (f *fakeConnector) EnumerateIDs(ctx context.Context, folder string, filter interfaces.SearchFilter) (iter.Seq[uint32], error) {
	f.filters = append(f.filters, filter)
	if _, err := f.SelectFolder(ctx, folder); err != nil {
		return nil, err
	}
	ids := make([]uint32, 0, len(f.folders[folder]))
	for id := range f.folders[folder] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return slices.Values(ids), nil
}

func (f *fakeConnector) message(id uint32) []byte {
	return f.folders[f.current][id]
}

func (f *fakeConnector) FetchHeader(ctx context.Context, id uint32) ([]byte, error) {
	f.headerFetches++
	raw := f.message(id)
	if raw == nil {
		return nil, nil
	}
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[:i+4], nil
	}
	return raw, nil
}

func (f *fakeConnector) FetchFull(ctx context.Context, id uint32) ([]byte, error) {
	f.fullFetches++
	if f.cancel != nil && f.fullFetches >= f.cancelAfter {
		f.cancel()
	}
	return f.message(id), nil
}

func (f *fakeConnector) MarkForDeletion(ctx context.Context, id uint32) error {
	f.marked[f.current] = append(f.marked[f.current], id)
	return nil
}

func (f *fakeConnector) CommitDeletions(ctx context.Context) error {
	f.commits[f.current]++
	return nil
}

func rawMessage(messageID, subject string) []byte {
	header := "From: Sender <sender@mail.test>\r\n" +
		"To: user@mail.test\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: Mon, 2 Jan 2023 15:04:05 +0000\r\n"
	if messageID != "" {
		header += "Message-Id: " + messageID + "\r\n"
	}
	return []byte(header + "Content-Type: text/plain; charset=utf-8\r\n\r\n" + subject + " body\r\n")
}

type memoryAccounts struct {
	accounts []*models.EmailAccount
}

func (m *memoryAccounts) GetByID(ctx context.Context, id string) (*models.EmailAccount, error) {
	for _, account := range m.accounts {
		if account.ID == id {
			return account, nil
		}
	}
	return nil, nil
}

func (m *memoryAccounts) ListSyncEnabled(ctx context.Context) ([]*models.EmailAccount, error) {
	var enabled []*models.EmailAccount
	for _, account := range m.accounts {
		if account.Sync {
			enabled = append(enabled, account)
		}
	}
	return enabled, nil
}

func (m *memoryAccounts) Create(ctx context.Context, account *models.EmailAccount) error {
	m.accounts = append(m.accounts, account)
	return nil
}

type memoryFolders struct {
	mu      gosync.Mutex
	markers map[string]*models.FolderMarker
}

func newMemoryFolders() *memoryFolders {
	return &memoryFolders{markers: make(map[string]*models.FolderMarker)}
}

func (m *memoryFolders) GetOrCreate(ctx context.Context, accountID, path string) (*models.FolderMarker, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := accountID + "|" + path
	if marker, ok := m.markers[key]; ok {
		return marker, false, nil
	}
	marker := &models.FolderMarker{ID: utils.GenerateNanoIdWithPrefix("epth", 16), AccountID: accountID, Path: path}
	m.markers[key] = marker
	return marker, true, nil
}

func (m *memoryFolders) SetIgnore(ctx context.Context, accountID, path string, ignore bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	marker, ok := m.markers[accountID+"|"+path]
	if !ok {
		return fmt.Errorf("folder %s not found", path)
	}
	marker.Ignore = ignore
	return nil
}

func (m *memoryFolders) ListByAccount(ctx context.Context, accountID string) ([]*models.FolderMarker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var markers []*models.FolderMarker
	for _, marker := range m.markers {
		if marker.AccountID == accountID {
			markers = append(markers, marker)
		}
	}
	return markers, nil
}

type memoryEmails struct {
	mu     gosync.Mutex
	emails map[string]*models.ArchivedEmail
	links  map[string]map[string]bool
	err    error
	reject func(email *models.ArchivedEmail) error
}

func newMemoryEmails() *memoryEmails {
	return &memoryEmails{
		emails: make(map[string]*models.ArchivedEmail),
		links:  make(map[string]map[string]bool),
		reject: rejectUnstorable,
	}
}

// rejectUnstorable fails like postgres does on text it cannot store.
func rejectUnstorable(email *models.ArchivedEmail) error {
	columns := []struct {
		value string
		width int
	}{
		{email.MessageID, decoder.MaxIdentityLength},
		{email.SendBy, decoder.MaxSenderLength},
		{email.Subject, decoder.MaxSubjectLength},
		{email.Content, 0},
		{email.SearchText, 0},
	}
	for _, column := range columns {
		if !utf8.ValidString(column.value) || strings.ContainsRune(column.value, 0) {
			return errors.Wrap(mberrors.ErrDecode, "sqlstate 22021: invalid byte sequence for encoding UTF8")
		}
		if column.width > 0 && utf8.RuneCountInString(column.value) > column.width {
			return errors.Wrap(mberrors.ErrDecode, "sqlstate 22001: value too long")
		}
	}
	return nil
}

func (m *memoryEmails) FilterByIdentity(ctx context.Context, accountID, messageID string) (*models.ArchivedEmail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.emails[accountID+"|"+messageID], nil
}

func (m *memoryEmails) GetOrCreateByIdentity(ctx context.Context, email *models.ArchivedEmail) (*models.ArchivedEmail, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reject != nil {
		if err := m.reject(email); err != nil {
			return nil, false, err
		}
	}
	key := email.AccountID + "|" + email.MessageID
	if existing, ok := m.emails[key]; ok {
		return existing, false, nil
	}
	email.ID = utils.GenerateNanoIdWithPrefix("email", 24)
	m.emails[key] = email
	return email, true, nil
}

func (m *memoryEmails) AssociateFolder(ctx context.Context, email *models.ArchivedEmail, folder *models.FolderMarker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links[email.ID] == nil {
		m.links[email.ID] = make(map[string]bool)
	}
	m.links[email.ID][folder.Path] = true
	return nil
}

func (m *memoryEmails) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, email := range m.emails {
		if email.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

func (m *memoryEmails) folderPaths(accountID, messageID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	email, ok := m.emails[accountID+"|"+messageID]
	if !ok {
		return nil
	}
	var paths []string
	for path := range m.links[email.ID] {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths
}

// snapshot copies every marker so later runs cannot change it.
func (m *memoryFolders) snapshot() map[string]models.FolderMarker {
	m.mu.Lock()
	defer m.mu.Unlock()
	markers := make(map[string]models.FolderMarker, len(m.markers))
	for key, marker := range m.markers {
		markers[key] = *marker
	}
	return markers
}

// linkSnapshot maps each stored message id to its sorted folder paths.
func (m *memoryEmails) linkSnapshot() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	links := make(map[string][]string, len(m.emails))
	for _, email := range m.emails {
		var paths []string
		for path := range m.links[email.ID] {
			paths = append(paths, path)
		}
		slices.Sort(paths)
		links[email.MessageID] = paths
	}
	return links
}

type memoryRuns struct {
	mu   gosync.Mutex
	runs []*models.SyncRun
}

func (m *memoryRuns) Create(ctx context.Context, run *models.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryRuns) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var runs []*models.SyncRun
	for _, run := range m.runs {
		if run.AccountID == accountID {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

type memoryStorage struct {
	mu      gosync.Mutex
	objects map[string][]byte
}

func (m *memoryStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStorage) Download(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (m *memoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type recordingPublisher struct {
	mu        gosync.Mutex
	archived  []dto.EmailArchived
	completed []*dto.RunSummary
}

func (p *recordingPublisher) PublishEmailArchived(ctx context.Context, event dto.EmailArchived) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.archived = append(p.archived, event)
	return nil
}

func (p *recordingPublisher) PublishSyncCompleted(ctx context.Context, summary *dto.RunSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, summary)
	return nil
}

func (p *recordingPublisher) PublishSyncRequested(ctx context.Context, request dto.SyncRequested) error {
	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}
