package cron

import (
	"context"
	"errors"
	"testing"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes"

	"github.com/customeros/mailbackup/config"
	"github.com/customeros/mailbackup/dto"
	cron_config "github.com/customeros/mailbackup/internal/cron/config"
	"github.com/customeros/mailbackup/internal/enum"
	"github.com/customeros/mailbackup/internal/logger"
	"github.com/customeros/mailbackup/internal/models"
	"github.com/customeros/mailbackup/internal/utils"
)

type mockKubernetesInterface struct {
	kubernetes.Interface
	mock.Mock
}

type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) SyncAccount(ctx context.Context, account *models.EmailAccount) (*dto.RunSummary, error) {
	args := m.Called(ctx, account)
	summary, _ := args.Get(0).(*dto.RunSummary)
	return summary, args.Error(1)
}

func (m *MockSyncService) SyncAccountByID(ctx context.Context, accountID string) (*dto.RunSummary, error) {
	args := m.Called(ctx, accountID)
	summary, _ := args.Get(0).(*dto.RunSummary)
	return summary, args.Error(1)
}

func (m *MockSyncService) SyncAll(ctx context.Context) ([]*dto.RunSummary, error) {
	args := m.Called(ctx)
	summaries, _ := args.Get(0).([]*dto.RunSummary)
	return summaries, args.Error(1)
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testConfig() *config.Config {
	return &config.Config{
		Logger: &logger.Config{
			LogLevel: "info",
		},
	}
}

func TestNewCronManager(t *testing.T) {
	cfg := testConfig()
	log := getLogger()
	k8s := &mockKubernetesInterface{}
	syncService := new(MockSyncService)

	cm := NewCronManager(cfg, log, k8s, syncService)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.Equal(t, k8s, cm.k8s)
	assert.Equal(t, syncService, cm.syncService)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_RegisterJobs(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), nil, new(MockSyncService))
	c := cronv3.New(cronv3.WithSeconds())

	err := cm.registerJobs(c, cron_config.Config{
		CronScheduleHeartbeat:       "0 * * * * *",
		CronScheduleSyncAllAccounts: "0 */15 * * * *",
	})

	require.NoError(t, err)
	assert.Len(t, cm.jobIDs, 2)
	assert.Contains(t, cm.jobIDs, "heartbeat")
	assert.Contains(t, cm.jobIDs, "sync_all_accounts")
	assert.Len(t, c.Entries(), 2)
}

func TestCronManager_RegisterJobsSkipsEmptySchedules(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), nil, new(MockSyncService))
	c := cronv3.New(cronv3.WithSeconds())

	require.NoError(t, cm.registerJobs(c, cron_config.Config{CronScheduleSyncAllAccounts: "0 0 * * * *"}))
	assert.Len(t, cm.jobIDs, 1)
	assert.Contains(t, cm.jobIDs, "sync_all_accounts")
}

func TestCronManager_RegisterJobsRejectsInvalidSchedule(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), nil, new(MockSyncService))
	c := cronv3.New(cronv3.WithSeconds())

	err := cm.registerJobs(c, cron_config.Config{CronScheduleSyncAllAccounts: "every hour"})
	assert.Error(t, err)
}

func TestCronManager_SyncAllAccounts(t *testing.T) {
	syncService := new(MockSyncService)
	syncService.On("SyncAll", mock.MatchedBy(func(ctx context.Context) bool {
		return utils.GetAppSourceFromContext(ctx) == AppSource
	})).Return([]*dto.RunSummary{
		{AccountID: "eacc_1", Outcome: enum.SyncOutcomeSuccess},
		{AccountID: "eacc_2", Outcome: enum.SyncOutcomeFailed},
	}, nil)

	cm := NewCronManager(testConfig(), getLogger(), nil, syncService)
	cm.syncAllAccounts()

	syncService.AssertExpectations(t)
}

func TestCronManager_SyncAllAccountsError(t *testing.T) {
	syncService := new(MockSyncService)
	syncService.On("SyncAll", mock.Anything).Return(nil, errors.New("database unavailable"))

	cm := NewCronManager(testConfig(), getLogger(), nil, syncService)
	cm.syncAllAccounts()

	syncService.AssertNumberOfCalls(t, "SyncAll", 1)
}

func TestCronManager_Stop(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), &mockKubernetesInterface{}, nil)

	mockCron := cronv3.New()
	mockCron.Start()
	cm.cron = mockCron

	cm.Stop()
	cm.Stop()

	select {
	case <-cm.stopCh:
		// Channel is closed as expected
	default:
		t.Error("Stop channel was not closed")
	}
}
