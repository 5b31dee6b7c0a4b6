package cron

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/mailbackup/config"
	"github.com/customeros/mailbackup/interfaces"
	cron_config "github.com/customeros/mailbackup/internal/cron/config"
	"github.com/customeros/mailbackup/internal/enum"
	"github.com/customeros/mailbackup/internal/logger"
	"github.com/customeros/mailbackup/internal/tracing"
	"github.com/customeros/mailbackup/internal/utils"
)

// CONSTANTS
const (
	// GroupMailbackup is the group for mailbox backup jobs
	GroupMailbackup = "mailbackup"

	AppSource = "mailbackup-cron"

	// LeaseName is the k8s lease the cron pods compete for
	LeaseName = "mailbackup-cron-leader"
	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupMailbackup: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg         *config.Config
	log         logger.Logger
	cron        *cronv3.Cron
	k8s         kubernetes.Interface
	stopCh      chan struct{}
	stopOnce    sync.Once
	ctx         context.Context
	cancel      context.CancelFunc
	jobIDs      map[string]cronv3.EntryID
	syncService interfaces.SyncService
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, syncService interfaces.SyncService) *CronManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &CronManager{
		ctx:         ctx,
		cancel:      cancel,
		cfg:         cfg,
		log:         log,
		k8s:         k8s,
		stopCh:      make(chan struct{}),
		jobIDs:      make(map[string]cronv3.EntryID),
		syncService: syncService,
	}
}

// Start initializes and starts the cron manager with leader election
// If k8s is nil, it will start in local mode without leader election
func (cm *CronManager) Start(podName, namespace string) error {
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      LeaseName,
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	errCh := make(chan error, 1)

	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		le.Run(context.Background())
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
	}

	return nil
}

// Stop cancels running syncs, which end as partial runs, and waits for the jobs to return.
func (cm *CronManager) Stop() {
	cm.stopOnce.Do(func() {
		cm.cancel()
		if cm.cron != nil {
			cm.log.Info("Stopping cron manager")
			ctx := cm.cron.Stop()
			// Wait for jobs to finish
			<-ctx.Done()
		}
		close(cm.stopCh)
	})
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron, cronConfig cron_config.Config) error {
	if cronConfig.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			return err
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	if cronConfig.CronScheduleSyncAllAccounts != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleSyncAllAccounts, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupMailbackup].Lock()
			defer jobLocks.locks[GroupMailbackup].Unlock()
			cm.syncAllAccounts()
		})
		if err != nil {
			return err
		}
		cm.jobIDs["sync_all_accounts"] = id
		cm.log.Infof("Registered sync all accounts job with schedule: %s", cronConfig.CronScheduleSyncAllAccounts)
	}

	return nil
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")

	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	if err := cm.registerJobs(c, cronConfig); err != nil {
		cm.log.Fatalf("Could not register cron jobs: %v", err)
	}
	c.Start()
	cm.cron = c
}

func (cm *CronManager) syncAllAccounts() {
	cm.log.Info("Running sync of all accounts")

	ctx := utils.WithCustomContext(cm.ctx, &utils.CustomContext{AppSource: AppSource})

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.syncAllAccounts")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	summaries, err := cm.syncService.SyncAll(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to sync accounts: %v", err)
		return
	}

	failed := 0
	for _, summary := range summaries {
		if summary != nil && summary.Outcome == enum.SyncOutcomeFailed {
			failed++
		}
	}
	span.LogKV("accounts", len(summaries), "failed", failed)
	cm.log.Infof("Synced %d accounts, %d failed", len(summaries), failed)
}
