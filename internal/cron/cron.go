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

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	cron_config "github.com/customeros/mailsync/internal/cron/config"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

// CONSTANTS
const (
	AppSource = "mailsync-cron"

	// GroupMailboxSync serializes the jobs touching mailboxes and checkpoints
	GroupMailboxSync = "mailbox_sync"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

type CronManager struct {
	cfg      *config.Config
	log      logger.Logger
	cron     *cronv3.Cron
	k8s      kubernetes.Interface
	stopCh   chan struct{}
	stopOnce sync.Once
	jobIDs   map[string]cronv3.EntryID
	jobLocks map[string]*sync.Mutex
	syncer   interfaces.MailboxSyncScheduler
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, syncer interfaces.MailboxSyncScheduler) *CronManager {
	return &CronManager{
		cfg:    cfg,
		log:    log,
		k8s:    k8s,
		stopCh: make(chan struct{}),
		jobIDs: make(map[string]cronv3.EntryID),
		jobLocks: map[string]*sync.Mutex{
			GroupMailboxSync: new(sync.Mutex),
		},
		syncer: syncer,
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
			Name:      "mailsync-cron-leader",
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

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}

func (cm *CronManager) cronConfig() *cron_config.Config {
	if cm.cfg != nil && cm.cfg.CronConfig != nil {
		return cm.cfg.CronConfig
	}
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}
	return &cronConfig
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	cronConfig := cm.cronConfig()

	if cronConfig.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		cm.addJob(c, "heartbeat", cronConfig.CronScheduleHeartbeat, "", func() {
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
	}

	if cronConfig.CronScheduleMailboxSync != "" {
		cm.addJob(c, "mailbox_sync", cronConfig.CronScheduleMailboxSync, GroupMailboxSync, cm.syncMailboxes)
	}

	if cronConfig.CronScheduleSyncStateCleanup != "" {
		cm.addJob(c, "sync_state_cleanup", cronConfig.CronScheduleSyncStateCleanup, GroupMailboxSync, cm.cleanupSyncStates)
	}
}

func (cm *CronManager) addJob(c *cronv3.Cron, name, schedule, group string, job func()) {
	id, err := c.AddFunc(schedule, func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		if lock, ok := cm.jobLocks[group]; ok {
			lock.Lock()
			defer lock.Unlock()
		}
		job()
	})
	if err != nil {
		cm.log.Fatalf("Could not add %s cron job: %v", name, err)
	}
	cm.jobIDs[name] = id
	cm.log.Infof("Registered %s job with schedule: %s", name, schedule)
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

func (cm *CronManager) syncMailboxes() {
	if cm.syncer == nil {
		return
	}
	span, ctx := tracing.StartTracerSpan(utils.SetAppSourceInContext(context.Background(), AppSource), "CronManager.syncMailboxes")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	if err := cm.syncer.SyncAllMailboxes(ctx); err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Scheduled mailbox sync failed: %v", err)
	}
}

func (cm *CronManager) cleanupSyncStates() {
	if cm.syncer == nil {
		return
	}
	span, ctx := tracing.StartTracerSpan(utils.SetAppSourceInContext(context.Background(), AppSource), "CronManager.cleanupSyncStates")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	if _, err := cm.syncer.CleanupSyncStates(ctx); err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Sync state cleanup failed: %v", err)
	}
}
