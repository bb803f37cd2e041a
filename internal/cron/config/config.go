package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Scheduled mailbox sync, every 5 minutes
	CronScheduleMailboxSync string `env:"CRON_SCHEDULE_MAILBOX_SYNC" envDefault:"0 */5 * * * *"`
	// Sync state cleanup, daily at 3am
	CronScheduleSyncStateCleanup string `env:"CRON_SCHEDULE_SYNC_STATE_CLEANUP" envDefault:"0 0 3 * * *"`
}
