package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Backup of every sync-enabled account, every 15 minutes
	CronScheduleSyncAllAccounts string `env:"CRON_SCHEDULE_SYNC_ALL_ACCOUNTS" envDefault:"0 */15 * * * *"`
}
