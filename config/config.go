package config

import (
	"time"
)

type AppConfig struct {
	APIPort     string `env:"PORT,required" envDefault:"12223"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type MailsyncDatabaseConfig struct {
	Host            string `env:"MAILSYNC_POSTGRES_HOST,required"`
	Port            string `env:"MAILSYNC_POSTGRES_PORT,required"`
	User            string `env:"MAILSYNC_POSTGRES_USER,required"`
	DBName          string `env:"MAILSYNC_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILSYNC_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILSYNC_POSTGRES_DB_MAX_CONN" envDefault:"25"`
	MaxIdleConn     int    `env:"MAILSYNC_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"MAILSYNC_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"MAILSYNC_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILSYNC_POSTGRES_SSL_MODE" envDefault:"require"`
}

type R2StorageConfig struct {
	AccountID             string `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
	AccessKeyID           string `env:"CLOUDFLARE_R2_ACCESS_KEY_ID"`
	AccessKeySecret       string `env:"CLOUDFLARE_R2_ACCESS_KEY_SECRET"`
	EmailAttachmentBucket string `env:"BUCKET_NAME_EMAIL_ATTACHMENT" envDefault:"attachments"`
}

func (c *R2StorageConfig) Enabled() bool {
	return c != nil && c.AccountID != "" && c.AccessKeyID != "" && c.AccessKeySecret != ""
}

type SyncConfig struct {
	// Number of most recent messages imported when a folder has no checkpoint
	BackfillLimit              int           `env:"SYNC_BACKFILL_LIMIT" envDefault:"500"`
	BackfillPartTimeout        time.Duration `env:"SYNC_BACKFILL_PART_TIMEOUT" envDefault:"60s"`
	IncrementalPartTimeout     time.Duration `env:"SYNC_INCREMENTAL_PART_TIMEOUT" envDefault:"10s"`
	PartFetchAttempts          int           `env:"SYNC_PART_FETCH_ATTEMPTS" envDefault:"3"`
	PartFetchDelay             time.Duration `env:"SYNC_PART_FETCH_DELAY" envDefault:"1s"`
	FetchBatchSize             int           `env:"SYNC_FETCH_BATCH_SIZE" envDefault:"20"`
	ManualRefreshInterval      time.Duration `env:"SYNC_MANUAL_REFRESH_INTERVAL" envDefault:"30s"`
	MaxErrorsReported          int           `env:"SYNC_MAX_ERRORS_REPORTED" envDefault:"20"`
	ThreadSubjectWindow        time.Duration `env:"SYNC_THREAD_SUBJECT_WINDOW" envDefault:"60s"`
	OrderNumberMaxPadWidth     int           `env:"SYNC_ORDER_PAD_WIDTH" envDefault:"6"`
	ConnectTimeout             time.Duration `env:"SYNC_IMAP_CONNECT_TIMEOUT" envDefault:"30s"`
	AttachmentDownloadTimeout  time.Duration `env:"SYNC_ATTACHMENT_DOWNLOAD_TIMEOUT" envDefault:"60s"`
	DefaultFolders             []string      `env:"SYNC_DEFAULT_FOLDERS" envDefault:"INBOX"`
	PublishImportedEvents      bool          `env:"SYNC_PUBLISH_IMPORTED_EVENTS" envDefault:"true"`
	MaxBackfillLimitPerRequest int           `env:"SYNC_MAX_BACKFILL_LIMIT" envDefault:"5000"`
}

// DefaultSyncConfig mirrors the env defaults, for callers that do not parse the environment.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		BackfillLimit:              500,
		BackfillPartTimeout:        60 * time.Second,
		IncrementalPartTimeout:     10 * time.Second,
		PartFetchAttempts:          3,
		PartFetchDelay:             time.Second,
		FetchBatchSize:             20,
		ManualRefreshInterval:      30 * time.Second,
		MaxErrorsReported:          20,
		ThreadSubjectWindow:        60 * time.Second,
		OrderNumberMaxPadWidth:     6,
		ConnectTimeout:             30 * time.Second,
		AttachmentDownloadTimeout:  60 * time.Second,
		DefaultFolders:             []string{"INBOX"},
		PublishImportedEvents:      true,
		MaxBackfillLimitPerRequest: 5000,
	}
}
