package config

type AppConfig struct {
	APIPort     string `env:"PORT,required" envDefault:"12222"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type DatabaseConfig struct {
	Host            string `env:"MAILBACKUP_POSTGRES_HOST,required"`
	Port            string `env:"MAILBACKUP_POSTGRES_PORT" envDefault:"5432"`
	User            string `env:"MAILBACKUP_POSTGRES_USER,required"`
	DBName          string `env:"MAILBACKUP_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILBACKUP_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILBACKUP_POSTGRES_DB_MAX_CONN" envDefault:"25"`
	MaxIdleConn     int    `env:"MAILBACKUP_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"MAILBACKUP_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"MAILBACKUP_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILBACKUP_POSTGRES_SSL_MODE" envDefault:"require"`
}

// StorageConfig selects where raw .eml files are written. Backend is one of
// filesystem, s3 or r2.
type StorageConfig struct {
	Backend         string `env:"STORAGE_BACKEND" envDefault:"filesystem"`
	Root            string `env:"STORAGE_ROOT" envDefault:"./data"`
	Bucket          string `env:"STORAGE_BUCKET" envDefault:"mailbackup"`
	Region          string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"STORAGE_ENDPOINT"`
	AccessKeyID     string `env:"STORAGE_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"STORAGE_ACCESS_KEY_SECRET"`
	R2AccountID     string `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
}

type SyncConfig struct {
	MaxParallelAccounts int `env:"SYNC_MAX_PARALLEL_ACCOUNTS" envDefault:"4"`
	RunHistoryLimit     int `env:"SYNC_RUN_HISTORY_LIMIT" envDefault:"20"`
}
