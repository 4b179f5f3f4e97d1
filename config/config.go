package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	MySQL    MySQLConfig
	Log      LogConfig
	Site     SiteConfig
	Pesapal  PesapalConfig
	Mpesa    MpesaConfig
	Card     CardConfig
	Payments PaymentsConfig
	Jobs     JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

// SiteConfig points at the public marketing site; the payment status page the
// browser lands on after a gateway redirect lives there.
type SiteConfig struct {
	BaseURL string
}

type PesapalConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	Live           bool
	IPNID          string
	HTTPTimeout    time.Duration
}

type MpesaConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	Live           bool
	HTTPTimeout    time.Duration
}

type CardConfig struct {
	SecretKey   string
	HTTPTimeout time.Duration
}

type PaymentsConfig struct {
	// CallbackBaseURL is this service's own public base URL; gateway
	// callback and IPN targets are built from it.
	CallbackBaseURL     string
	BankTransferDetails string
	PendingTimeout      time.Duration
	ReconcileStaleAfter time.Duration
	JobBatchSize        int32
}

type JobsConfig struct {
	ReconcileInterval     time.Duration
	ExpirePendingInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "bookings-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Site: SiteConfig{
			BaseURL: getEnv("SITE_BASE_URL", ""),
		},
		Pesapal: PesapalConfig{
			ConsumerKey:    getEnv("PESAPAL_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("PESAPAL_CONSUMER_SECRET", ""),
			Live:           getBoolEnv("PESAPAL_LIVE", false),
			IPNID:          getEnv("PESAPAL_IPN_ID", ""),
			HTTPTimeout:    getSecondsEnv("PESAPAL_HTTP_TIMEOUT_SECONDS", 15*time.Second),
		},
		Mpesa: MpesaConfig{
			ConsumerKey:    getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("MPESA_CONSUMER_SECRET", ""),
			ShortCode:      getEnv("MPESA_SHORT_CODE", ""),
			Passkey:        getEnv("MPESA_PASSKEY", ""),
			Live:           getBoolEnv("MPESA_LIVE", false),
			HTTPTimeout:    getSecondsEnv("MPESA_HTTP_TIMEOUT_SECONDS", 15*time.Second),
		},
		Card: CardConfig{
			SecretKey:   getEnv("CARD_SECRET_KEY", ""),
			HTTPTimeout: getSecondsEnv("CARD_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Payments: PaymentsConfig{
			CallbackBaseURL:     getEnv("PAYMENTS_CALLBACK_BASE_URL", ""),
			BankTransferDetails: getEnv("PAYMENTS_BANK_TRANSFER_DETAILS", ""),
			PendingTimeout:      getMinutesEnv("PAYMENTS_PENDING_TIMEOUT_MINUTES", 24*60*time.Minute),
			ReconcileStaleAfter: getMinutesEnv("PAYMENTS_RECONCILE_STALE_AFTER_MINUTES", 15*time.Minute),
			JobBatchSize:        int32(getIntEnv("PAYMENTS_JOB_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			ReconcileInterval:     getMinutesEnv("PAYMENTS_RECONCILE_INTERVAL_MINUTES", 5*time.Minute),
			ExpirePendingInterval: getMinutesEnv("PAYMENTS_EXPIRE_PENDING_INTERVAL_MINUTES", 30*time.Minute),
		},
	}, nil
}

// ValidateServe checks settings the HTTP serving path cannot run without.
// Gateway callback and IPN targets are absolute URLs built from
// CallbackBaseURL; serving without it would hand providers relative paths.
func (c *Config) ValidateServe() error {
	if c.Payments.CallbackBaseURL == "" {
		return errors.New("PAYMENTS_CALLBACK_BASE_URL environment variable is required to serve")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
