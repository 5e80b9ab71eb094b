package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/notify"
	"github.com/farellandr/showticket/internal/payments"
	"github.com/farellandr/showticket/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/xendit/xendit-go/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	StorageLocal = "local"
	StorageFTP   = "ftp"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	Port          string
	BaseURL       string
	JWTSecret     string
	AdminEmail    string
	AdminPassword string
	LogLevel      string

	PaymentProvider string
	PaymentTTL      time.Duration
	Currency        string
	DedupeWindow    time.Duration
	PagBank         payments.PagBankConfig
	Xendit          XenditConfig

	StorageDriver     string
	StorageDir        string
	StoragePublicBase string
	FTP               storage.FTPConfig

	RedisAddr     string
	RedisPassword string
	SMTP          notify.SMTPConfig
}

type XenditConfig struct {
	SecretKey     string
	CallbackToken string
	Timeout       time.Duration
}

func envStr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(envStr(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(envStr(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

// envDuration accepts Go durations ("90s") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	raw := envStr(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func Load() *Config {
	baseURL := strings.TrimRight(envStr("BASE_URL", "http://localhost:8080"), "/")
	storageDir := envStr("STORAGE_DIR", "./storage/tickets")

	return &Config{
		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envStr("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		Port:          envStr("PORT", "8080"),
		BaseURL:       baseURL,
		JWTSecret:     os.Getenv("JWT_SECRET"),
		AdminEmail:    strings.ToLower(envStr("ADMIN_EMAIL", "")),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		LogLevel:      envStr("LOG_LEVEL", "info"),

		PaymentProvider: strings.ToLower(envStr("PAYMENT_PROVIDER", payments.ProviderPagBank)),
		PaymentTTL:      time.Duration(envInt("PAYMENT_EXPIRES_MINUTES", 30)) * time.Minute,
		Currency:        envStr("CURRENCY", "BRL"),
		DedupeWindow:    envDuration("DEDUPE_WINDOW", 120*time.Second),
		PagBank: payments.PagBankConfig{
			Env:           envStr("PAGBANK_ENV", "sandbox"),
			Token:         os.Getenv("PAGBANK_TOKEN"),
			WebhookToken:  os.Getenv("PAGBANK_WEBHOOK_TOKEN"),
			MerchantEmail: os.Getenv("PAGBANK_MERCHANT_EMAIL"),
		},
		Xendit: XenditConfig{
			SecretKey:     os.Getenv("XENDIT_SECRET_KEY"),
			CallbackToken: os.Getenv("XENDIT_CALLBACK_TOKEN"),
			Timeout:       envDuration("XENDIT_TIMEOUT", 20*time.Second),
		},

		StorageDriver:     strings.ToLower(envStr("STORAGE_DRIVER", StorageLocal)),
		StorageDir:        storageDir,
		StoragePublicBase: envStr("STORAGE_PUBLIC_BASE", baseURL+"/files"),
		FTP: storage.FTPConfig{
			Host:       os.Getenv("FTP_HOST"),
			Port:       envInt("FTP_PORT", 21),
			Username:   os.Getenv("FTP_USERNAME"),
			Password:   os.Getenv("FTP_PASSWORD"),
			Dir:        envStr("FTP_DIR", "/"),
			TLS:        envBool("FTP_TLS", false),
			PublicBase: os.Getenv("FTP_PUBLIC_BASE"),
			Timeout:    envDuration("FTP_TIMEOUT", 20*time.Second),
		},

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		SMTP: notify.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
			FromName: envStr("SMTP_FROM_NAME", "Ingressos"),
			Timeout:  envDuration("SMTP_TIMEOUT", 10*time.Second),
		},
	}
}

// Validate reports every missing required setting at once.
func (cfg *Config) Validate() error {
	var errs []error
	require := func(value, name string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	require(cfg.BaseURL, "BASE_URL")
	require(cfg.JWTSecret, "JWT_SECRET")
	require(cfg.DBUser, "DB_USER")
	require(cfg.DBName, "DB_NAME")

	switch cfg.PaymentProvider {
	case payments.ProviderPagBank:
		require(cfg.PagBank.Token, "PAGBANK_TOKEN")
	case payments.ProviderXendit:
		require(cfg.Xendit.SecretKey, "XENDIT_SECRET_KEY")
		require(cfg.Xendit.CallbackToken, "XENDIT_CALLBACK_TOKEN")
	default:
		errs = append(errs, fmt.Errorf("PAYMENT_PROVIDER %q is not supported", cfg.PaymentProvider))
	}

	switch cfg.StorageDriver {
	case StorageLocal:
		require(cfg.StorageDir, "STORAGE_DIR")
	case StorageFTP:
		require(cfg.FTP.Host, "FTP_HOST")
		require(cfg.FTP.PublicBase, "FTP_PUBLIC_BASE")
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER %q is not supported", cfg.StorageDriver))
	}

	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD go together"))
	}
	if cfg.PaymentTTL <= 0 {
		errs = append(errs, errors.New("PAYMENT_EXPIRES_MINUTES must be positive"))
	}
	return errors.Join(errs...)
}

func InitXenditClient(cfg XenditConfig) *xendit.APIClient {
	return xendit.NewClient(cfg.SecretKey)
}

// InitRedis returns nil when REDIS_ADDR is not set.
func InitRedis(cfg *Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
}

func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error
}

func OpenDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)
	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

func Migrate(db *gorm.DB) error {
	if err := enableUUIDExtension(db); err != nil {
		return err
	}
	return db.AutoMigrate(
		&models.Role{}, &models.User{},
		&models.Event{}, &models.Show{},
		&models.Purchase{}, &models.Payment{}, &models.Ticket{},
		&models.WebhookEvent{},
	)
}

func InitDatabase(cfg *Config) (*gorm.DB, error) {
	db, err := OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	if err := seedAdmin(db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return nil, err
	}
	return db, nil
}

// seedAdmin creates the admin role and, when configured, the operator.
// An existing operator keeps its password.
func seedAdmin(db *gorm.DB, email, password string) error {
	var role models.Role
	if err := db.Where(models.Role{Name: models.RoleNameAdmin}).FirstOrCreate(&role).Error; err != nil {
		return err
	}
	if email == "" {
		return nil
	}

	var existing models.User
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.Create(&models.User{
		Name:     "Admin",
		Email:    email,
		Password: string(hashed),
		RoleID:   role.ID,
	}).Error
}
