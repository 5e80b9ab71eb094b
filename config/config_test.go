package config

import (
	"testing"
	"time"

	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_USER", "showticket")
	t.Setenv("DB_NAME", "showticket")
	t.Setenv("PAGBANK_TOKEN", "token")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("BASE_URL", "https://tickets.example.com/")
	t.Setenv("DEDUPE_WINDOW", "90")
	t.Setenv("FTP_TLS", "true")

	cfg := Load()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://tickets.example.com", cfg.BaseURL)
	assert.Equal(t, "https://tickets.example.com/files", cfg.StoragePublicBase)
	assert.Equal(t, payments.ProviderPagBank, cfg.PaymentProvider)
	assert.Equal(t, 30*time.Minute, cfg.PaymentTTL)
	assert.Equal(t, 90*time.Second, cfg.DedupeWindow)
	assert.Equal(t, "BRL", cfg.Currency)
	assert.Equal(t, StorageLocal, cfg.StorageDriver)
	assert.True(t, cfg.FTP.TLS)
	assert.Equal(t, 21, cfg.FTP.Port)
}

func TestValidateReportsEverything(t *testing.T) {
	t.Setenv("PAYMENT_PROVIDER", "xendit")
	t.Setenv("STORAGE_DRIVER", "ftp")
	t.Setenv("ADMIN_EMAIL", "ops@example.com")

	err := Load().Validate()
	require.Error(t, err)
	for _, want := range []string{
		"JWT_SECRET", "DB_USER", "DB_NAME",
		"XENDIT_SECRET_KEY", "XENDIT_CALLBACK_TOKEN",
		"FTP_HOST", "FTP_PUBLIC_BASE", "ADMIN_PASSWORD",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateUnknownDrivers(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYMENT_PROVIDER", "paypal")
	t.Setenv("STORAGE_DRIVER", "s3")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `PAYMENT_PROVIDER "paypal"`)
	assert.Contains(t, err.Error(), `STORAGE_DRIVER "s3"`)
}

func TestSeedAdmin(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Role{}, &models.User{}))

	require.NoError(t, seedAdmin(db, "ops@example.com", "first"))
	require.NoError(t, seedAdmin(db, "ops@example.com", "second"))

	var users []models.User
	require.NoError(t, db.Preload("Role").Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, models.RoleNameAdmin, users[0].Role.Name)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].Password), []byte("first")))

	var roles int64
	require.NoError(t, db.Model(&models.Role{}).Count(&roles).Error)
	assert.Equal(t, int64(1), roles)
}
