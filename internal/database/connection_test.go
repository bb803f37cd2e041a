package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"

	"github.com/customeros/mailsync/config"
)

func TestValidateConfig(t *testing.T) {
	valid := &config.MailsyncDatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "mailsync",
		DBName:   "mailsync",
		Password: "secret",
		SSLMode:  "disable",
	}
	assert.NoError(t, validateConfig(valid))
	assert.Error(t, validateConfig(nil))

	missingHost := *valid
	missingHost.Host = ""
	assert.EqualError(t, validateConfig(&missingHost), "database host config is empty")
}

func TestNewConnection_InvalidPort(t *testing.T) {
	_, err := NewConnection(&config.MailsyncDatabaseConfig{
		Host:     "localhost",
		Port:     "not-a-port",
		User:     "mailsync",
		DBName:   "mailsync",
		Password: "secret",
		SSLMode:  "disable",
	})
	assert.ErrorContains(t, err, "invalid port number")
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Warn, gormLogLevel("WARN"))
	assert.Equal(t, logger.Info, gormLogLevel("info"))
	assert.Equal(t, logger.Silent, gormLogLevel("SILENT"))
	assert.Equal(t, logger.Warn, gormLogLevel(""))
}
