package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestAppLogger_LevelMapping(t *testing.T) {
	l := NewAppLogger(&Config{LogLevel: "warn"})
	assert.Equal(t, zapcore.WarnLevel, l.getLoggerLevel())

	l = NewAppLogger(&Config{LogLevel: "nonsense"})
	assert.Equal(t, zapcore.InfoLevel, l.getLoggerLevel())
}

func TestAppLogger_InitAndWith(t *testing.T) {
	l := NewAppLogger(&Config{DevMode: true})
	l.InitLogger()

	assert.NotNil(t, l.Logger())

	child := l.With("mailbox", "mbox_1")
	assert.NotNil(t, child.Logger())
	child.Infof("child logger for %s", "mbox_1")
}

func TestNewAppLogger_NilConfig(t *testing.T) {
	l := NewAppLogger(nil)
	l.InitLogger()
	assert.NotNil(t, l.Logger())
}
