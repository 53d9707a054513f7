package logger

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradoverse/broker-gateway/pkg/config"
)

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(&config.LoggingConfig{Level: "loud", Format: "json", Output: "stdout"})
	assert.Error(t, err)
}

func TestNewAppliesLevelAndFormat(t *testing.T) {
	log, err := New(&config.LoggingConfig{Level: "debug", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestTextFormatterRendersFields(t *testing.T) {
	f := &textFormatter{
		TextFormatter: logrus.TextFormatter{TimestampFormat: "2006-01-02 15:04:05"},
	}
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
		Level:   logrus.InfoLevel,
		Message: "order routed",
		Data:    logrus.Fields{"broker": "ALPACA"},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	line := string(out)

	assert.Contains(t, line, "2026-08-27 12:00:00")
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "order routed")
	assert.Contains(t, line, "broker=ALPACA")
	assert.NotContains(t, line, "%!", "every format verb must consume its argument")
	assert.True(t, strings.HasSuffix(line, "\n"))
}
