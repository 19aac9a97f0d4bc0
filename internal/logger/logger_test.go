package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestConfigureSetsLevelAndFormat(t *testing.T) {
	t.Cleanup(func() { Configure("info", "text") })

	Configure("debug", "json")
	assert.Equal(t, logrus.DebugLevel, Get().GetLevel())
	_, isJSON := Get().Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}

func TestConfigureFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() { Configure("info", "text") })

	Configure("chatty", "text")
	assert.Equal(t, logrus.InfoLevel, Get().GetLevel())
	assert.Equal(t, "service", WithModule("service").Data["module"])
}
