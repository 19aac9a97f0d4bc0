package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	app = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Configure sets the level (trace..fatal) and format (text|json) of the
// application logger. Unknown levels fall back to info.
func Configure(level string, format string) {
	l := newDefault()
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	mu.Lock()
	app = l
	mu.Unlock()

	if err != nil && level != "" {
		l.WithField("level", level).Warn("unknown log level, using info")
	}
}

func Get() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return app
}

func WithModule(module string) *logrus.Entry {
	return Get().WithField("module", module)
}
