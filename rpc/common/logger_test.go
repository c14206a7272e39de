package common

import (
	"bytes"
	"log"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggersRepeatedly(t *testing.T) {
	// every server in a process initializes the loggers
	for _, level := range []string{"info", "debug", "warn", "error"} {
		require.NotPanics(t, func() {
			require.NoError(t, InitLoggers(level))
		})
	}
	assert.Error(t, InitLoggers("verbose"))
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := &dCheckLogger{name: "checkout", level: logger.WARNING, logger: log.New(&buf, "", 0)}

	l.Infof("hidden")
	l.Warningf("table %s changed", "ent5")
	assert.Equal(t, "WARN  | checkout        | table ent5 changed\n", buf.String())

	buf.Reset()
	l.SetLevel(logger.DEBUG)
	l.Debugf("shown")
	assert.Contains(t, buf.String(), "shown")
}
