package common

import (
	"bytes"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSocketConfig(t *testing.T) {
	config := DefaultSocketConfig()

	assert.True(t, config.Unbounded())
	assert.Equal(t, strconv.Itoa(os.Getpid()), config.Identity)
	assert.Equal(t, DefaultRetryBaseDelay, config.RetryBaseDelay)
	assert.Equal(t, DefaultRetryMaxDelay, config.RetryMaxDelay)

	report := config.String()
	assert.Contains(t, report, "unbounded")
	assert.Contains(t, report, "100ms")

	config.HighWaterMark = 10
	config.RetryBaseDelay = 0
	assert.False(t, config.Unbounded())
	assert.Contains(t, config.String(), "disabled")
}

func TestSocketConfigWithDefaults(t *testing.T) {
	config := SocketConfig{}.WithDefaults()

	assert.Equal(t, UnboundedHighWaterMark, config.HighWaterMark)
	assert.True(t, config.Unbounded())
	assert.Equal(t, DefaultSendBufferSize, config.SendBufferSize)
	assert.Equal(t, DefaultReadBufferSize, config.ChunkSize)
	assert.EqualValues(t, DefaultMaxPartSize, config.MaxPartSize)
	assert.Equal(t, DefaultDialTimeout, config.DialTimeout)
	assert.Equal(t, DefaultSendTimeout, config.SendTimeout)
	assert.Zero(t, config.RetryBaseDelay, "reconnection stays disabled")
	assert.Zero(t, config.TCPConf.TCPLingerSec, "linger stays at the system default")
	assert.Contains(t, config.String(), "system default")

	// set values are kept
	config = SocketConfig{HighWaterMark: 3, SendBufferSize: 8, RetryBaseDelay: time.Second, RetryMaxDelay: time.Millisecond}.WithDefaults()
	assert.Equal(t, 3, config.HighWaterMark)
	assert.Equal(t, 8, config.SendBufferSize)
	assert.Equal(t, time.Second, config.RetryMaxDelay, "max delay is raised to the base delay")
}

func TestParseLogLevel(t *testing.T) {
	for input, expected := range map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	} {
		level, err := ParseLogLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, level, input)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
	assert.Error(t, InitLoggers("verbose"))
	assert.NoError(t, InitLoggers("error"))
}

func TestLoggerLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(os.Stderr)

	l := CreateLogger("socket")
	l.Debugf("hidden at info")
	l.SetLevel(logger.WARNING)
	l.Infof("hidden at warning")
	l.Warningf("lost %s", "peer")
	l.Errorf("failed %d times", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "WARN  [socket] lost peer")
	assert.Contains(t, lines[1], "ERROR [socket] failed 3 times")
	_, err := time.Parse(timeLayout, lines[0][:len(timeLayout)])
	assert.NoError(t, err)

	assert.PanicsWithValue(t, "broken invariant", func() { l.Panicf("broken %s", "invariant") })
	assert.Contains(t, buf.String(), "PANIC [socket] broken invariant")
}
