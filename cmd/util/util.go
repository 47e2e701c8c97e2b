package util

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMQ/lib/telemetry"
	"github.com/ValentinKolb/dMQ/rpc/common"
	"github.com/ValentinKolb/dMQ/rpc/socket"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net/http"
	"slices"
	"strings"
	"time"
)

var Logger = logger.GetLogger("cli")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Flags & Configuration
// --------------------------------------------------------------------------

// SetupSocketFlags adds the socket flags shared by pub and sub to a command
func SetupSocketFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "tcp://127.0.0.1:3000", WrapString("The address to bind or connect to (tcp://host:port, host:port, :port or unix:///path)"))

	key = "bind"
	cmd.PersistentFlags().Bool(key, false, WrapString("Bind to the endpoint instead of connecting to it"))

	key = "identity"
	cmd.PersistentFlags().String(key, "", WrapString("Descriptive name of the socket used in logs (defaults to the process id)"))

	key = "hwm"
	cmd.PersistentFlags().Int(key, common.UnboundedHighWaterMark, WrapString("Maximum number of messages buffered before the socket is ready, further messages are dropped (0 or negative = unbounded)"))

	key = "retry-base-ms"
	cmd.PersistentFlags().Int(key, int(common.DefaultRetryBaseDelay/time.Millisecond), WrapString("Initial reconnect delay in milliseconds (0 disables reconnecting)"))

	key = "retry-max-ms"
	cmd.PersistentFlags().Int(key, int(common.DefaultRetryMaxDelay/time.Millisecond), WrapString("Maximum reconnect delay in milliseconds"))

	key = "send-buffer"
	cmd.PersistentFlags().Int(key, common.DefaultSendBufferSize, WrapString("Number of frames a connection buffers before it is skipped by broadcasts"))

	key = "max-part-size"
	cmd.PersistentFlags().Int(key, common.DefaultMaxPartSize/1024, WrapString("Largest accepted message part (in KB)"))

	key = "write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the OS write buffer (in KB, 0 = system default)"))

	key = "read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the OS read buffer (in KB, 0 = system default)"))

	key = "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (tcp only)"))

	key = "tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, tcp only)"))

	key = "tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time (in seconds, tcp only, 0 = system default)"))
}

// InitConfig loads .env files and makes viper read DMQ_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dmq")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetSocketConfig reads the socket configuration from viper
func GetSocketConfig() common.SocketConfig {
	conf := common.DefaultSocketConfig()

	if identity := viper.GetString("identity"); identity != "" {
		conf.Identity = identity
	}
	conf.HighWaterMark = viper.GetInt("hwm")
	conf.RetryBaseDelay = time.Duration(viper.GetInt("retry-base-ms")) * time.Millisecond
	conf.RetryMaxDelay = time.Duration(viper.GetInt("retry-max-ms")) * time.Millisecond
	conf.SendBufferSize = viper.GetInt("send-buffer")
	conf.MaxPartSize = uint32(viper.GetInt("max-part-size")) * 1024
	conf.SocketConf = common.SocketConf{
		WriteBufferSize: viper.GetInt("write-buffer") * 1024,
		ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
	}
	conf.TCPConf = common.TCPConf{
		TCPNoDelay:      viper.GetBool("tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
		TCPLingerSec:    viper.GetInt("tcp-linger"),
	}

	return conf
}

// --------------------------------------------------------------------------
// Runtime helpers
// --------------------------------------------------------------------------

// Open binds or connects the socket depending on the bind flag
func Open(s *socket.Socket) error {
	endpoint := viper.GetString("endpoint")
	if viper.GetBool("bind") {
		if err := s.Bind(endpoint); err != nil {
			return err
		}
		Logger.Infof("Listening on %s", s.AddressString())
		return nil
	}
	return s.Connect(endpoint)
}

// LogEvents logs the lifecycle events of a socket
func LogEvents(s *socket.Socket) {
	s.On(socket.EventConnect, func(ev socket.Event) {
		Logger.Infof("Connected to %s", ev.Remote)
	})
	s.On(socket.EventDisconnect, func(ev socket.Event) {
		Logger.Infof("Peer %s disconnected", ev.Remote)
	})
	s.On(socket.EventReconnectAttempt, func(ev socket.Event) {
		Logger.Infof("Reconnecting to %s (after %v)", ev.Addr, ev.Delay)
	})
	s.On(socket.EventDrop, func(ev socket.Event) {
		Logger.Warningf("Dropped message %q, queue is full", ev.Message.Topic())
	})
	s.On(socket.EventFlush, func(ev socket.Event) {
		Logger.Infof("Sent %d queued messages", len(ev.Batch))
	})
}

// StartMetricsEndpoint serves the Prometheus metrics on addr (e.g. ":9100") if
// addr is not empty. The returned function stops the server.
func StartMetricsEndpoint(addr string) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	// surface immediate bind errors
	select {
	case err := <-errCh:
		return nil, fmt.Errorf("failed to start metrics endpoint: %w", err)
	case <-time.After(50 * time.Millisecond):
	}

	Logger.Infof("Serving metrics on http://%s/metrics", addr)
	return func() {
		if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Warningf("Failed to stop metrics endpoint: %v", err)
		}
	}, nil
}

// PrintStats writes the statistics of a socket to the log
func PrintStats(s *socket.Socket) {
	snapshot := s.Stats().Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		Logger.Infof("%-20s %d", k, snapshot[k])
	}
}
