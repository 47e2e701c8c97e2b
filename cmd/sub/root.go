package sub

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dMQ/cmd/util"
	"github.com/ValentinKolb/dMQ/rpc/framing"
	"github.com/ValentinKolb/dMQ/rpc/pubsub"
	"github.com/ValentinKolb/dMQ/rpc/socket"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"os/signal"
	"strings"
	"syscall"
)

var (
	// SubCmd prints received messages
	SubCmd = &cobra.Command{
		Use:   "sub",
		Short: "Print every received message to stdout",
		Long: `Print every received message to stdout until interrupted. Messages are printed as
tab separated parts (--format text) or as a JSON array of strings (--format json).`,
		RunE: run,
	}
)

func init() {
	util.SetupSocketFlags(SubCmd)

	key := "subscribe"
	SubCmd.Flags().StringSlice(key, nil, util.WrapString("Comma-separated list of topic patterns, * matches one or more characters (default: all topics)"))

	key = "format"
	SubCmd.Flags().String(key, "text", util.WrapString("Output format (text, json)"))
}

func run(cmd *cobra.Command, _ []string) error {
	format := viper.GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %s", format)
	}

	stopMetrics, err := util.StartMetricsEndpoint(viper.GetString("metrics-endpoint"))
	if err != nil {
		return err
	}
	defer stopMetrics()

	s := pubsub.NewSubSocket(util.GetSocketConfig())
	for _, pattern := range viper.GetStringSlice("subscribe") {
		if pattern = strings.TrimSpace(pattern); pattern != "" {
			s.Subscribe(pattern)
		}
	}

	out := cmd.OutOrStdout()
	util.LogEvents(s.Socket)
	s.On(socket.EventMessage, func(ev socket.Event) {
		if err := printMessage(out, ev.Message, format); err != nil {
			util.Logger.Errorf("Failed to print message: %v", err)
		}
	})

	if err := util.Open(s.Socket); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	err = s.Close()
	<-s.Done()
	util.PrintStats(s.Socket)
	return err
}

// printMessage writes msg as a single line
func printMessage(w io.Writer, msg framing.Message, format string) error {
	var err error
	switch format {
	case "json":
		var line []byte
		if line, err = json.Marshal(msg.Strings()); err == nil {
			_, err = fmt.Fprintln(w, string(line))
		}
	default:
		_, err = fmt.Fprintln(w, strings.Join(msg.Strings(), "\t"))
	}
	return err
}
