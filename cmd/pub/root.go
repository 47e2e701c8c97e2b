package pub

import (
	"bufio"
	"fmt"
	"github.com/ValentinKolb/dMQ/cmd/util"
	"github.com/ValentinKolb/dMQ/rpc/pubsub"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"strings"
	"time"
)

var (
	// PubCmd publishes lines from stdin
	PubCmd = &cobra.Command{
		Use:   "pub",
		Short: "Publish every line read from stdin",
		Long: `Publish every line read from stdin as a message. With --topic each line is sent as the
message [topic, line]. Without it, a line "topic payload" is split at the first space
into [topic, payload]; lines without a space are sent as a single part.`,
		RunE: run,
	}
)

func init() {
	util.SetupSocketFlags(PubCmd)

	key := "topic"
	PubCmd.Flags().String(key, "", util.WrapString("Topic prepended to every line"))

	key = "linger-ms"
	PubCmd.Flags().Int(key, 200, util.WrapString("Time in milliseconds to wait after the last line so buffered messages reach the peers"))
}

func run(cmd *cobra.Command, _ []string) error {
	stopMetrics, err := util.StartMetricsEndpoint(viper.GetString("metrics-endpoint"))
	if err != nil {
		return err
	}
	defer stopMetrics()

	p := pubsub.NewPubSocket(util.GetSocketConfig())
	util.LogEvents(p.Socket)
	if err := util.Open(p.Socket); err != nil {
		return err
	}

	sent, err := publish(p, cmd.InOrStdin(), viper.GetString("topic"))
	if err != nil {
		_ = p.Close()
		return err
	}

	time.Sleep(time.Duration(viper.GetInt("linger-ms")) * time.Millisecond)
	if queued := p.Queued(); queued > 0 {
		util.Logger.Warningf("%d messages were never sent, no peer connected", queued)
	}
	util.PrintStats(p.Socket)
	util.Logger.Infof("Published %d messages", sent)
	return p.Close()
}

// publish sends every line of r and returns the number of sent lines
func publish(p pubsub.ISender, r io.Reader, topic string) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	sent := 0
	for scanner.Scan() {
		if err := p.SendStrings(parts(scanner.Text(), topic)...); err != nil {
			return sent, fmt.Errorf("failed to publish line %d: %w", sent+1, err)
		}
		sent++
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return sent, fmt.Errorf("failed to read input: %w", err)
	}
	return sent, nil
}

// parts turns an input line into message parts
func parts(line, topic string) []string {
	if topic != "" {
		return []string{topic, line}
	}
	if name, payload, ok := strings.Cut(line, " "); ok {
		return []string{name, payload}
	}
	return []string{line}
}
