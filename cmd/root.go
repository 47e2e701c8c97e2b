package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dMQ/cmd/perf"
	"github.com/ValentinKolb/dMQ/cmd/pub"
	"github.com/ValentinKolb/dMQ/cmd/sub"
	"github.com/ValentinKolb/dMQ/cmd/util"
	"github.com/ValentinKolb/dMQ/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dmq",
		Short: "peer-to-peer publish/subscribe messaging",
		Long: fmt.Sprintf(`dMQ (v%s)

A brokerless publish/subscribe messaging library written in Go. Sockets bind
or connect over TCP or Unix domain sockets, reconnect automatically and
exchange length-prefixed multipart messages.`, Version),
		PersistentPreRunE: setup,
		SilenceUsage:      true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dMQ",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dMQ v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(pub.PubCmd)
	RootCmd.AddCommand(sub.SubCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
	key = "metrics-endpoint"
	RootCmd.PersistentFlags().String(key, "", util.WrapString("Address to serve Prometheus metrics on (e.g. :9100), disabled if empty"))
}

// setup binds the flags of the executed command and configures the loggers
func setup(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	return common.InitLoggers(viper.GetString("log-level"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
