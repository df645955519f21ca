package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/liamg/stormscan/config"
	"github.com/liamg/stormscan/failure"
	"github.com/liamg/stormscan/version"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var debug bool
var noResolve bool
var versionRequested bool
var environmentConfig string
var envFile string
var logFile string
var logFormat = "text"

// logger is built in PersistentPreRunE and shared by every subcommand.
var logger = log.New()
var closeLog = func() error { return nil }

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", debug, "Enable debugging")
	rootCmd.PersistentFlags().BoolVarP(&versionRequested, "version", "", versionRequested, "Output version information and exit")
	rootCmd.PersistentFlags().StringVarP(&environmentConfig, "environment-config", "e", environmentConfig, "YAML file describing execution environment")
	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "", envFile, "Dotenv file to load before reading the provider token")
	rootCmd.PersistentFlags().BoolVarP(&noResolve, "no-resolve", "R", noResolve, "Do not resolve IP address to FQDN")
	rootCmd.PersistentFlags().StringVarP(&logFile, "log-file", "", logFile, "Also write logs to this file, rotated")
	rootCmd.PersistentFlags().StringVarP(&logFormat, "log-format", "", logFormat, "Log format. Must be one of text, json")

	rootCmd.AddCommand(
		newScanCmd(),
		newCleanupCmd(),
		newHistoryCmd(),
	)
}

var rootCmd = &cobra.Command{
	Use:           "stormscan",
	Short:         "Stormscan is masscan in a box",
	Long:          `Runs masscan on a throwaway cloud server and stores the open ports of every host it finds.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, closer, err := newLogger(logOptions{
			debug:  debug,
			format: logFormat,
			file:   logFile,
		}, os.Stderr)
		if err != nil {
			return err
		}
		logger = l
		closeLog = closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionRequested {
			printVersion(cmd.OutOrStdout())
			return nil
		}
		return cmd.Help()
	},
}

func printVersion(w io.Writer) {
	v := version.Version
	if v == "" {
		v = "development version"
	}
	fmt.Fprintf(w, "stormscan %s\n", v)
}

// loadEnvironment reads the dotenv file, if any, and then the environment config.
func loadEnvironment() (*config.Environment, error) {
	if environmentConfig == "" {
		return nil, fmt.Errorf("an environment config is required (-e)")
	}
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	return config.LoadEnvironment(environmentConfig)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorMessage(err))
		closeLog()
		os.Exit(1)
	}
}

// errorMessage adds a hint for the failures an operator can act on.
func errorMessage(err error) string {
	msg := fmt.Sprintf("Error: %s", err)
	switch failure.KindOf(err) {
	case failure.KindConfig:
		return msg + "\nCheck the command line flags and the environment config."
	case failure.KindProvision:
		return msg + "\nIf a server was left behind, remove it with the cleanup command."
	case failure.KindConnectivity:
		return msg + "\nCheck the ssh private key and the ssh and readiness settings."
	}
	return msg
}
