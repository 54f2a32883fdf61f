package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/httpintercept/internal/errx"
)

const envPrefix = "HTTPINTERCEPT"

var (
	cfgFile   string
	configErr error
)

var rootCmd = &cobra.Command{
	Use:   "httpintercept",
	Short: "Preprocess, stub and map outgoing HTTP requests",
	Long: `httpintercept applies a rules file to HTTP traffic.

Rules rewrite requests before they are sent, answer them with canned
responses, fail them, or serve them from local files. Use "fetch" for a
single request or "proxy" to run a forward proxy.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return configErr
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (YAML, TOML or JSON)")
	pf.String("rules", "", "Rules file (YAML)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "auto", "Log format (auto, text, json)")
	pf.String("log-file", "", "Also write JSON logs to this file, rotated")
	pf.String("events", "", "Record structured events to this file (.jsonl or .db)")
	pf.String("run-id", "", "Run ID stamped on events (default: random)")

	viper.BindPFlag("rules", pf.Lookup("rules"))
	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("log.format", pf.Lookup("log-format"))
	viper.BindPFlag("log.file", pf.Lookup("log-file"))
	viper.BindPFlag("events", pf.Lookup("events"))
	viper.BindPFlag("run-id", pf.Lookup("run-id"))

	viper.SetDefault("log.max-size-mb", 50)
	viper.SetDefault("log.max-backups", 3)
	viper.SetDefault("log.max-age-days", 28)
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile == "" {
		cfgFile = os.Getenv(envPrefix + "_CONFIG")
	}
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		configErr = errx.Wrap(ErrReadConfig, err)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
