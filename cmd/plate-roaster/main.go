// Command plate-roaster captures, compresses, roasts and renders plate photos
// from the command line, and can serve the roast HTTP function.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	plateroaster "github.com/menta2k/plate-roaster"
	"github.com/menta2k/plate-roaster/internal/config"
	"github.com/menta2k/plate-roaster/internal/log"
	"github.com/menta2k/plate-roaster/internal/utils"
)

var (
	// cfg is the configuration shared by every subcommand
	cfg *config.Config

	configPath string
	logFile    string
	backend    string
	serverURL  string
	model      string

	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "plate-roaster",
	Short:         "Roast a plate of food with a vision model",
	Version:       plateroaster.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(cmd)
		if err != nil {
			return err
		}
		logCloser, err = log.Setup(cfg.Log)
		if err != nil {
			return err
		}
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (JSON or YAML, default "+config.GetConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a rotating file instead of stderr")
	rootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "", "roast backend: openai|ollama|static|remote")
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "roast backend URL")
	rootCmd.PersistentFlags().StringVarP(&model, "model", "m", "", "vision model name")
}

// loadConfig reads the explicit or default config file and applies flag
// overrides on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c := config.Default()

	path := configPath
	if path == "" && utils.IsFile(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		c = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-file") {
		c.Log.File = logFile
	}
	if flags.Changed("backend") {
		c.Roast.Backend = backend
	}
	if flags.Changed("url") {
		c.Roast.URL = serverURL
	}
	if flags.Changed("model") {
		c.Roast.Model = model
	}
	return c, nil
}

// closeLog flushes and closes the log file opened by the root command, if
// any. It runs after every command, including ones that returned an error.
func closeLog() {
	if logCloser == nil {
		return
	}
	if err := logCloser.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: closing log file: %v\n", err)
	}
	logCloser = nil
}

func execute(ctx context.Context) error {
	defer closeLog()
	return rootCmd.ExecuteContext(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
