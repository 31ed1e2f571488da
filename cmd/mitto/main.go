package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mitto/internal/app"
	"github.com/ternarybob/mitto/internal/common"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	runMode     = flag.String("mode", "message", "Run mode: message, publish or inbox")
	maxItems    = flag.Int("max-items", -1, "Cap tasks taken this run (overrides config, 0 = unlimited)")
	headless    = flag.String("headless", "", "Run the browser headless: true or false (overrides config)")
	showVersion = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("Mitto version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Auto-discover a config file next to the binary when none was given.
	if len(configFiles) == 0 {
		if _, err := os.Stat("mitto.toml"); err == nil {
			configFiles = append(configFiles, "mitto.toml")
		}
	}

	// Startup order: config (defaults -> files -> env -> CLI), then logger,
	// then banner.
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}
	applyFlagOverrides(config)

	mode, err := app.ParseMode(*runMode)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Invalid mode flag")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("mode", string(mode)).
		Str("base_url", config.Platform.BaseURL).
		Msg("Configuration loaded")
	if logFile := common.GetLogFilePath(logger); logFile != "" {
		logger.Info().Str("log_file", logFile).Msg("Logging to file")
	}

	// Cancel on interrupt; workers finish the task in flight and write its
	// result before stopping.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn().Msg("Interrupt received, finishing current task")
		cancel()
	}()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	if config.Run.Schedule != "" {
		if err := application.RunScheduled(ctx, mode); err != nil {
			logger.Fatal().Err(err).Msg("Scheduler failed")
			os.Exit(1)
		}
		return
	}

	summary, err := application.Run(ctx, mode)
	if err != nil {
		logger.Fatal().Err(err).Msg("Run failed")
		os.Exit(1)
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
}

// applyFlagOverrides applies command-line values on top of the loaded
// configuration. Flags have the highest priority.
func applyFlagOverrides(config *common.Config) {
	if *maxItems >= 0 {
		config.Run.MaxItems = *maxItems
	}
	switch *headless {
	case "true", "1":
		config.Browser.Headless = true
	case "false", "0":
		config.Browser.Headless = false
	}
}
