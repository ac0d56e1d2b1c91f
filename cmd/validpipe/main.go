package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/validforge/validpipe/internal/logging"
	"github.com/validforge/validpipe/internal/pipelineconfig"
	"github.com/validforge/validpipe/pkg/pipeline"
)

var (
	cfgFile   string
	outputDir string
	pluginIDs []string
	cachePath string
	logPath   string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "validpipe [files...]",
	Short: "Deterministic, incremental file-validation pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(args)
	},
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the plugins the registry and plugin directory resolve to",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListPlugins()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, VALIDPIPE_ env vars override)")
	rootCmd.Flags().StringVar(&outputDir, "output", "", "output directory for validated files (required)")
	rootCmd.Flags().StringArrayVar(&pluginIDs, "plugin", nil, "plugin ID to restrict to (repeatable); manifest directory names are not matched")
	rootCmd.Flags().StringVar(&cachePath, "cache", "", "hash cache path (default from config)")
	rootCmd.Flags().StringVar(&logPath, "log", "", "JSONL event log path (default from config)")
	rootCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(pluginsCmd)
}

func main() {
	logging.Init("text", "info", os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*pipelineconfig.Config, error) {
	cfg, err := pipelineconfig.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if cachePath != "" {
		cfg.CachePath = cachePath
	}
	if logPath != "" {
		cfg.LogPath = logPath
	}
	for _, verr := range cfg.Validate() {
		log.Warn("config validation issue", logging.KeyError, verr.Error())
	}

	initLogging(cfg)
	return cfg, nil
}

// initLogging reconfigures the process-wide logger from cfg, tee-ing
// structured output to the configured diagnostic log file alongside
// stdout. Called after pipelineconfig.Load, mirroring the pre-init/post-init
// handoff the switchable handler is built for.
func initLogging(cfg *pipelineconfig.Config) {
	output := io.Writer(os.Stdout)
	if cfg.DiagLog != "" {
		rw, err := logging.NewRotatingWriter(cfg.DiagLog, 50, 3)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open diagnostic log %s: %v (logging to stdout only)\n", cfg.DiagLog, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")
}

func runValidate(files []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	driver, errs := pipeline.NewDriver(context.Background(), cfg)
	for _, e := range errs {
		log.Warn("driver setup issue", logging.KeyError, e.Error())
	}
	defer driver.Close()

	if len(pluginIDs) > 0 {
		driver.Manager.Retain(pluginIDs)
	}

	results := driver.ProcessFiles(files)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return nil
}

func runListPlugins() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry := pipeline.NewRegistry()
	manager, errs := pipeline.NewManager(cfg.PluginDir, registry)
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "warning: %v\n", e)
	}

	ids := manager.IDs()
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
