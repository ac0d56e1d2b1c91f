// Package pipelineconfig loads and validates process configuration for the
// validation pipeline driver.
package pipelineconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the process configuration for one pipeline invocation.
type Config struct {
	PluginDir string `mapstructure:"plugin_dir"`
	OutputDir string `mapstructure:"output_dir"`
	CachePath string `mapstructure:"cache_path"`
	LogPath   string `mapstructure:"log_path"`
	MaxBytes  int64  `mapstructure:"max_bytes"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	DiagLog   string `mapstructure:"diagnostic_log_path"`

	PublishBackend string `mapstructure:"publish_backend"`

	S3Bucket string `mapstructure:"s3_bucket"`
	S3Region string `mapstructure:"s3_region"`
	S3Prefix string `mapstructure:"s3_prefix"`

	AzureContainer  string `mapstructure:"azure_container"`
	AzureAccountURL string `mapstructure:"azure_account_url"`
	AzurePrefix     string `mapstructure:"azure_prefix"`

	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`

	B2Bucket string `mapstructure:"b2_bucket"`
	B2Prefix string `mapstructure:"b2_prefix"`
}

// Default returns the configuration's zero-value-free defaults.
func Default() *Config {
	return &Config{
		PluginDir:      "plugins",
		OutputDir:      "output",
		CachePath:      ".pipeline_cache.json",
		LogPath:        "pipeline_results.jsonl",
		MaxBytes:       76_800,
		LogLevel:       "info",
		LogFormat:      "text",
		DiagLog:        "pipeline.log",
		PublishBackend: "none",
	}
}

// Load layers a YAML config file and VALIDPIPE_-prefixed environment
// variables over the defaults. The file is cfgFile when non-empty;
// otherwise ./validpipe.yaml is read if it exists.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("validpipe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("VALIDPIPE")
	for _, key := range []string{
		"plugin_dir", "output_dir", "cache_path", "log_path", "max_bytes",
		"log_level", "log_format", "diagnostic_log_path", "publish_backend",
		"s3_bucket", "s3_region", "s3_prefix",
		"azure_container", "azure_account_url", "azure_prefix",
		"gcs_bucket", "gcs_prefix", "b2_bucket", "b2_prefix",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if cfgFile != "" || !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// Save writes cfg as YAML to cfgFile, creating parent directories as needed.
func Save(cfg *Config, cfgFile string) error {
	v := viper.New()
	v.Set("plugin_dir", cfg.PluginDir)
	v.Set("output_dir", cfg.OutputDir)
	v.Set("cache_path", cfg.CachePath)
	v.Set("log_path", cfg.LogPath)
	v.Set("max_bytes", cfg.MaxBytes)
	v.Set("log_level", cfg.LogLevel)
	v.Set("log_format", cfg.LogFormat)
	v.Set("diagnostic_log_path", cfg.DiagLog)
	v.Set("publish_backend", cfg.PublishBackend)
	v.Set("s3_bucket", cfg.S3Bucket)
	v.Set("s3_region", cfg.S3Region)
	v.Set("s3_prefix", cfg.S3Prefix)
	v.Set("azure_container", cfg.AzureContainer)
	v.Set("azure_account_url", cfg.AzureAccountURL)
	v.Set("azure_prefix", cfg.AzurePrefix)
	v.Set("gcs_bucket", cfg.GCSBucket)
	v.Set("gcs_prefix", cfg.GCSPrefix)
	v.Set("b2_bucket", cfg.B2Bucket)
	v.Set("b2_prefix", cfg.B2Prefix)

	dir := filepath.Dir(cfgFile)
	if dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}

	return v.WriteConfigAs(cfgFile)
}
