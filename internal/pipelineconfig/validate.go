package pipelineconfig

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validPublishBackends = map[string]bool{
	"none":  true,
	"s3":    true,
	"azure": true,
	"gcs":   true,
	"b2":    true,
}

// Validate checks cfg for invalid values, returning all problems found.
// Out-of-range numeric fields are clamped to a safe default; the clamp is
// still reported so the caller can log it.
func (c *Config) Validate() []error {
	var errs []error

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	if c.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_bytes %d must be positive, clamping to default", c.MaxBytes))
		c.MaxBytes = 76_800
	}

	backend := strings.ToLower(strings.TrimSpace(c.PublishBackend))
	if backend == "" {
		backend = "none"
	}
	if !validPublishBackends[backend] {
		errs = append(errs, fmt.Errorf("publish_backend %q is not valid (use none, s3, azure, gcs, b2), disabling remote publish", c.PublishBackend))
		backend = "none"
	}
	c.PublishBackend = backend

	switch c.PublishBackend {
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, fmt.Errorf("publish_backend s3 requires s3_bucket"))
		}
	case "azure":
		if c.AzureContainer == "" || c.AzureAccountURL == "" {
			errs = append(errs, fmt.Errorf("publish_backend azure requires azure_container and azure_account_url"))
		}
	case "gcs":
		if c.GCSBucket == "" {
			errs = append(errs, fmt.Errorf("publish_backend gcs requires gcs_bucket"))
		}
	case "b2":
		if c.B2Bucket == "" {
			errs = append(errs, fmt.Errorf("publish_backend b2 requires b2_bucket"))
		}
	}

	if c.PluginDir == "" {
		errs = append(errs, fmt.Errorf("plugin_dir must not be empty, clamping to default"))
		c.PluginDir = "plugins"
	}
	if c.OutputDir == "" {
		errs = append(errs, fmt.Errorf("output_dir must not be empty, clamping to default"))
		c.OutputDir = "output"
	}

	return errs
}
