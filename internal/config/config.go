// Package config provides configuration management for the preview server
// using Viper: a YAML file (.markview.yml), environment variable overrides
// with the MARKVIEW_ prefix, and command-line flag bindings, in that
// ascending order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/markview/markview/internal/errors"
)

// Config is the full settings tree.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Preview   PreviewConfig   `yaml:"preview" mapstructure:"preview"`
	Renderers RenderersConfig `yaml:"renderers" mapstructure:"renderers"`
	LogLevel  string          `yaml:"log_level" mapstructure:"log_level"`
	LogFormat string          `yaml:"log_format" mapstructure:"log_format"`
}

// ServerConfig controls the HTTP listener. Changing host or port restarts
// the listener; cache and worker survive.
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	// PublicDir is a per-user static override directory; files there
	// shadow the shipped defaults by exact relative path.
	PublicDir string `yaml:"public_dir" mapstructure:"public_dir"`
	// TemplateDir overrides the directory the view template loads from.
	TemplateDir string `yaml:"template_dir" mapstructure:"template_dir"`
}

// PreviewConfig controls submission and browser behavior.
type PreviewConfig struct {
	RefreshOnModified      bool   `yaml:"refresh_on_modified" mapstructure:"refresh_on_modified"`
	RefreshOnModifiedDelay int    `yaml:"refresh_on_modified_delay" mapstructure:"refresh_on_modified_delay"` // milliseconds
	RefreshOnSaved         bool   `yaml:"refresh_on_saved" mapstructure:"refresh_on_saved"`
	RefreshOnLoaded        bool   `yaml:"refresh_on_loaded" mapstructure:"refresh_on_loaded"`
	AjaxPollingInterval    int    `yaml:"ajax_polling_interval" mapstructure:"ajax_polling_interval"` // milliseconds, advisory
	MathjaxEnabled         bool   `yaml:"mathjax_enabled" mapstructure:"mathjax_enabled"`
	HTMLTemplateName       string `yaml:"html_template_name" mapstructure:"html_template_name"`
	BrowserCommand         string `yaml:"browser_command" mapstructure:"browser_command"`
}

// RenderersConfig controls registry construction.
type RenderersConfig struct {
	Ignored []string                          `yaml:"ignored" mapstructure:"ignored"`
	Options map[string]map[string]interface{} `yaml:"options" mapstructure:"options"`
}

// ModifiedDelay returns the deferred-path quiet period as a duration.
func (p PreviewConfig) ModifiedDelay() time.Duration {
	return time.Duration(p.RefreshOnModifiedDelay) * time.Millisecond
}

// SetDefaults registers every default with viper; call once before Load.
func SetDefaults() {
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 51004)
	viper.SetDefault("preview.refresh_on_modified", true)
	viper.SetDefault("preview.refresh_on_modified_delay", 500)
	viper.SetDefault("preview.refresh_on_saved", true)
	viper.SetDefault("preview.refresh_on_loaded", true)
	viper.SetDefault("preview.ajax_polling_interval", 500)
	viper.SetDefault("preview.mathjax_enabled", false)
	viper.SetDefault("preview.html_template_name", "index.html")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
}

// Load unmarshals and validates the current viper state. On error the
// caller keeps its previous settings.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, &errors.ConfigError{Err: err}
	}
	if cfg.Renderers.Options == nil {
		cfg.Renderers.Options = make(map[string]map[string]interface{})
	}
	if err := validate(&cfg); err != nil {
		return nil, &errors.ConfigError{Err: err}
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", cfg.Server.Port)
	}
	if cfg.Server.Host != "" {
		for _, ch := range []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"} {
			if strings.Contains(cfg.Server.Host, ch) {
				return fmt.Errorf("host contains dangerous character: %s", ch)
			}
		}
	}
	if cfg.Preview.RefreshOnModifiedDelay < 0 {
		return fmt.Errorf("refresh_on_modified_delay must be non-negative")
	}
	if cfg.Preview.AjaxPollingInterval <= 0 {
		return fmt.Errorf("ajax_polling_interval must be positive")
	}
	return nil
}

// Changes describes what a settings reload requires of the running system.
type Changes struct {
	// RestartServer is set when the listener binding changed.
	RestartServer bool
	// RebuildRegistry is set when the renderer set or options changed.
	RebuildRegistry bool
	// RefreshNotice is set for options the browser only picks up on its
	// next load (polling interval, template, mathjax).
	RefreshNotice bool
}

// Diff compares two configurations and reports the actions a live reload
// must take.
func Diff(old, new *Config) Changes {
	var c Changes
	if old.Server.Host != new.Server.Host || old.Server.Port != new.Server.Port {
		c.RestartServer = true
	}
	if !stringSlicesEqual(old.Renderers.Ignored, new.Renderers.Ignored) ||
		!optionsEqual(old.Renderers.Options, new.Renderers.Options) {
		c.RebuildRegistry = true
	}
	if old.Preview.AjaxPollingInterval != new.Preview.AjaxPollingInterval ||
		old.Preview.HTMLTemplateName != new.Preview.HTMLTemplateName ||
		old.Preview.MathjaxEnabled != new.Preview.MathjaxEnabled {
		c.RefreshNotice = true
	}
	return c
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func optionsEqual(a, b map[string]map[string]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for name, opts := range a {
		other, ok := b[name]
		if !ok || len(opts) != len(other) {
			return false
		}
		for k, v := range opts {
			if fmt.Sprint(other[k]) != fmt.Sprint(v) {
				return false
			}
		}
	}
	return true
}
