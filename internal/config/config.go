package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/geonames-cli/internal/export"
	"github.com/sells-group/geonames-cli/internal/geonames"
	"github.com/sells-group/geonames-cli/internal/normalize"
)

// EnvPrefix prefixes every environment override, e.g. GEONAMES_SOURCE_URL.
const EnvPrefix = "GEONAMES"

// Config holds the full application configuration.
type Config struct {
	Source SourceConfig `yaml:"source" mapstructure:"source"`
	Paths  PathsConfig  `yaml:"paths" mapstructure:"paths"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Unpack UnpackConfig `yaml:"unpack" mapstructure:"unpack"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// SourceConfig locates the remote archive.
type SourceConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// PathsConfig names every on-disk artifact. Relative names resolve against WorkDir.
type PathsConfig struct {
	WorkDir    string `yaml:"work_dir" mapstructure:"work_dir"`
	Archive    string `yaml:"archive" mapstructure:"archive"`
	Pattern    string `yaml:"pattern" mapstructure:"pattern"`
	Normalized string `yaml:"normalized" mapstructure:"normalized"`
	Output     string `yaml:"output" mapstructure:"output"`
}

// FetchConfig configures the download.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// UnpackConfig configures archive extraction.
type UnpackConfig struct {
	ExtractAll       bool   `yaml:"extract_all" mapstructure:"extract_all"`
	CleanupExtracted bool   `yaml:"cleanup_extracted" mapstructure:"cleanup_extracted"`
	OnMultiple       string `yaml:"on_multiple" mapstructure:"on_multiple"`
}

// OutputConfig configures the output document.
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
	Indent int    `yaml:"indent" mapstructure:"indent"`
}

// ExportConfig configures the optional relational export.
type ExportConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
	Table  string `yaml:"table" mapstructure:"table"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Timeout returns the fetch timeout; zero means none.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Resolve joins name onto the work directory unless it is already absolute.
func (c PathsConfig) Resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.WorkDir, name)
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source.url", "http://download.geonames.org/export/dump/cities1000.zip")
	v.SetDefault("paths.work_dir", ".")
	v.SetDefault("paths.archive", "cities.zip")
	v.SetDefault("paths.pattern", "cities*.txt")
	v.SetDefault("paths.normalized", "temp.csv")
	v.SetDefault("paths.output", "cities.json")
	v.SetDefault("fetch.user_agent", "geonames-cli/1.0")
	v.SetDefault("fetch.timeout_secs", 0)
	v.SetDefault("fetch.rate_per_sec", 1.0)
	v.SetDefault("unpack.extract_all", true)
	v.SetDefault("unpack.cleanup_extracted", false)
	v.SetDefault("unpack.on_multiple", string(normalize.UseFirst))
	v.SetDefault("output.format", string(geonames.FormatJSON))
	v.SetDefault("output.indent", 4)
	v.SetDefault("export.driver", "")
	v.SetDefault("export.dsn", "")
	v.SetDefault("export.table", "cities")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration from the default viper instance: defaults, an
// optional config file, the environment and any bound flags.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper(), "")
}

// LoadFrom reads configuration into a Config using v. When configFile is empty
// an optional config.yaml in the working directory is used.
func LoadFrom(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no stage could act on.
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return eris.New("config: source.url is required")
	}
	for key, name := range map[string]string{
		"paths.archive":    c.Paths.Archive,
		"paths.pattern":    c.Paths.Pattern,
		"paths.normalized": c.Paths.Normalized,
		"paths.output":     c.Paths.Output,
	} {
		if name == "" {
			return eris.Errorf("config: %s is required", key)
		}
	}
	if _, err := filepath.Match(c.Paths.Pattern, ""); err != nil {
		return eris.Wrapf(err, "config: paths.pattern %q", c.Paths.Pattern)
	}
	if _, err := geonames.ParseFormat(c.Output.Format); err != nil {
		return eris.Wrap(err, "config: output.format")
	}
	if c.Output.Indent < 0 {
		return eris.Errorf("config: output.indent must be >= 0, got %d", c.Output.Indent)
	}
	if _, err := normalize.ParseMultiplePolicy(c.Unpack.OnMultiple); err != nil {
		return eris.Wrap(err, "config: unpack.on_multiple")
	}
	if err := export.ValidateDriver(c.Export.Driver); err != nil {
		return eris.Wrap(err, "config: export.driver")
	}
	if c.Fetch.TimeoutSecs < 0 {
		return eris.Errorf("config: fetch.timeout_secs must be >= 0, got %d", c.Fetch.TimeoutSecs)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
