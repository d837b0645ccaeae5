package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DashboardConfig holds the operator-tunable settings that may change while
// the server is running.
type DashboardConfig struct {
	TopUsersLimit    int `mapstructure:"topUsersLimit"`
	DefaultRangeDays int `mapstructure:"defaultRangeDays"`
}

type IngestConfig struct {
	MaxUploadMB      int `mapstructure:"maxUploadMB"`
	InvalidRowSample int `mapstructure:"invalidRowSample"`
}

type Settings struct {
	Dashboard DashboardConfig
	Ingest    IngestConfig
}

const MaxTopUsersLimit = 500

func DefaultSettings() Settings {
	return Settings{
		Dashboard: DashboardConfig{
			TopUsersLimit:    10,
			DefaultRangeDays: 30,
		},
		Ingest: IngestConfig{
			MaxUploadMB:      32,
			InvalidRowSample: 200,
		},
	}
}

// MaxUploadBytes converts the upload limit into bytes.
func (c IngestConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

type SettingsHolder struct {
	current atomic.Value // holds Settings
}

// NewSettingsHolder reads dashboard.yml from the usual locations and keeps
// watching it for changes.
func NewSettingsHolder(log *zap.Logger) (*SettingsHolder, error) {
	return newSettingsHolder(log, "/etc/usagelens", ".")
}

// NewStaticSettingsHolder wraps fixed settings without touching the filesystem.
func NewStaticSettingsHolder(s Settings) *SettingsHolder {
	holder := &SettingsHolder{}
	holder.current.Store(s)
	return holder
}

func newSettingsHolder(log *zap.Logger, paths ...string) (*SettingsHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.settings")

	v := viper.New()
	v.SetConfigName("dashboard")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("USAGELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSettings()
	v.SetDefault("dashboard.topUsersLimit", defaults.Dashboard.TopUsersLimit)
	v.SetDefault("dashboard.defaultRangeDays", defaults.Dashboard.DefaultRangeDays)
	v.SetDefault("ingest.maxUploadMB", defaults.Ingest.MaxUploadMB)
	v.SetDefault("ingest.invalidRowSample", defaults.Ingest.InvalidRowSample)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeSettings(v)
	if err != nil {
		return nil, err
	}

	holder := &SettingsHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeSettings(v)
		if err != nil {
			log.Warn("invalid settings ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("settings reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *SettingsHolder) Get() Settings {
	return h.current.Load().(Settings)
}

func decodeSettings(v *viper.Viper) (Settings, error) {
	var cfg Settings
	if err := v.UnmarshalKey("dashboard", &cfg.Dashboard); err != nil {
		return Settings{}, err
	}
	if err := v.UnmarshalKey("ingest", &cfg.Ingest); err != nil {
		return Settings{}, err
	}
	if err := validateSettings(cfg); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

func validateSettings(cfg Settings) error {
	if cfg.Dashboard.TopUsersLimit <= 0 || cfg.Dashboard.TopUsersLimit > MaxTopUsersLimit {
		return fmt.Errorf("dashboard.topUsersLimit must be between 1 and %d", MaxTopUsersLimit)
	}
	if cfg.Dashboard.DefaultRangeDays <= 0 {
		return errors.New("dashboard.defaultRangeDays must be positive")
	}
	if cfg.Ingest.MaxUploadMB <= 0 {
		return errors.New("ingest.maxUploadMB must be positive")
	}
	if cfg.Ingest.InvalidRowSample < 0 {
		return errors.New("ingest.invalidRowSample cannot be negative")
	}
	return nil
}
