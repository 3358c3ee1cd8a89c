package config

import (
	"errors"
	"log"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ReminderConfig controls which installment deadlines trigger reminder mail.
type ReminderConfig struct {
	// OffsetDays lists how many calendar days before a deadline a reminder fires.
	OffsetDays []int `mapstructure:"offsetDays"`
	// ChunkSize caps recipients per templated batch.
	ChunkSize int `mapstructure:"chunkSize"`
	// TemplatePrefix names the mail template; the offset is appended.
	TemplatePrefix string `mapstructure:"templatePrefix"`
}

func DefaultReminderConfig() ReminderConfig {
	return ReminderConfig{
		OffsetDays:     []int{7, 2, 0},
		ChunkSize:      1000,
		TemplatePrefix: "installment_reminder",
	}
}

type ReminderConfigHolder struct {
	current atomic.Value // holds ReminderConfig
}

// NewStaticReminderConfigHolder returns a holder that never reloads.
func NewStaticReminderConfigHolder(cfg ReminderConfig) *ReminderConfigHolder {
	holder := &ReminderConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewReminderConfigHolder(cfg Config) (*ReminderConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("reminders")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/bootcamp")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BOOTCAMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReminderConfig()
	if cfg.Mail.BatchChunkSize > 0 {
		defaults.ChunkSize = cfg.Mail.BatchChunkSize
	}
	v.SetDefault("reminders.offsetDays", defaults.OffsetDays)
	v.SetDefault("reminders.chunkSize", defaults.ChunkSize)
	v.SetDefault("reminders.templatePrefix", defaults.TemplatePrefix)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var loaded ReminderConfig
	if err := v.UnmarshalKey("reminders", &loaded); err != nil {
		return nil, err
	}
	loaded = normalizeReminderConfig(loaded)
	if err := validateReminderConfig(loaded); err != nil {
		return nil, err
	}

	holder := &ReminderConfigHolder{}
	holder.current.Store(loaded)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated ReminderConfig
			if err := v.UnmarshalKey("reminders", &updated); err != nil {
				log.Printf("[reminder-config] reload failed: %v", err)
				return
			}
			updated = normalizeReminderConfig(updated)
			if err := validateReminderConfig(updated); err != nil {
				log.Printf("[reminder-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[reminder-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *ReminderConfigHolder) Get() ReminderConfig {
	if h == nil {
		return DefaultReminderConfig()
	}
	cfg, ok := h.current.Load().(ReminderConfig)
	if !ok {
		return DefaultReminderConfig()
	}
	return cfg
}

func normalizeReminderConfig(cfg ReminderConfig) ReminderConfig {
	seen := map[int]struct{}{}
	offsets := make([]int, 0, len(cfg.OffsetDays))
	for _, d := range cfg.OffsetDays {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		offsets = append(offsets, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(offsets)))
	cfg.OffsetDays = offsets
	cfg.TemplatePrefix = strings.TrimSpace(cfg.TemplatePrefix)
	if cfg.TemplatePrefix == "" {
		cfg.TemplatePrefix = DefaultReminderConfig().TemplatePrefix
	}
	return cfg
}

func validateReminderConfig(cfg ReminderConfig) error {
	if len(cfg.OffsetDays) == 0 {
		return errors.New("reminders.offsetDays cannot be empty")
	}
	for _, d := range cfg.OffsetDays {
		if d < 0 {
			return errors.New("reminders.offsetDays must not be negative")
		}
	}
	if cfg.ChunkSize <= 0 {
		return errors.New("reminders.chunkSize must be positive")
	}
	return nil
}
