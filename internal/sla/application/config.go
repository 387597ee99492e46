package application

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// AllTenants marks a maintenance window that applies to every tenant.
const AllTenants = "*"

// ScheduleConfig defines when the previous month is aggregated.
type ScheduleConfig struct {
	MonthlyDay int    `yaml:"monthly_day"`
	At         string `yaml:"at"`
	Disabled   bool   `yaml:"disabled"`
}

// MaintenanceWindow is a planned maintenance interval from config.
type MaintenanceWindow struct {
	TenantID    string    `yaml:"tenant_id"`
	Start       time.Time `yaml:"start"`
	End         time.Time `yaml:"end"`
	Description string    `yaml:"description"`
}

// Config defines SLA engine configuration.
type Config struct {
	Schedule    ScheduleConfig      `yaml:"schedule"`
	Maintenance []MaintenanceWindow `yaml:"maintenance"`
}

// LoadConfig loads config from the yaml file at SLA_CONFIG, then applies env overrides.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := os.Getenv("SLA_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if value := os.Getenv("SLA_SCHEDULE_DAY"); value != "" {
		day, err := strconv.Atoi(value)
		if err != nil {
			return cfg, fmt.Errorf("sla config: SLA_SCHEDULE_DAY: %w", err)
		}
		cfg.Schedule.MonthlyDay = day
	}
	if value := os.Getenv("SLA_SCHEDULE_AT"); value != "" {
		cfg.Schedule.At = value
	}
	applyConfigDefaults(&cfg)
	return cfg, cfg.Validate()
}

// ParseConfig decodes yaml config and applies defaults.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyConfigDefaults(&cfg)
	return cfg, cfg.Validate()
}

// Validate checks schedule and maintenance entries.
func (c Config) Validate() error {
	if c.Schedule.MonthlyDay < 1 || c.Schedule.MonthlyDay > 28 {
		return fmt.Errorf("sla config: monthly_day %d outside 1..28", c.Schedule.MonthlyDay)
	}
	if _, _, err := parseDailyAt(c.Schedule.At); err != nil {
		return fmt.Errorf("sla config: at %q must be HH:MM", c.Schedule.At)
	}
	for i, window := range c.Maintenance {
		if window.TenantID == "" {
			return fmt.Errorf("sla config: maintenance[%d] tenant_id required", i)
		}
		if window.Start.IsZero() || window.End.IsZero() {
			return fmt.Errorf("sla config: maintenance[%d] start and end required", i)
		}
		if !window.End.After(window.Start) {
			return errors.New("sla config: maintenance window end must be after start")
		}
	}
	return nil
}

func applyConfigDefaults(cfg *Config) {
	if cfg.Schedule.MonthlyDay == 0 {
		cfg.Schedule.MonthlyDay = 1
	}
	if cfg.Schedule.At == "" {
		cfg.Schedule.At = "01:00"
	}
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
