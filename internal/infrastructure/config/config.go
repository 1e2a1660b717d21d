package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`

	Company  CompanyConfig  `koanf:"company"`
	Email    EmailConfig    `koanf:"email"`
	Call     CallConfig     `koanf:"call"`
	Outreach OutreachConfig `koanf:"outreach"`
}

// CompanyConfig identifies the business doing the outreach. Both fields feed
// the generated email and call content.
type CompanyConfig struct {
	Name    string `koanf:"name" validate:"required"`
	Website string `koanf:"website" validate:"required,url"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type EmailConfig struct {
	Provider           string    `koanf:"provider" validate:"oneof=ses log"`
	From               string    `koanf:"from" validate:"required,email"`
	FromName           string    `koanf:"from_name"`
	BusinessAddress    string    `koanf:"business_address" validate:"required"`
	UnsubscribeBaseURL string    `koanf:"unsubscribe_base_url" validate:"required,url"`
	SendTime           string    `koanf:"send_time"`
	SES                SESConfig `koanf:"ses"`
}

type SESConfig struct {
	Region string `koanf:"region"`
}

type CallConfig struct {
	Provider        string       `koanf:"provider" validate:"oneof=twilio log"`
	WindowStart     string       `koanf:"window_start"`
	WindowEnd       string       `koanf:"window_end"`
	Pacing          string       `koanf:"pacing" validate:"oneof=block spread"`
	DNCRegistryFile string       `koanf:"dnc_registry_file"`
	// StatusCallbackURL is the public URL the voice provider posts call
	// status updates to. Leave empty to disable callbacks.
	StatusCallbackURL string       `koanf:"status_callback_url"`
	Twilio            TwilioConfig `koanf:"twilio"`
}

type TwilioConfig struct {
	AccountSID string `koanf:"account_sid"`
	AuthToken  string `koanf:"auth_token"`
	FromNumber string `koanf:"from_number"`
	BaseURL    string `koanf:"base_url"`
}

type OutreachConfig struct {
	DailyEmailCap       int    `koanf:"daily_email_cap" validate:"min=1,max=10000"`
	DailyCallCap        int    `koanf:"daily_call_cap" validate:"min=1,max=10000"`
	CooldownDays        int    `koanf:"cooldown_days" validate:"min=1"`
	PerDomainEmailLimit int    `koanf:"per_domain_email_limit" validate:"min=1"`
	ApprovalMode        bool   `koanf:"approval_mode"`
	ApprovalExpiryDays  int    `koanf:"approval_expiry_days" validate:"min=1"`
	DryRun              bool   `koanf:"dry_run"`
	Timezone            string `koanf:"timezone" validate:"required"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Company: CompanyConfig{
			Name:    "DevSync Innovation",
			Website: "https://devsync.example.com",
		},
		Email: EmailConfig{
			Provider:           "log",
			From:               "outreach@example.com",
			FromName:           "DevSync Outreach",
			BusinessAddress:    "123 Main St, Springfield, IL 62701",
			UnsubscribeBaseURL: "http://localhost:8080/unsubscribe",
			SendTime:           "10:00",
			SES: SESConfig{
				Region: "us-east-1",
			},
		},
		Call: CallConfig{
			Provider:    "log",
			WindowStart: "11:00",
			WindowEnd:   "17:00",
			Pacing:      "block",
			Twilio: TwilioConfig{
				BaseURL: "https://api.twilio.com",
			},
		},
		Outreach: OutreachConfig{
			DailyEmailCap:       100,
			DailyCallCap:        100,
			CooldownDays:        30,
			PerDomainEmailLimit: 5,
			ApprovalMode:        true,
			ApprovalExpiryDays:  7,
			DryRun:              true,
			Timezone:            "America/Chicago",
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional.
	_ = k.Load(file.Provider("configs/config.yaml"), yaml.Parser())

	// Double underscore separates sections so leaf keys keep their own
	// underscores, e.g. OUTREACH_OUTREACH__DAILY_EMAIL_CAP.
	if err := k.Load(env.Provider("OUTREACH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "OUTREACH_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks structural tags plus the time and timezone fields that
// tags alone cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	for name, val := range map[string]string{
		"email.send_time":   c.Email.SendTime,
		"call.window_start": c.Call.WindowStart,
		"call.window_end":   c.Call.WindowEnd,
	} {
		if _, err := time.Parse("15:04", val); err != nil {
			return fmt.Errorf("%s: %q is not a valid HH:MM time", name, val)
		}
	}

	start, _ := time.Parse("15:04", c.Call.WindowStart)
	end, _ := time.Parse("15:04", c.Call.WindowEnd)
	if !start.Before(end) {
		return fmt.Errorf("call window start %q must be before end %q", c.Call.WindowStart, c.Call.WindowEnd)
	}

	if _, err := time.LoadLocation(c.Outreach.Timezone); err != nil {
		return fmt.Errorf("outreach.timezone: %w", err)
	}

	return nil
}

// Location resolves the configured operating timezone. Callers may assume
// it succeeds after Validate has passed.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Outreach.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
