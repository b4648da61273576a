package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"auto_newsletter_digest/models"
)

// Config is built once at process start and handed to each component.
type Config struct {
	Sources    SourcesConfig    `toml:"sources"`
	Gemini     GeminiConfig     `toml:"gemini"`
	OpenAI     OpenAIConfig     `toml:"openai"`
	Generation GenerationConfig `toml:"generation"`
	Mail       MailConfig       `toml:"mail"`
	Schedule   ScheduleConfig   `toml:"schedule"`
	Server     ServerConfig     `toml:"server"`
	Logging    LoggingConfig    `toml:"logging"`
}

type SourcesConfig struct {
	URLs       []string `toml:"urls" validate:"required,min=1,dive,url"`
	UserAgent  string   `toml:"user_agent"`
	Timeout    string   `toml:"timeout" validate:"duration"`     // per fetch, e.g. "30s"
	FetchDelay string   `toml:"fetch_delay" validate:"duration"` // pause between fetches
	MaxText    int      `toml:"max_text" validate:"gt=0"`
	MaxLinks   int      `toml:"max_links" validate:"gte=0"`
}

type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

type OpenAIConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url" validate:"omitempty,url"`
}

// GenerationConfig holds the sampling and prompt-size constants shared by both providers.
type GenerationConfig struct {
	Timeout        string  `toml:"timeout" validate:"duration"`
	Temperature    float64 `toml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens      int     `toml:"max_tokens" validate:"gt=0"`
	ExcerptChars   int     `toml:"excerpt_chars" validate:"gt=0"`
	LinksPerSource int     `toml:"links_per_source" validate:"gte=0"`
}

type MailConfig struct {
	Host          string   `toml:"host"`
	Port          int      `toml:"port" validate:"min=1,max=65535"`
	Username      string   `toml:"username"`
	Password      string   `toml:"password"`
	From          string   `toml:"from" validate:"omitempty,email"`
	FromName      string   `toml:"from_name"`
	Recipients    []string `toml:"recipients" validate:"dive,email"`
	SubjectPrefix string   `toml:"subject_prefix"`
	DialTimeout   string   `toml:"dial_timeout" validate:"duration"`
}

type ScheduleConfig struct {
	Cron      string `toml:"cron" validate:"required"`
	StateFile string `toml:"state_file" validate:"required"`
	MinDays   int    `toml:"min_days" validate:"gt=0"`
	CatchUp   bool   `toml:"catch_up"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "console", "file"
	File   string   `toml:"file"`
}

// DefaultSources is the static list the newsletter is written from.
var DefaultSources = []string{
	"https://tldr.tech/newsletters",
	"https://www.morningbrew.com/",
	"https://thehustle.co/news",
	"https://www.axios.com/newsletters",
	"https://www.techbrew.com/all/stories/news",
	"https://thefounderplaybook.hustlefund.vc/",
}

// NewDefaultConfig returns the settings used when neither file nor environment overrides them.
func NewDefaultConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			URLs:       append([]string(nil), DefaultSources...),
			UserAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Timeout:    "30s",
			FetchDelay: "2s",
			MaxText:    5000,
			MaxLinks:   20,
		},
		Gemini: GeminiConfig{Model: "gemini-2.0-flash"},
		OpenAI: OpenAIConfig{Model: "gpt-4-turbo-preview"},
		Generation: GenerationConfig{
			Timeout:        "60s",
			Temperature:    0.7,
			MaxTokens:      2000,
			ExcerptChars:   2000,
			LinksPerSource: 5,
		},
		Mail: MailConfig{
			Host:          "smtp.gmail.com",
			Port:          587,
			FromName:      "MBT Newsletter",
			SubjectPrefix: "MBT Newsletter",
			DialTimeout:   "30s",
		},
		Schedule: ScheduleConfig{
			Cron:      "@every 120h",
			StateFile: "last_run.json",
			MinDays:   5,
		},
		Server: ServerConfig{Addr: ":8080"},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"console"},
			File:   "logs/newsletter.log",
		},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment overrides
// and validates the result. A missing file at path is an error; pass "" to skip it.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if len(cfg.Mail.Recipients) == 0 && cfg.Mail.From != "" {
		cfg.Mail.Recipients = []string{cfg.Mail.From}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY", "NEWSLETTER_GEMINI_API_KEY")
	setString(&cfg.Gemini.Model, "GEMINI_MODEL", "NEWSLETTER_GEMINI_MODEL")
	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY", "NEWSLETTER_OPENAI_API_KEY")
	setString(&cfg.OpenAI.Model, "OPENAI_MODEL", "NEWSLETTER_OPENAI_MODEL")
	setString(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL", "NEWSLETTER_OPENAI_BASE_URL")

	setString(&cfg.Mail.From, "EMAIL_ADDRESS", "NEWSLETTER_MAIL_FROM")
	setString(&cfg.Mail.Password, "EMAIL_PASSWORD", "NEWSLETTER_MAIL_PASSWORD")
	setString(&cfg.Mail.Host, "SMTP_SERVER", "NEWSLETTER_MAIL_HOST")
	setString(&cfg.Mail.Username, "SMTP_USERNAME", "NEWSLETTER_MAIL_USERNAME")
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Mail.Port = p
		}
	}
	if rcpts := os.Getenv("RECIPIENT_EMAILS"); rcpts != "" {
		cfg.Mail.Recipients = splitList(rcpts)
	}
	if cfg.Mail.Username == "" {
		cfg.Mail.Username = cfg.Mail.From
	}

	setString(&cfg.Schedule.StateFile, "NEWSLETTER_STATE_FILE")
	setString(&cfg.Schedule.Cron, "NEWSLETTER_SCHEDULE")
	setString(&cfg.Server.Addr, "NEWSLETTER_SERVER_ADDR")
	setString(&cfg.Logging.Level, "NEWSLETTER_LOG_LEVEL")
	if urls := os.Getenv("NEWSLETTER_SOURCES"); urls != "" {
		cfg.Sources.URLs = splitList(urls)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks field formats. Credentials are checked by the components that need them.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &models.ConfigurationError{
			Field:  fe.Namespace(),
			Reason: fmt.Sprintf("failed %q validation (value %v)", fe.Tag(), fe.Value()),
		}
	}
	return &models.ConfigurationError{Reason: err.Error()}
}

// Duration parses one of the validated duration strings, falling back when empty.
func Duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
