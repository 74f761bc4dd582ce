package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp"`
	AI       AIConfig       `mapstructure:"ai"`
	Cron     CronConfig     `mapstructure:"cron"`
	Quota    QuotaConfig    `mapstructure:"quota"`
	Plans    []PlanConfig   `mapstructure:"plans"`
	Bot      BotConfig      `mapstructure:"bot"`
	Alerts   AlertConfig    `mapstructure:"alerts"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// WhatsAppConfig holds Cloud API credentials for the outbound transport
// and the verify token for the inbound webhook handshake.
type WhatsAppConfig struct {
	PhoneNumberID  string `mapstructure:"phone_number_id"`
	AccessToken    string `mapstructure:"access_token"`
	VerifyToken    string `mapstructure:"verify_token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type AIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CronConfig guards the scheduled-job HTTP endpoints.
type CronConfig struct {
	Secret string `mapstructure:"secret"`
}

type QuotaConfig struct {
	DailyMessages   int    `mapstructure:"daily_messages"`
	WeeklyProducts  int    `mapstructure:"weekly_products"`
	MonthlyAICalls  int    `mapstructure:"monthly_ai_calls"`
	NotifyQueue     string `mapstructure:"notify_queue"`
	FollowUpHours   int    `mapstructure:"follow_up_hours"`
	UpsellDelaySecs int    `mapstructure:"upsell_delay_secs"`
}

// PlanConfig is one accepted payment amount and the premium months it buys.
type PlanConfig struct {
	Name   string  `mapstructure:"name"`
	Amount float64 `mapstructure:"amount"`
	Months int     `mapstructure:"months"`
}

type BotConfig struct {
	PatternConfidenceThreshold float64 `mapstructure:"pattern_confidence_threshold"`
	ContextTTLMinutes          int     `mapstructure:"context_ttl_minutes"`
	HistoryLimit               int     `mapstructure:"history_limit"`
	RecipeUrgentDays           int     `mapstructure:"recipe_urgent_days"`
}

// CORSConfig scopes the browser dashboard origins.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type AlertConfig struct {
	PacingSeconds     int `mapstructure:"pacing_seconds"`
	ActiveWindowDays  int `mapstructure:"active_window_days"`
	WeeklyMinMessages int `mapstructure:"weekly_min_messages"`
	MaxMessageChars   int `mapstructure:"max_message_chars"`
	CleanupKeepDays   int `mapstructure:"cleanup_keep_days"`
}

func Load(configPath string) (*Config, error) {
	// Prefer config.local.yaml (real secrets, not committed) when present.
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Environment variables override file values.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// ApplyDefaults fills zero values with the product defaults. Exported so
// tests can build minimal configs.
func ApplyDefaults(cfg *Config) {
	if cfg.Quota.DailyMessages == 0 {
		cfg.Quota.DailyMessages = 20
	}
	if cfg.Quota.WeeklyProducts == 0 {
		cfg.Quota.WeeklyProducts = 15
	}
	if cfg.Quota.MonthlyAICalls == 0 {
		cfg.Quota.MonthlyAICalls = 50
	}
	if cfg.Quota.NotifyQueue == "" {
		cfg.Quota.NotifyQueue = "notify_queue"
	}
	if cfg.Quota.FollowUpHours == 0 {
		cfg.Quota.FollowUpHours = 24
	}
	if cfg.Bot.PatternConfidenceThreshold == 0 {
		cfg.Bot.PatternConfidenceThreshold = 0.85
	}
	if cfg.Bot.ContextTTLMinutes == 0 {
		cfg.Bot.ContextTTLMinutes = 30
	}
	if cfg.Bot.HistoryLimit == 0 {
		cfg.Bot.HistoryLimit = 50
	}
	if cfg.Bot.RecipeUrgentDays == 0 {
		cfg.Bot.RecipeUrgentDays = 3
	}
	if cfg.Alerts.PacingSeconds == 0 {
		cfg.Alerts.PacingSeconds = 2
	}
	if cfg.Alerts.ActiveWindowDays == 0 {
		cfg.Alerts.ActiveWindowDays = 7
	}
	if cfg.Alerts.WeeklyMinMessages == 0 {
		cfg.Alerts.WeeklyMinMessages = 3
	}
	if cfg.Alerts.MaxMessageChars == 0 {
		cfg.Alerts.MaxMessageChars = 350
	}
	if cfg.Alerts.CleanupKeepDays == 0 {
		cfg.Alerts.CleanupKeepDays = 90
	}
	if cfg.JWT.ExpireHours == 0 {
		cfg.JWT.ExpireHours = 72
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-1.5-flash"
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 15
	}
	if cfg.WhatsApp.TimeoutSeconds == 0 {
		cfg.WhatsApp.TimeoutSeconds = 10
	}
	if len(cfg.CORS.AllowedMethods) == 0 {
		cfg.CORS.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.CORS.AllowedHeaders) == 0 {
		cfg.CORS.AllowedHeaders = []string{"Authorization", "Content-Type"}
	}
	if len(cfg.Plans) == 0 {
		cfg.Plans = []PlanConfig{
			{Name: "monthly", Amount: 4.99, Months: 1},
			{Name: "quarterly", Amount: 14.99, Months: 3},
			{Name: "yearly", Amount: 49.99, Months: 12},
		}
	}
}
