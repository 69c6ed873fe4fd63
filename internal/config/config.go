package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	// TranslationCooldown is the minimum interval between accepted
	// translations per room.
	TranslationCooldown time.Duration `mapstructure:"translation_cooldown"`
	// EchoTranslationToPartner also sends translation_text to the partner.
	EchoTranslationToPartner bool `mapstructure:"echo_translation_to_partner"`

	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	RoomIdleTimeout   time.Duration `mapstructure:"room_idle_timeout"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`

	EventQueueSize int `mapstructure:"event_queue_size"`
	AudioQueueSize int `mapstructure:"audio_queue_size"`

	TranscriptRateLimit    int           `mapstructure:"transcript_rate_limit"`
	TranscriptRateInterval time.Duration `mapstructure:"transcript_rate_interval"`

	StunURL string `mapstructure:"stun_url"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")

	v.SetDefault("translation_cooldown", "1s")
	v.SetDefault("echo_translation_to_partner", true)
	v.SetDefault("connection_timeout", "90s")
	v.SetDefault("room_idle_timeout", "5m")
	v.SetDefault("sweep_interval", "30s")
	v.SetDefault("event_queue_size", 16)
	v.SetDefault("audio_queue_size", 32)
	v.SetDefault("transcript_rate_limit", 10)
	v.SetDefault("transcript_rate_interval", "10s")
	v.SetDefault("stun_url", "stun:stun.l.google.com:19302")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Static: %s\n", cfg.Mode, cfg.Port, cfg.StaticPath)
	return &cfg, nil
}
