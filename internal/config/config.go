package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	PublicURL    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
}

type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	BucketSlides string
	BucketHooks  string
	UseSSL       bool
	Region       string
}

type SecurityConfig struct {
	OperatorPasswordHash string
	CookieSecret         string
	CookieTTL            time.Duration
	TriggerToken         string
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type ReplicateConfig struct {
	APIToken      string
	Model         string
	WebhookSecret string
}

type TikTokConfig struct {
	APIKey  string
	BaseURL string
}

type GenerationConfig struct {
	BatchSize       int
	ProviderSlots   int
	FallbackPrompt  string
	StaleAfter      time.Duration
	SweepSchedule   string
	PublishSchedule string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	OpenAI           OpenAIConfig
	Replicate        ReplicateConfig
	TikTok           TikTokConfig
	Generation       GenerationConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("SLIDEFLOW")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.publicurl", "http://localhost:8080")
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "generation:chain")
	v.SetDefault("redis.group", "chain-workers")
	v.SetDefault("redis.consumer", "worker-1")

	v.SetDefault("storage.bucketslides", "slideflow-slides")
	v.SetDefault("storage.buckethooks", "slideflow-hooks")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.cookiettl", "720h") // 30 days

	v.SetDefault("openai.model", "gpt-image-1")

	v.SetDefault("replicate.model", "wan-video/wan-2.2-i2v-fast")

	v.SetDefault("tiktok.baseurl", "https://tiktok-scraper7.p.rapidapi.com")

	v.SetDefault("generation.batchsize", 3)
	v.SetDefault("generation.providerslots", 1)
	v.SetDefault("generation.fallbackprompt", "Recreate this slide with a fresh, clean aesthetic while keeping the text readable")
	v.SetDefault("generation.staleafter", "15m")
	v.SetDefault("generation.sweepschedule", "0 */5 * * * *")
	v.SetDefault("generation.publishschedule", "0 * * * * *")
}
