package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Server struct {
	Port        string `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
	AppURL      string `mapstructure:"app_url"`
}

type Postgres struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
}

type Redis struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	// DB holds the cache/limiter database, SocketDB the socket.io adapter database.
	DB       int `mapstructure:"db"`
	SocketDB int `mapstructure:"socket_db"`
}

type RabbitMQ struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Queue    string `mapstructure:"queue"`
}

type JWT struct {
	Secret        string `mapstructure:"secret"`
	ExpireSeconds int    `mapstructure:"expire_seconds"`
}

// Vapid is the push signing identity. It is read once at startup.
type Vapid struct {
	Subject    string `mapstructure:"subject"`
	PublicKey  string `mapstructure:"public_key"`
	PrivateKey string `mapstructure:"private_key"`
}

type RateLimit struct {
	Messages      int `mapstructure:"messages"`
	Logins        int `mapstructure:"logins"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

type Config struct {
	Server    Server    `mapstructure:"server"`
	Postgres  Postgres  `mapstructure:"postgres"`
	Redis     Redis     `mapstructure:"redis"`
	RabbitMQ  RabbitMQ  `mapstructure:"rabbitmq"`
	JWT       JWT       `mapstructure:"jwt"`
	Vapid     Vapid     `mapstructure:"vapid"`
	RateLimit RateLimit `mapstructure:"rate_limit"`
	EventMode string    `mapstructure:"event_mode"`
	OtpIssuer string    `mapstructure:"otp_issuer"`
	Log       struct {
		Development bool `mapstructure:"development"`
	} `mapstructure:"log"`
}

// Load reads .env (if present) and the process environment. Keys are the upper-cased,
// underscore-joined paths of the struct, e.g. POSTGRES_HOST or VAPID_PUBLIC_KEY.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.app_url", "http://localhost:3000")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.db", "unimarket")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.socket_db", 1)
	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.port", "5672")
	v.SetDefault("rabbitmq.user", "guest")
	v.SetDefault("rabbitmq.password", "guest")
	v.SetDefault("rabbitmq.queue", "unimarket")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expire_seconds", 3600)
	v.SetDefault("vapid.subject", "mailto:admin@unimarket.com")
	v.SetDefault("vapid.public_key", "")
	v.SetDefault("vapid.private_key", "")
	v.SetDefault("rate_limit.messages", 30)
	v.SetDefault("rate_limit.logins", 10)
	v.SetDefault("rate_limit.window_seconds", 60)
	v.SetDefault("event_mode", "DISABLE")
	v.SetDefault("otp_issuer", "unimarket")
	v.SetDefault("log.development", false)
}

func (c *Config) Production() bool {
	return c.Server.Environment == "production"
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.ExpireSeconds) * time.Second
}

func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}
