package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/config.yaml"

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	Storage    `yaml:"storage"`
	Ledger     `yaml:"ledger"`
	Tokens     `yaml:"tokens"`
	Password   `yaml:"password"`
	Notifier   `yaml:"notifier"`
	RabbitMQ   `yaml:"rabbitmq"`
	SMTP       `yaml:"smtp"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
	HTTPServer `yaml:"http_server"`
	Metrics    `yaml:"metrics"`
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
}

type Ledger struct {
	Driver    string        `yaml:"driver" env:"LEDGER_DRIVER" env-default:"postgres"`
	Retention time.Duration `yaml:"retention" env:"LEDGER_RETENTION" env-default:"720h"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"postgres"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSLMODE" env-default:"disable"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"redis:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Tokens struct {
	Secret          string        `yaml:"secret" env:"TOKEN_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
}

type Password struct {
	Algorithm  string `yaml:"algorithm" env:"PASSWORD_ALGORITHM" env-default:"bcrypt"`
	BcryptCost int    `yaml:"bcrypt_cost" env:"PASSWORD_BCRYPT_COST" env-default:"10"`
}

type Notifier struct {
	Transport string `yaml:"transport" env:"NOTIFIER_TRANSPORT" env-default:"rabbitmq"`
	BaseURL   string `yaml:"base_url" env:"NOTIFIER_BASE_URL" env-default:"http://localhost:8080"`
	From      string `yaml:"from" env:"NOTIFIER_FROM" env-default:"noreply@yourdomain.com"`
	Workers   int    `yaml:"workers" env:"NOTIFIER_WORKERS" env-default:"2"`
	QueueSize int    `yaml:"queue_size" env:"NOTIFIER_QUEUE_SIZE" env-default:"128"`
}

type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL"`
	QueueName string `yaml:"queue_name" env:"RABBITMQ_QUEUE" env-default:"verification_emails"`
}

type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"SMTP_USERNAME"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
	Path    string `yaml:"path" env:"METRICS_PATH" env-default:"/metrics"`
}

// MailSenderConfig is the subset read by cmd/mail_sender.
type MailSenderConfig struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local"`
	Notifier `yaml:"notifier"`
	RabbitMQ `yaml:"rabbitmq"`
	SMTP     `yaml:"smtp"`
}

func MustLoad() *Config {
	return MustLoadPath(fetchConfigPath())
}

func MustLoadPath(configPath string) *Config {
	var cfg Config

	mustRead(configPath, &cfg)

	if err := cfg.validate(); err != nil {
		panic("Invalid config: " + err.Error())
	}

	return &cfg
}

func MustLoadMailSender() *MailSenderConfig {
	var cfg MailSenderConfig

	mustRead(fetchConfigPath(), &cfg)

	return &cfg
}

func mustRead(configPath string, cfg any) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("Config file does not exist: " + configPath)
	}

	if err := cleanenv.ReadConfig(configPath, cfg); err != nil {
		panic("Failed to read config: " + err.Error())
	}
}

// * fetchConfigPath: флаг -config, затем CONFIG_PATH, затем путь по умолчанию
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = defaultConfigPath
	}

	return res
}
