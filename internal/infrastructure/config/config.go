package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Application environments accepted in APP_ENV.
const (
	EnvDevelopment = "development"
	EnvDevProdDB   = "dev-prod-db"
	EnvProduction  = "production"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	AppEnv    string `env:"APP_ENV, required"`
	Port      string `env:"SERVICE_PORT, required"`
	SecretKey string `env:"SECRET_KEY, required"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	// PublicBaseURL overrides the request origin when building reset links.
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	JSAppPath     string `env:"JS_APP_PATH, default=./js-app/dist"`

	JWT     JWTConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Limits  LimitsConfig
	Storage StorageConfig
	AMQP    AMQPConfig

	// Derived from AppEnv by Load.
	CookieSecure  bool
	StorageSource string
	EnableJSApp   bool
	EnableSwagger bool
}

type JWTConfig struct {
	SecretKey      string        `env:"JWT_SECRET_KEY, default=$SECRET_KEY"`
	AccessExpires  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRES, default=15m"`
	RefreshExpires time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRES, default=720h"`
	ResetExpires   time.Duration `env:"RESET_TOKEN_EXPIRES, default=24h"`
}

type MongoConfig struct {
	URI            string        `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database       string        `env:"MONGO_DB, default=geodonis"`
	AppName        string        `env:"MONGO_APP_NAME, default=geodonis-web"`
	MaxPoolSize    uint64        `env:"MONGO_MAX_POOL_SIZE, default=50"`
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT, default=10s"`
}

type RedisConfig struct {
	Addr        string        `env:"REDIS_ADDR, default=localhost:6379"`
	Password    string        `env:"REDIS_PASSWORD"`
	DB          int           `env:"REDIS_DB, default=0"`
	PoolSize    int           `env:"REDIS_POOL_SIZE, default=10"`
	DialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT, default=5s"`
}

type LimitsConfig struct {
	LoginRate   int           `env:"LOGIN_RATE_LIMIT, default=10"`
	LoginWindow time.Duration `env:"LOGIN_RATE_WINDOW, default=1m"`
}

type StorageConfig struct {
	BasePath string `env:"FILES_BASE_PATH, default=./data/files"`

	Region             string `env:"AWS_REGION, default=us-east-1"`
	Endpoint           string `env:"AWS_S3_ENDPOINT"`
	Bucket             string `env:"AWS_BT_FILES_BUCKET_NAME"`
	ReadAccessKey      string `env:"AWS_BT_FILES_READ_ONLY_ACCESS_KEY"`
	ReadSecretKey      string `env:"AWS_BT_FILES_READ_ONLY_SECRET_KEY"`
	ReadWriteAccessKey string `env:"AWS_BT_FILES_READ_WRITE_ACCESS_KEY"`
	ReadWriteSecretKey string `env:"AWS_BT_FILES_READ_WRITE_SECRET_KEY"`
}

type AMQPConfig struct {
	// URL left empty disables event publishing.
	URL      string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE, default=geodonis.accounts"`
}

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return loadFrom(ctx, envconfig.OsLookuper())
}

// MustLoad is Load that panics on error.
func MustLoad(ctx context.Context) *Config {
	cfg, err := Load(ctx)
	if err != nil {
		panic(err)
	}
	return cfg
}

func loadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.derive(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) derive() error {
	switch c.AppEnv {
	case EnvDevelopment:
		c.StorageSource = StorageLocal
	case EnvDevProdDB, EnvProduction:
		c.StorageSource = StorageS3
	default:
		return fmt.Errorf("config: APP_ENV %q must be one of %s, %s, %s",
			c.AppEnv, EnvDevelopment, EnvDevProdDB, EnvProduction)
	}
	c.CookieSecure = c.AppEnv == EnvProduction
	c.EnableJSApp = c.AppEnv != EnvProduction
	c.EnableSwagger = c.AppEnv != EnvProduction
	if !c.EnableJSApp {
		c.JSAppPath = ""
	}
	if c.StorageSource == StorageS3 && c.Storage.Bucket == "" {
		return errors.New("config: AWS_BT_FILES_BUCKET_NAME is required outside development")
	}
	return nil
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Pretty reports whether console log output should be used.
func (c *Config) Pretty() bool {
	return c.AppEnv == EnvDevelopment
}
