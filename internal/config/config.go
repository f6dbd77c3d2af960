package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server    ServerConfig    `env:",prefix=SERVER_"`
	Postgres  PostgresConfig  `env:",prefix=POSTGRES_"`
	Redis     RedisConfig     `env:",prefix=REDIS_"`
	JWT       JWTConfig       `env:",prefix=JWT_"`
	Security  SecurityConfig  `env:",prefix="`
	RateLimit RateLimitConfig `env:",prefix=OTP_RATE_LIMIT_"`
	SMTP      SMTPConfig      `env:",prefix=SMTP_"`
	SMS       SMSConfig       `env:",prefix=SMS_"`
	CORS      CORSConfig      `env:",prefix=CORS_"`
	Admin     AdminConfig     `env:",prefix=ADMIN_"`
	Env       string          `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type PostgresConfig struct {
	Host          string `env:"HOST,default=localhost"`
	Port          string `env:"PORT,default=5432"`
	User          string `env:"USER,default=admin_auth"`
	Password      string `env:"PASSWORD,default=admin_auth_password"`
	DBName        string `env:"DB,default=admin_auth_db"`
	SSLMode       string `env:"SSLMODE,default=disable"`
	MigrationsDir string `env:"MIGRATIONS_DIR,default=migrations"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

type JWTConfig struct {
	Secret string `env:"SECRET,required"`
	// Session tokens are long lived; pending tokens live exactly as long
	// as the OTP code they guard.
	SessionTokenExpiry Duration `env:"SESSION_TOKEN_EXPIRY,default=30d"`
	PendingTokenExpiry Duration `env:"PENDING_TOKEN_EXPIRY,default=60s"`
}

type SecurityConfig struct {
	BCryptCost        int `env:"BCRYPT_COST,default=10"`
	PasswordMinLength int `env:"PASSWORD_MIN_LENGTH,default=15"`
	PasswordHistory   int `env:"PASSWORD_HISTORY,default=12"`
	// Minimum time between password changes.
	PasswordChangeInterval Duration `env:"PASSWORD_CHANGE_INTERVAL,default=24h"`
}

type RateLimitConfig struct {
	Requests int      `env:"REQUESTS,default=5"`
	Window   Duration `env:"WINDOW,default=5m"`
}

type SMTPConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=587"`
	Username string `env:"USERNAME,default="`
	Password string `env:"PASSWORD,default="`
	From     string `env:"FROM,default=no-reply@localhost"`
	ReplyTo  string `env:"REPLY_TO,default="`
}

type SMSConfig struct {
	APIURL   string `env:"API_URL,default="`
	Username string `env:"USERNAME,default="`
	Password string `env:"PASSWORD,default="`
	Sender   string `env:"SENDER,default="`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

type AdminConfig struct {
	// Base URL of the admin panel, used to build reset-password links.
	URL string `env:"URL,default=http://localhost:3000/admin"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(config.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	return &config, nil
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}
