package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the call-center process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Switch SwitchConfig
	Flow   FlowConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

// SwitchConfig describes how to reach the telephony switch's control API
// and its event subscription endpoint.
type SwitchConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// AppName identifies our subscription on the event channel.
	AppName string

	UseTLS bool

	// CommandTimeout bounds every control command round-trip.
	CommandTimeout time.Duration
}

// FlowConfig carries call-flow tunables: business hours, queue fallbacks
// and the safety net for sessions whose terminal event was lost.
type FlowConfig struct {
	BusinessStartHour int
	BusinessEndHour   int

	DefaultQueue  string
	FallbackQueue string

	// SessionIdleTimeout force-completes sessions silent for this long.
	SessionIdleTimeout time.Duration

	// ReconnectDelay paces event-stream reconnect attempts.
	ReconnectDelay time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")

	c.Switch.Host = strings.TrimSpace(os.Getenv("SWITCH_HOST"))
	{
		n, err := mustInt("SWITCH_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Switch.Port = n
	}
	c.Switch.Username = strings.TrimSpace(os.Getenv("SWITCH_USERNAME"))
	c.Switch.Password = os.Getenv("SWITCH_PASSWORD")
	c.Switch.AppName = strings.TrimSpace(os.Getenv("SWITCH_APP_NAME"))
	c.Switch.UseTLS = parseBool(os.Getenv("SWITCH_USE_TLS"))
	c.Switch.CommandTimeout = mustDuration("SWITCH_COMMAND_TIMEOUT")

	c.Flow.BusinessStartHour = optInt("FLOW_BUSINESS_START_HOUR", -1)
	c.Flow.BusinessEndHour = optInt("FLOW_BUSINESS_END_HOUR", -1)
	c.Flow.DefaultQueue = strings.TrimSpace(os.Getenv("FLOW_DEFAULT_QUEUE"))
	c.Flow.FallbackQueue = strings.TrimSpace(os.Getenv("FLOW_FALLBACK_QUEUE"))
	c.Flow.SessionIdleTimeout = mustDuration("FLOW_SESSION_IDLE_TIMEOUT")
	c.Flow.ReconnectDelay = mustDuration("FLOW_RECONNECT_DELAY")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 8 * time.Hour
	}

	if c.Switch.Host == "" {
		errs = append(errs, errors.New("SWITCH_HOST is required"))
	}
	if c.Switch.Port <= 0 || c.Switch.Port > 65535 {
		errs = append(errs, fmt.Errorf("SWITCH_PORT must be a valid port, got %d", c.Switch.Port))
	}
	if c.Switch.Username == "" {
		errs = append(errs, errors.New("SWITCH_USERNAME is required"))
	}
	if c.Switch.Password == "" {
		errs = append(errs, errors.New("SWITCH_PASSWORD is required"))
	}
	if c.Switch.AppName == "" {
		c.Switch.AppName = "smart-call-center"
	}
	if c.Switch.CommandTimeout <= 0 {
		c.Switch.CommandTimeout = 15 * time.Second
	}

	if c.Flow.BusinessStartHour < 0 {
		c.Flow.BusinessStartHour = 9
	}
	if c.Flow.BusinessEndHour < 0 {
		c.Flow.BusinessEndHour = 18
	}
	if c.Flow.BusinessStartHour > 23 || c.Flow.BusinessEndHour > 24 || c.Flow.BusinessStartHour >= c.Flow.BusinessEndHour {
		errs = append(errs, fmt.Errorf("business hours %d..%d are not a valid hour range", c.Flow.BusinessStartHour, c.Flow.BusinessEndHour))
	}
	if c.Flow.DefaultQueue == "" {
		c.Flow.DefaultQueue = "support"
	}
	if c.Flow.FallbackQueue == "" {
		c.Flow.FallbackQueue = c.Flow.DefaultQueue
	}
	if c.Flow.SessionIdleTimeout <= 0 {
		c.Flow.SessionIdleTimeout = 2 * time.Hour
	}
	if c.Flow.ReconnectDelay <= 0 {
		c.Flow.ReconnectDelay = 5 * time.Second
	}

	return joinErrors(errs)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c *Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// ControlURL is the base URL of the switch's REST-like control API.
func (c *Config) ControlURL() string {
	scheme := "http"
	if c.Switch.UseTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d/ari", scheme, c.Switch.Host, c.Switch.Port)
}

// EventsURL is the switch's event subscription endpoint.
func (c *Config) EventsURL() string {
	scheme := "ws"
	if c.Switch.UseTLS {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/ari/events", scheme, c.Switch.Host, c.Switch.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
