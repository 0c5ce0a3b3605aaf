package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env             string
	Build           string
	AppName         string
	Debug           bool
	TestMode        bool
	SecretKey       string
	Timezone        string
	FrontendBaseURL string
	RollbarToken    string

	PasswordResetTimeoutDelta time.Duration

	Email struct {
		DefaultFrom    mail.Address
		SendgridAPIKey string
	}

	Server struct {
		Host                      string
		Address                   string
		DebugAddress              string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		AllowedOrigins            []string
	}

	Database struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite only
	}

	Redis struct {
		Address  string // empty: in-memory mailbox & event bus
		Password string
		DB       int
	}

	RFID struct {
		ScanTTL         time.Duration
		OnlineThreshold time.Duration
		RateLimit       float64 // requests per second, per device token
		RateBurst       int
	}

	LLM struct {
		BaseURL string
		APIKey  string
		Model   string
		Timeout time.Duration
	}

	loc *time.Location
}

// DatabaseAddress returns the database "host:port".
func (c *Config) DatabaseAddress() string {
	return net.JoinHostPort(c.Database.Host, c.Database.Port)
}

// Location returns the timezone used for day boundaries (calendar, streaks, schedules).
func (c *Config) Location() *time.Location {
	if c.loc != nil {
		return c.loc
	}
	return time.UTC
}

func (c *Config) SubjectPrefix() string {
	return "[" + c.AppName + "] "
}

// NewConfig loads the configuration for the current ENV (DEV by default).
// Values are read from the environment, prefixed with the env name (eg. DEV_DATABASE_NAME);
// "config/.env.<env>" is loaded beforehand if it exists.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	setDefaults(v, env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf, err := configFromViper(v, env)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return conf
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "VeriClock")
	v.SetDefault("secretKey", "w0x!k=7r$c8_vericlock_dev_only_f2(zq9#h@pe4)n1")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("email.defaultFrom", "VeriClock <noreply@localhost>")
	v.SetDefault("email.sendgridApiKey", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.allowedOrigins", "*")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "vericlock")
	v.SetDefault("database.user", "vericlock")
	v.SetDefault("database.password", "vericlock")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")
	v.SetDefault("database.path", "vericlock.db")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rfid.scanTTL", 60*time.Second)
	v.SetDefault("rfid.onlineThreshold", 5*time.Minute)
	v.SetDefault("rfid.rateLimit", 5.0)
	v.SetDefault("rfid.rateBurst", 10)

	v.SetDefault("llm.baseURL", "https://api.openai.com/v1")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 60*time.Second)
}

func configFromViper(v *viper.Viper, env string) (*Config, error) {
	conf := new(Config)
	conf.Env = env
	conf.Build = v.GetString("build")
	conf.AppName = v.GetString("appName")
	conf.Debug = v.GetBool("debug")
	conf.TestMode = v.GetBool("testMode")
	conf.SecretKey = v.GetString("secretKey")
	conf.Timezone = v.GetString("timezone")
	conf.FrontendBaseURL = strings.TrimRight(v.GetString("frontendBaseURL"), "/")
	conf.RollbarToken = v.GetString("rollbarToken")
	conf.PasswordResetTimeoutDelta = v.GetDuration("passwordResetTimeoutDelta")

	from, err := mail.ParseAddress(v.GetString("email.defaultFrom"))
	if err != nil {
		return nil, fmt.Errorf("parsing email.defaultFrom: %w", err)
	}
	conf.Email.DefaultFrom = *from
	conf.Email.SendgridAPIKey = v.GetString("email.sendgridApiKey")

	conf.Server.Host = v.GetString("server.host")
	conf.Server.Address = v.GetString("server.address")
	conf.Server.DebugAddress = v.GetString("server.debugAddress")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("server.jwtRefreshExpirationDelta")
	for _, origin := range strings.Split(v.GetString("server.allowedOrigins"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			conf.Server.AllowedOrigins = append(conf.Server.AllowedOrigins, origin)
		}
	}

	conf.Database.Engine = strings.ToLower(v.GetString("database.engine"))
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetString("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")
	conf.Database.Path = v.GetString("database.path")

	conf.Redis.Address = v.GetString("redis.address")
	conf.Redis.Password = v.GetString("redis.password")
	conf.Redis.DB = v.GetInt("redis.db")

	conf.RFID.ScanTTL = v.GetDuration("rfid.scanTTL")
	conf.RFID.OnlineThreshold = v.GetDuration("rfid.onlineThreshold")
	conf.RFID.RateLimit = v.GetFloat64("rfid.rateLimit")
	conf.RFID.RateBurst = v.GetInt("rfid.rateBurst")

	conf.LLM.BaseURL = strings.TrimRight(v.GetString("llm.baseURL"), "/")
	conf.LLM.APIKey = v.GetString("llm.apiKey")
	conf.LLM.Model = v.GetString("llm.model")
	conf.LLM.Timeout = v.GetDuration("llm.timeout")

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", conf.Timezone, err)
	}
	conf.loc = loc
	return conf, nil
}

// NewTestConfig returns the configuration used by tests: sqlite in memory, in-memory cache, UTC.
func NewTestConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v, "TEST")
	v.Set("database.engine", "sqlite")
	v.Set("database.path", ":memory:")
	v.Set("secretKey", "secret")
	v.Set("appName", "VeriClock")
	conf, err := configFromViper(v, "TEST")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return conf
}
