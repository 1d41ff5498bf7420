package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address                   string
		Host                      string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
	}

	StorageConfig struct {
		Driver            string // s3 | memory
		Endpoint          string
		Region            string
		Bucket            string
		AccessKey         string
		SecretKey         string
		UseSSL            bool
		UsePathStyle      bool
		PresignExpiration time.Duration
		MaxUploadSize     int64
	}

	BookingConfig struct {
		SlotDuration time.Duration
		MaxRangeDays int
	}

	Config struct {
		Env                       string
		Build                     string
		AppName                   string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		WorkDir                   string
		FrontendBaseURL           string
		SendgridAPIKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Storage  StorageConfig
		Booking  BookingConfig

		defaultFromEmail string
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DefaultFromEmail parses the configured sender; falls back to a bare address on parse failure.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	return *addr
}

// NewConfig reads the configuration from defaults, the optional config/.env.<env> file and the environment.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Semindo")
	v.SetDefault("secretKey", "k3p!7w_semindo-dev-only-0x5c9b2f(e1)a8#d4^r6%q")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("defaultFromEmail", "Semindo <noreply@localhost>")
	v.SetDefault("sendgridAPIKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverDebugHost", "localhost:4000")
	v.SetDefault("jwtExpirationDelta", 24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("shutdownTimeout", 5*time.Second)
	v.SetDefault("readTimeout", 10*time.Second)
	v.SetDefault("writeTimeout", 30*time.Second)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbName", "semindo")
	v.SetDefault("dbUser", "semindo")
	v.SetDefault("dbPassword", "semindo")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("redisEnabled", false)
	v.SetDefault("redisAddr", "localhost:6379")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDB", 0)

	v.SetDefault("storageDriver", "memory")
	v.SetDefault("storageEndpoint", "localhost:9000")
	v.SetDefault("storageRegion", "us-east-1")
	v.SetDefault("storageBucket", "semindo-arsip")
	v.SetDefault("storageAccessKey", "")
	v.SetDefault("storageSecretKey", "")
	v.SetDefault("storageUseSSL", false)
	v.SetDefault("storageUsePathStyle", true)
	v.SetDefault("storagePresignExpiration", 15*time.Minute)
	v.SetDefault("storageMaxUploadSize", int64(10<<20))

	v.SetDefault("bookingSlotDuration", time.Hour)
	v.SetDefault("bookingMaxRangeDays", 62)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		AppName:                   v.GetString("appName"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		SecretKey:                 v.GetString("secretKey"),
		WorkDir:                   workDir,
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		SendgridAPIKey:            v.GetString("sendgridAPIKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Address:                   v.GetString("serverAddress"),
			Host:                      v.GetString("serverHost"),
			DebugHost:                 v.GetString("serverDebugHost"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("shutdownTimeout"),
			ReadTimeout:               v.GetDuration("readTimeout"),
			WriteTimeout:              v.GetDuration("writeTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetInt("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redisEnabled"),
			Addr:     v.GetString("redisAddr"),
			Password: v.GetString("redisPassword"),
			DB:       v.GetInt("redisDB"),
		},
		Storage: StorageConfig{
			Driver:            v.GetString("storageDriver"),
			Endpoint:          v.GetString("storageEndpoint"),
			Region:            v.GetString("storageRegion"),
			Bucket:            v.GetString("storageBucket"),
			AccessKey:         v.GetString("storageAccessKey"),
			SecretKey:         v.GetString("storageSecretKey"),
			UseSSL:            v.GetBool("storageUseSSL"),
			UsePathStyle:      v.GetBool("storageUsePathStyle"),
			PresignExpiration: v.GetDuration("storagePresignExpiration"),
			MaxUploadSize:     v.GetInt64("storageMaxUploadSize"),
		},
		Booking: BookingConfig{
			SlotDuration: v.GetDuration("bookingSlotDuration"),
			MaxRangeDays: v.GetInt("bookingMaxRangeDays"),
		},
	}
}

// NewTestConfig returns a Config suitable for unit tests; nothing is read from the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		AppName:                   "Semindo",
		TestMode:                  true,
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:5173",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		defaultFromEmail:          "noreply@semindo.test",
		Server: ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			ShutdownTimeout:           time.Second,
		},
		Storage: StorageConfig{
			Driver:        "memory",
			Bucket:        "test",
			MaxUploadSize: 1 << 20,
		},
		Booking: BookingConfig{
			SlotDuration: time.Hour,
			MaxRangeDays: 62,
		},
	}
}
