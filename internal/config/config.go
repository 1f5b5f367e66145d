// Package config provides functionality for managing configuration options
// for the server using command-line flags, a JSON file and environment
// variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// DefaultAllowedOrigins are the browser origins allowed by CORS when nothing
// else is configured.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"https://*.vercel.app",
}

// FallbackJWTSecret is used when no secret is configured. It is only fit for
// local development.
const FallbackJWTSecret = "fallback-secret"

// Options holds the configuration values for the server.
type Options struct {
	// Address defines the server's listening address (ip:port).
	Address string

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string

	// JWTSecret signs bearer tokens.
	JWTSecret string

	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration

	// AllowedOrigins lists the CORS origins.
	AllowedOrigins []string

	// LogLevel is the zap level name.
	LogLevel string

	// OpenWrites disables the owner check on project updates and deletes.
	OpenWrites bool

	// DBRetries bounds the startup connection attempts.
	DBRetries uint64

	// BcryptCost is the password hashing cost.
	BcryptCost int

	// PurgeAfter is how long soft-deleted projects are kept.
	PurgeAfter time.Duration

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string
	TLSKey  string

	// Config is the path to the Config file.
	Config string
}

// fileOptions is the JSON shape of the config file. Durations are strings
// such as "168h".
type fileOptions struct {
	Address        *string  `json:"address"`
	DatabaseDSN    *string  `json:"database_dsn"`
	JWTSecret      *string  `json:"jwt_secret"`
	TokenTTL       *string  `json:"token_ttl"`
	AllowedOrigins []string `json:"allowed_origins"`
	LogLevel       *string  `json:"log_level"`
	OpenWrites     *bool    `json:"open_writes"`
	DBRetries      *uint64  `json:"db_retries"`
	BcryptCost     *int     `json:"bcrypt_cost"`
	PurgeAfter     *string  `json:"purge_after"`
	TLSCert        *string  `json:"tls_cert"`
	TLSKey         *string  `json:"tls_key"`
}

func defaults() *Options {
	return &Options{
		Address:        "localhost:8080",
		TokenTTL:       7 * 24 * time.Hour,
		AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
		LogLevel:       "info",
		DBRetries:      10,
		BcryptCost:     12,
		PurgeAfter:     30 * 24 * time.Hour,
		Config:         "config.json",
	}
}

// ParseArgs builds Options from defaults, then the config file, then the
// flags given explicitly in args, then environment variables.
func ParseArgs(args []string) (*Options, error) {
	opts := defaults()
	flagged := defaults()

	fs := flag.NewFlagSet("cipherstudio", flag.ContinueOnError)
	var origins string
	fs.StringVar(&flagged.Address, "a", flagged.Address, "run on ip:port server")
	fs.StringVar(&flagged.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&flagged.JWTSecret, "s", "", "jwt signing secret")
	fs.DurationVar(&flagged.TokenTTL, "t", flagged.TokenTTL, "token lifetime")
	fs.StringVar(&origins, "o", "", "comma separated CORS origins")
	fs.StringVar(&flagged.LogLevel, "l", flagged.LogLevel, "log level")
	fs.BoolVar(&flagged.OpenWrites, "open-writes", false, "allow any identity to modify any project")
	fs.Uint64Var(&flagged.DBRetries, "db-retries", flagged.DBRetries, "database connection attempts")
	fs.IntVar(&flagged.BcryptCost, "bcrypt-cost", flagged.BcryptCost, "bcrypt cost")
	fs.DurationVar(&flagged.PurgeAfter, "purge-after", flagged.PurgeAfter, "retention of deleted projects")
	fs.StringVar(&flagged.TLSCert, "tls-cert", "", "TLS certificate file")
	fs.StringVar(&flagged.TLSKey, "tls-key", "", "TLS key file")
	fs.StringVar(&flagged.Config, "config", flagged.Config, "path to config file")
	fs.StringVar(&flagged.Config, "c", flagged.Config, "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	opts.Config = flagged.Config
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}
	if err := loadFile(opts); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			opts.Address = flagged.Address
		case "d":
			opts.DatabaseDSN = flagged.DatabaseDSN
		case "s":
			opts.JWTSecret = flagged.JWTSecret
		case "t":
			opts.TokenTTL = flagged.TokenTTL
		case "o":
			opts.AllowedOrigins = splitList(origins)
		case "l":
			opts.LogLevel = flagged.LogLevel
		case "open-writes":
			opts.OpenWrites = flagged.OpenWrites
		case "db-retries":
			opts.DBRetries = flagged.DBRetries
		case "bcrypt-cost":
			opts.BcryptCost = flagged.BcryptCost
		case "purge-after":
			opts.PurgeAfter = flagged.PurgeAfter
		case "tls-cert":
			opts.TLSCert = flagged.TLSCert
		case "tls-key":
			opts.TLSKey = flagged.TLSKey
		}
	})

	applyEnv(opts)

	if (opts.TLSCert == "") != (opts.TLSKey == "") {
		return nil, errors.New("tls-cert and tls-key must be set together")
	}
	return opts, nil
}

// Parse parses os.Args and the environment. It exits the process on error.
func Parse() *Options {
	opts, err := ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("error while parsing configuration: %v", err)
	}
	return opts
}

// UsesFallbackSecret reports whether no JWT secret was configured.
func (o *Options) UsesFallbackSecret() bool {
	return o.JWTSecret == "" || o.JWTSecret == FallbackJWTSecret
}

// Secret returns the configured JWT secret or the fallback.
func (o *Options) Secret() string {
	if o.JWTSecret == "" {
		return FallbackJWTSecret
	}
	return o.JWTSecret
}

func loadFile(opts *Options) error {
	if opts.Config == "" {
		return nil
	}
	if _, err := os.Stat(opts.Config); err != nil {
		return nil
	}

	data, err := os.ReadFile(opts.Config)
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}
	var fo fileOptions
	if err := json.Unmarshal(data, &fo); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}

	setString(&opts.Address, fo.Address)
	setString(&opts.DatabaseDSN, fo.DatabaseDSN)
	setString(&opts.JWTSecret, fo.JWTSecret)
	setString(&opts.LogLevel, fo.LogLevel)
	setString(&opts.TLSCert, fo.TLSCert)
	setString(&opts.TLSKey, fo.TLSKey)
	if fo.AllowedOrigins != nil {
		opts.AllowedOrigins = fo.AllowedOrigins
	}
	if fo.OpenWrites != nil {
		opts.OpenWrites = *fo.OpenWrites
	}
	if fo.DBRetries != nil {
		opts.DBRetries = *fo.DBRetries
	}
	if fo.BcryptCost != nil {
		opts.BcryptCost = *fo.BcryptCost
	}
	if err := setDuration(&opts.TokenTTL, fo.TokenTTL); err != nil {
		return fmt.Errorf("token_ttl: %w", err)
	}
	if err := setDuration(&opts.PurgeAfter, fo.PurgeAfter); err != nil {
		return fmt.Errorf("purge_after: %w", err)
	}
	return nil
}

func applyEnv(opts *Options) {
	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		opts.Address = serverAddress
	} else if port := os.Getenv("PORT"); port != "" {
		opts.Address = ":" + port
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		opts.DatabaseDSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		opts.JWTSecret = secret
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		opts.LogLevel = level
	}
	if frontend := strings.TrimSpace(os.Getenv("FRONTEND_URL")); frontend != "" {
		opts.AllowedOrigins = append(opts.AllowedOrigins, frontend)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
