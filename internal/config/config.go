package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
		// TrustedProxies lists proxy IPs/CIDRs whose X-Forwarded-For is honored.
		TrustedProxies []string
	}
	Log struct {
		Level string
	}
	Database struct {
		Driver string
		Path   string
		URL    string
	}
	Medicine struct {
		SearchURL string
	}
	RateLimit struct {
		RPS   float64
		Burst int
	}
	Archive struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
		Interval  time.Duration
		Keep      int
	}
	AWS struct {
		Profile string
	}
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Load reads configuration from environment variables and optional config files.
// Values from a local .env file never override variables already set.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("THREPSI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8000")
	v.SetDefault("server.trustedproxies", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "threpsi.db")
	v.SetDefault("database.url", "")
	v.SetDefault("medicine.searchurl", "https://www.1mg.com/search/all")
	v.SetDefault("ratelimit.rps", 0)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.keyprefix", "appointments")
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.interval", "24h")
	v.SetDefault("archive.keep", 30)
	v.SetDefault("aws.profile", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("database path is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return fmt.Errorf("database url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Archive.Bucket != "" && c.Archive.Interval <= 0 {
		return fmt.Errorf("archive interval must be positive")
	}
	return nil
}
