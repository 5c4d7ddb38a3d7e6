package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FACILITYD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FACILITYD_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Facility.Account, "FACILITYD_FACILITY_ACCOUNT")
	setStr(&cfg.Facility.Warehouse, "FACILITYD_FACILITY_WAREHOUSE")
	setStr(&cfg.Facility.Originator, "FACILITYD_FACILITY_ORIGINATOR")
	setStr(&cfg.Facility.EscrowAccount, "FACILITYD_FACILITY_ESCROW_ACCOUNT")
	setStr(&cfg.Facility.SettlementDenom, "FACILITYD_FACILITY_SETTLEMENT_DENOM")
	setStr(&cfg.Facility.AdvanceRate, "FACILITYD_FACILITY_ADVANCE_RATE")

	setStr(&cfg.Database.DSN, "FACILITYD_DATABASE_DSN")
	setStr(&cfg.Database.Host, "FACILITYD_DATABASE_HOST")
	setInt(&cfg.Database.Port, "FACILITYD_DATABASE_PORT")
	setStr(&cfg.Database.Database, "FACILITYD_DATABASE_NAME")
	setStr(&cfg.Database.User, "FACILITYD_DATABASE_USER")
	setStr(&cfg.Database.Password, "FACILITYD_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "FACILITYD_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "FACILITYD_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "FACILITYD_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "FACILITYD_DATABASE_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "FACILITYD_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "FACILITYD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FACILITYD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FACILITYD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FACILITYD_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "FACILITYD_REDIS_TLS_ENABLED")

	setStr(&cfg.S3.Endpoint, "FACILITYD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FACILITYD_S3_REGION")
	setStr(&cfg.S3.Bucket, "FACILITYD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FACILITYD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FACILITYD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FACILITYD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FACILITYD_S3_FORCE_PATH_STYLE")

	setStr(&cfg.Registry.BaseURL, "FACILITYD_REGISTRY_BASE_URL")
	setStr(&cfg.Registry.APIKey, "FACILITYD_REGISTRY_API_KEY")

	setBool(&cfg.Archive.Enabled, "FACILITYD_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "FACILITYD_ARCHIVE_RETENTION_DAYS")

	setInt(&cfg.Server.Port, "FACILITYD_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "FACILITYD_SERVER_API_KEY")

	setStr(&cfg.Storage, "FACILITYD_STORAGE")
	setStr(&cfg.LogLevel, "FACILITYD_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
