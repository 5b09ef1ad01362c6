package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"spmigrate/database"
	"spmigrate/domain/migration"
	"spmigrate/infrastructure/directory"
	"spmigrate/logging"
	"spmigrate/spauth"
)

// AppConfig holds application-wide configuration.
type AppConfig struct {
	HTTPAddr    string
	HTTPLogPath string
	Database    *database.Config
	Logging     *logging.Config
	SharePoint  spauth.Config
	Directory   directory.Config

	Transformation   migration.TransformationConfig
	FailOnUnresolved bool // exit non-zero when a run leaves principals unresolved
}

// LoadAppConfigFromEnv loads complete application configuration from environment variables.
func LoadAppConfigFromEnv() (*AppConfig, error) {
	transformation, err := LoadTransformationConfigFromEnv()
	if err != nil {
		return nil, err
	}

	return &AppConfig{
		HTTPAddr:         getEnvWithDefault("HTTP_ADDR", ":8080"),
		HTTPLogPath:      getEnvWithDefault("HTTP_LOG_PATH", ""),
		Database:         LoadDatabaseConfigFromEnv(),
		Logging:          LoadLoggingConfigFromEnv(),
		SharePoint:       spauth.LoadFromEnv(),
		Directory:        LoadDirectoryConfigFromEnv(),
		Transformation:   transformation,
		FailOnUnresolved: getEnvBoolWithDefault("FAIL_ON_UNRESOLVED", false),
	}, nil
}

// LoadTransformationConfigFromEnv loads the run options from environment variables.
func LoadTransformationConfigFromEnv() (migration.TransformationConfig, error) {
	cfg := migration.DefaultTransformationConfig()

	version, err := migration.ParseSourceVersion(os.Getenv("SP_SOURCE_VERSION"))
	if err != nil {
		return cfg, fmt.Errorf("SP_SOURCE_VERSION: %w", err)
	}

	cfg.SourceVersion = version
	cfg.UserMappingFile = getEnvWithDefault("USER_MAPPING_FILE", "")
	cfg.SkipUserMapping = getEnvBoolWithDefault("SKIP_USER_MAPPING", false)
	cfg.LDAPConnectionString = getEnvWithDefault("LDAP_CONNECTION_STRING", "")
	cfg.DirectoryTimeout = getEnvDurationWithDefault("DIRECTORY_TIMEOUT", migration.DefaultDirectoryTimeout)
	cfg.Overwrite = getEnvBoolWithDefault("OVERWRITE", false)
	cfg.SkipTelemetry = getEnvBoolWithDefault("SKIP_TELEMETRY", false)
	cfg.KeepPageSpecificPermissions = getEnvBoolWithDefault("KEEP_PAGE_SPECIFIC_PERMISSIONS", cfg.KeepPageSpecificPermissions)
	return cfg, nil
}

// LoadDirectoryConfigFromEnv loads the LDAP adapter settings from environment variables.
func LoadDirectoryConfigFromEnv() directory.Config {
	cfg := directory.DefaultConfig()
	cfg.UseTLS = getEnvBoolWithDefault("LDAP_USE_TLS", false)
	if cfg.UseTLS {
		cfg.Port = 636
	}
	cfg.Port = getEnvIntWithDefault("LDAP_PORT", cfg.Port)
	cfg.DefaultScope = getEnvWithDefault("LDAP_CONNECTION_STRING", "")
	cfg.DialTimeout = getEnvDurationWithDefault("LDAP_DIAL_TIMEOUT", cfg.DialTimeout)
	cfg.BindDN = getEnvWithDefault("LDAP_BIND_DN", "")
	cfg.BindPassword = getEnvWithDefault("LDAP_BIND_PASSWORD", "")
	cfg.Kerberos.Keytab = getEnvWithDefault("LDAP_KERBEROS_KEYTAB", "")
	cfg.Kerberos.User = getEnvWithDefault("LDAP_KERBEROS_USER", "")
	cfg.Kerberos.Realm = getEnvWithDefault("LDAP_KERBEROS_REALM", "")
	cfg.Kerberos.CCache = getEnvWithDefault("LDAP_KERBEROS_CCACHE", "")
	cfg.Kerberos.Krb5Config = getEnvWithDefault("KRB5_CONFIG", cfg.Kerberos.Krb5Config)
	return cfg
}

// LoadDatabaseConfigFromEnv loads database configuration from environment variables.
func LoadDatabaseConfigFromEnv() *database.Config {
	return &database.Config{
		Path:              getEnvWithDefault("DB_PATH", "./spmigrate.db"),
		MaxOpenConns:      getEnvIntWithDefault("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:      getEnvIntWithDefault("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:   getEnvDurationWithDefault("DB_CONN_MAX_LIFETIME", time.Hour),
		ConnMaxIdleTime:   getEnvDurationWithDefault("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		BusyTimeoutMs:     getEnvIntWithDefault("DB_BUSY_TIMEOUT_MS", 5000),
		EnableForeignKeys: getEnvBoolWithDefault("DB_ENABLE_FOREIGN_KEYS", true),
		EnableWAL:         getEnvBoolWithDefault("DB_ENABLE_WAL", true),
	}
}

// LoadLoggingConfigFromEnv loads logging configuration from environment variables.
func LoadLoggingConfigFromEnv() *logging.Config {
	return &logging.Config{
		Level:  getEnvWithDefault("LOG_LEVEL", "info"),
		Format: getEnvWithDefault("LOG_FORMAT", "json"),
		Output: getEnvWithDefault("LOG_OUTPUT", "stderr"),
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(v string, def bool) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// Helper functions for environment variable parsing.
func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return parseBool(value, defaultValue)
	}
	return defaultValue
}

func getEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
