package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Required fields
	DataDir      string `mapstructure:"data_dir"`   // document store being backed up
	BackupDir    string `mapstructure:"backup_dir"` // artifact destination
	JWTSecretKey string `mapstructure:"jwt_secret_key"`

	// Optional API settings
	APIHost string `mapstructure:"api_host"`
	APIPort int    `mapstructure:"api_port"`

	// Optional SSL settings
	SSLCert string `mapstructure:"ssl_cert"`
	SSLKey  string `mapstructure:"ssl_key"`

	// Optional CORS settings
	CORSOrigins []string `mapstructure:"cors_origins"`

	// Optional logging settings
	LogLevel string `mapstructure:"log_level"`

	// Optional engine settings
	EncryptionKey    string        `mapstructure:"encryption_key"`
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout"`
	StopTimeout      time.Duration `mapstructure:"stop_timeout"`

	// Static paths
	ConfigPath string
	DBPath     string `mapstructure:"db_path"`
}

const (
	DefaultConfigPath       = "/etc/backupd/config.yml"
	DefaultDBPath           = "/var/lib/backupd/db.sqlite3"
	DefaultAPIHost          = "0.0.0.0"
	DefaultAPIPort          = 8441
	DefaultLogLevel         = "info"
	DefaultExecutionTimeout = 2 * time.Hour
	DefaultStopTimeout      = 30 * time.Second
)

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Set defaults
	viper.SetDefault("api_host", DefaultAPIHost)
	viper.SetDefault("api_port", DefaultAPIPort)
	viper.SetDefault("log_level", DefaultLogLevel)
	viper.SetDefault("db_path", DefaultDBPath)
	viper.SetDefault("execution_timeout", DefaultExecutionTimeout)
	viper.SetDefault("stop_timeout", DefaultStopTimeout)

	// Allow environment variable overrides
	viper.AutomaticEnv()
	viper.SetEnvPrefix("BACKUPD")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ConfigPath = configPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.BackupDir == "" {
		return fmt.Errorf("backup_dir is required")
	}

	if c.JWTSecretKey == "" {
		return fmt.Errorf("jwt_secret_key is required")
	}

	if _, err := os.Stat(c.DataDir); os.IsNotExist(err) {
		return fmt.Errorf("data_dir does not exist: %s", c.DataDir)
	}

	if _, err := os.Stat(c.BackupDir); os.IsNotExist(err) {
		return fmt.Errorf("backup_dir does not exist: %s", c.BackupDir)
	}

	if c.ExecutionTimeout <= 0 {
		return fmt.Errorf("execution_timeout must be positive")
	}

	if c.StopTimeout <= 0 {
		return fmt.Errorf("stop_timeout must be positive")
	}

	// Validate SSL config if provided
	if c.SSLCert != "" || c.SSLKey != "" {
		if c.SSLCert == "" || c.SSLKey == "" {
			return fmt.Errorf("both ssl_cert and ssl_key must be provided")
		}
		if _, err := os.Stat(c.SSLCert); os.IsNotExist(err) {
			return fmt.Errorf("ssl_cert file does not exist: %s", c.SSLCert)
		}
		if _, err := os.Stat(c.SSLKey); os.IsNotExist(err) {
			return fmt.Errorf("ssl_key file does not exist: %s", c.SSLKey)
		}
	}

	return nil
}

func (c *Config) IsDevMode() bool {
	return os.Getenv("BACKUPD_DEV_MODE") == "1"
}
