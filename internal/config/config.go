package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the main config struct
type Config struct {
	Environment string         `yaml:"environment" env:"ENVIRONMENT" env-default:"production" env-description:"Environment name"`
	Verbose     string         `yaml:"verbose" env:"VERBOSE" env-default:"info" env-description:"Verbose mode for debug output"`
	Secret      string         `yaml:"secret" env:"SECRET" env-default:"" env-description:"Secret key for the admin API"`
	Discord     DiscordConfig  `yaml:"discord"`
	Roblox      RobloxConfig   `yaml:"roblox"`
	Wave        WaveConfig     `yaml:"wave"`
	Database    DatabaseConfig `yaml:"database"`
	API         APIConfig      `yaml:"api"`
	Metrics     MetricsConfig  `yaml:"metrics"`
	Proxy       ProxyConfig    `yaml:"proxy"`
}

// Discord config
type DiscordConfig struct {
	Token          string `yaml:"token" env:"DISCORD_TOKEN" env-required:"true" env-description:"Discord bot token"`
	ModRoleID      string `yaml:"mod_role_id" env:"DISCORD_MOD_ROLE_ID" env-default:"" env-description:"Moderator role ID"`
	SupermodRoleID string `yaml:"supermod_role_id" env:"DISCORD_SUPERMOD_ROLE_ID" env-default:"" env-description:"Supermoderator role ID"`
	AdminRoleID    string `yaml:"admin_role_id" env:"DISCORD_ADMIN_ROLE_ID" env-default:"" env-description:"Admin role ID"`
	LogChannel     string `yaml:"log_channel" env:"DISCORD_LOG_CHANNEL" env-default:"logs" env-description:"Name of the text channel receiving audit logs"`
	AppealURL      string `yaml:"appeal_url" env:"DISCORD_APPEAL_URL" env-default:"https://discord.gg/5PyPkuE4Ak" env-description:"Appeal invite sent to banned users"`
}

// Roblox Open Cloud config
type RobloxConfig struct {
	APIKey             string        `yaml:"api_key" env:"ROBLOX_API_KEY" env-required:"true" env-description:"Roblox Open Cloud API key"`
	UniverseID         string        `yaml:"universe_id" env:"UNIVERSE_ID" env-required:"true" env-description:"Roblox universe to apply restrictions to"`
	UsersURL           string        `yaml:"users_url" env:"ROBLOX_USERS_URL" env-default:"https://users.roblox.com" env-description:"Users API base URL"`
	CloudURL           string        `yaml:"cloud_url" env:"ROBLOX_CLOUD_URL" env-default:"https://apis.roblox.com" env-description:"Open Cloud API base URL"`
	LookupTimeout      time.Duration `yaml:"lookup_timeout" env:"ROBLOX_LOOKUP_TIMEOUT" env-default:"15s"`
	RestrictionTimeout time.Duration `yaml:"restriction_timeout" env:"ROBLOX_RESTRICTION_TIMEOUT" env-default:"20s"`
}

// Ban wave pacing config
type WaveConfig struct {
	RowDelay      time.Duration `yaml:"row_delay" env:"WAVE_ROW_DELAY" env-default:"500ms" env-description:"Pause between processed rows"`
	ProgressEvery int           `yaml:"progress_every" env:"WAVE_PROGRESS_EVERY" env-default:"10" env-description:"Emit a progress message every N rows"`
	MaxFileSize   int64         `yaml:"max_file_size" env:"WAVE_MAX_FILE_SIZE" env-default:"1048576" env-description:"Maximum accepted CSV upload size in bytes"`
}

// SQLite, PostgreSQL or MySQL config
type DatabaseConfig struct {
	// Driver is the database driver to use. Supported drivers are "sqlite3", "postgres" and "mysql".
	Driver     string `yaml:"driver" env:"DATABASE_DRIVER" env-default:"sqlite3" env-description:"Database driver to use"`
	Connection string `yaml:"connection" env:"DATABASE_CONNECTION" env-default:":memory:" env-description:"Database connection string"`
}

// API config
type APIConfig struct {
	Host         string        `yaml:"host" env:"API_HOST" env-default:"localhost" env-description:"API host address to bind to"`
	Port         int           `yaml:"port" env:"API_PORT" env-default:"8080" env-description:"API port to bind to"`
	Timeout      time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"30s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"API_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"API_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"API_IDLE_TIMEOUT" env-default:"15s"`
}

// InfluxDB metrics config
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"false" env-description:"Enable InfluxDB metrics"`
	URL     string `yaml:"url" env:"METRICS_URL" env-default:"" env-description:"InfluxDB server URL"`
	Token   string `yaml:"token" env:"METRICS_TOKEN" env-default:"" env-description:"InfluxDB auth token"`
	Org     string `yaml:"org" env:"METRICS_ORG" env-default:"" env-description:"InfluxDB organization"`
	Bucket  string `yaml:"bucket" env:"METRICS_BUCKET" env-default:"" env-description:"InfluxDB bucket"`
}

// Optional SOCKS5 proxy for outgoing HTTP calls
type ProxyConfig struct {
	Address  string `yaml:"address" env:"PROXY_ADDRESS" env-default:"" env-description:"SOCKS5 proxy address"`
	Port     int    `yaml:"port" env:"PROXY_PORT" env-default:"0" env-description:"SOCKS5 proxy port"`
	Username string `yaml:"username" env:"PROXY_USERNAME" env-default:""`
	Password string `yaml:"password" env:"PROXY_PASSWORD" env-default:""`
}

// ConfigError - config loading error
type ConfigError struct {
	Message string
}

// Error - implement the error interface
func (e *ConfigError) Error() string {
	return e.Message
}

// MustLoadConfig reads the config file pointed to by CONFIG_PATH (default
// config.yml) merged with environment variables. A missing file is not an
// error: the environment alone is enough to run.
func MustLoadConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yml"
	}

	var config Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cleanenv.ReadEnv(&config); err != nil {
			return nil, &ConfigError{
				Message: fmt.Sprintf("Cannot read config from environment: %s", err),
			}
		}

		return &config, nil
	}

	if err := cleanenv.ReadConfig(configPath, &config); err != nil {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Cannot read config file: %s", err),
		}
	}

	return &config, nil
}
