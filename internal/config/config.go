package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Serial   SerialConfig   `mapstructure:"serial"`
	Covers   CoversConfig   `mapstructure:"covers"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Profiles ProfilesConfig `mapstructure:"motor_profiles"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// Auth Configuration
type AuthConfig struct {
	JWTSecretEnv   string        `mapstructure:"jwt_secret_env"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type SerialConfig struct {
	Port string `mapstructure:"port"`
	// Baudrate des Sticks laut Hersteller-Firmware 112500 - NICHT der
	// übliche Wert 115200. Bewusst nicht "korrigiert", nur per Config
	// änderbar.
	BaudRate          int           `mapstructure:"baud_rate"`
	VerifyTimeout     time.Duration `mapstructure:"verify_timeout"`
	DeviceIDTimeout   time.Duration `mapstructure:"device_id_timeout"`
	PairingTimeout    time.Duration `mapstructure:"pairing_timeout"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	ListenSettleDelay time.Duration `mapstructure:"listen_settle_delay"`
	BusyRetryDelay    time.Duration `mapstructure:"busy_retry_delay"`
	StopPairingDelay  time.Duration `mapstructure:"stop_pairing_delay"`
}

type CoversConfig struct {
	DefaultTravelTime  time.Duration `mapstructure:"default_travel_time"`
	PositionTick       time.Duration `mapstructure:"position_tick"`
	CalibrationTimeout time.Duration `mapstructure:"calibration_timeout"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BrokerURL   string `mapstructure:"broker_url"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type ProfilesConfig struct {
	SearchPaths []string `mapstructure:"search_paths"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	// Defaults setzen
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")

	viper.SetDefault("serial.port", "/dev/ttyUSB0")
	viper.SetDefault("serial.baud_rate", 112500)
	viper.SetDefault("serial.verify_timeout", "5s")
	viper.SetDefault("serial.device_id_timeout", "5s")
	viper.SetDefault("serial.pairing_timeout", "120s")
	viper.SetDefault("serial.reconnect_delay", "5s")
	viper.SetDefault("serial.listen_settle_delay", "500ms")
	viper.SetDefault("serial.busy_retry_delay", "100ms")
	viper.SetDefault("serial.stop_pairing_delay", "2s")

	viper.SetDefault("covers.default_travel_time", "60s")
	viper.SetDefault("covers.position_tick", "200ms")
	viper.SetDefault("covers.calibration_timeout", "300s")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.client_id", "openshuttercore")
	viper.SetDefault("mqtt.topic_prefix", "openshutter")

	// Auth Defaults
	viper.SetDefault("auth.jwt_secret_env", "JWT_SECRET")
	viper.SetDefault("auth.access_token_ttl", "60m")

	// Environment Variables automatisch binden (Viper Feature)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("OSC") // Environment Variables mit Prefix OSC_

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// JWT Secret aus Environment Variable laden
func (a *AuthConfig) GetJWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "JWT_SECRET" // Fallback
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		// Development Fallback (MIT WARNING!)
		return "dev-secret-change-in-production-min-32-chars"
	}
	return secret
}
