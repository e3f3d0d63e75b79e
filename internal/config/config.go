package config

import (
	"log"
	"os"

	"github.com/BurntSushi/toml"
)

type MainConfig struct {
	AppName string `toml:"appName"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

type MysqlConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
}

type LogConfig struct {
	LogPath string `toml:"logPath"`
}

type RedisConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"poolSize"`
	MinIdleConns int    `toml:"minIdleConns"`
}

type KafkaConfig struct {
	Brokers           []string `toml:"brokers"`
	ClientID          string   `toml:"clientID"`
	NotificationTopic string   `toml:"notificationTopic"`
}

type ToolsApiConfig struct {
	BaseURL        string `toml:"baseURL"`
	ApiKey         string `toml:"apiKey"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
}

type SmtpConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	User string `toml:"user"`
	Pass string `toml:"pass"`
	From string `toml:"from"`
}

type SchedulerConfig struct {
	ReconcileIntervalSeconds int    `toml:"reconcileIntervalSeconds"`
	SourceCheckEvery         int    `toml:"sourceCheckEvery"`
	EmailIntervalSeconds     int    `toml:"emailIntervalSeconds"`
	EmailBatchSize           int    `toml:"emailBatchSize"`
	MaxEmailRetries          int    `toml:"maxEmailRetries"`
	RetrySweepCron           string `toml:"retrySweepCron"`
	RetrySweepHoursOld       int    `toml:"retrySweepHoursOld"`
	DigestCron               string `toml:"digestCron"`
	SendConcurrency          int    `toml:"sendConcurrency"`
}

type Config struct {
	MainConfig      `toml:"mainConfig"`
	MysqlConfig     `toml:"mysqlConfig"`
	LogConfig       `toml:"logConfig"`
	RedisConfig     `toml:"redisConfig"`
	KafkaConfig     `toml:"kafkaConfig"`
	ToolsApiConfig  `toml:"toolsApiConfig"`
	SmtpConfig      `toml:"smtpConfig"`
	SchedulerConfig `toml:"schedulerConfig"`
}

var config *Config

func LoadConfig() error {
	configPath := os.Getenv("ACCESSOPS_CONFIG")
	if configPath == "" {
		configPath = "configs/config_local.toml"
	}
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		log.Printf("failed to load config file: %v, falling back to defaults", err)
		return err
	}
	return nil
}

func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig()
	}
	return config
}
