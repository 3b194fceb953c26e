package configuration

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"publish-pipeline/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App          App          `json:"app"`
	Database     Database     `json:"database"`
	Catalog      Catalog      `json:"catalog"`
	Connectivity Connectivity `json:"connectivity"`
	Media        Media        `json:"media"`
	Republish    Republish    `json:"republish"`
	Pubsub       Pubsub       `json:"pubsub"`
	ServiceBus   ServiceBus   `json:"serviceBus"`
	RedisClient  RedisClient  `json:"redisClient"`
	Logger       Logger       `json:"logger"`
	YouTube      YouTube      `json:"youtube"`
}

type App struct {
	Port        int    `json:"port"`
	SecretKey   string `json:"secretKey"`
	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile"`
}

// Database selects the draft store backend. Driver is one of file, postgres,
// mssql, mysql, mongo.
type Database struct {
	Driver string `json:"driver"`
	File   File   `json:"file"`
	Psql   Db     `json:"psql"`
	MySql  Db     `json:"mysql"`
	Mongo  Db     `json:"mongo"`
	Mssql  Db     `json:"mssql"`
}

type File struct {
	Path string `json:"path"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// Catalog describes the remote catalog service. Mode is http or youtube.
type Catalog struct {
	Mode       string        `json:"mode"`
	BaseURL    string        `json:"baseURL"`
	HealthPath string        `json:"healthPath"`
	Timeout    time.Duration `json:"timeout"`
}

type Connectivity struct {
	Interval time.Duration `json:"interval"`
	Timeout  time.Duration `json:"timeout"`
}

type Media struct {
	ProbeTimeout time.Duration `json:"probeTimeout"`
	FetchTimeout time.Duration `json:"fetchTimeout"`
	MaxBytes     int64         `json:"maxBytes"`
}

type Republish struct {
	Delay          time.Duration `json:"delay"`
	AttemptTimeout time.Duration `json:"attemptTimeout"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
	Topic     string `json:"topic"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
	Queue     string `json:"queue"`
}

type RedisClient struct {
	Host     string        `json:"host"`
	Port     string        `json:"port"`
	Password string        `json:"password"`
	Username string        `json:"username"`
	TTL      time.Duration `json:"ttl"`
}

type Logger struct {
	Level string `json:"level"`
}

type YouTube struct {
	APIKey       string `json:"apiKey"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectURI"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ChannelID    string `json:"channelId"`
}

var C Config

func init() {
	LoadEnvFromFile("config.env", ".env")
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	logger.SetLevel(C.Logger.Level)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", 10001)
	v.SetDefault("database.driver", "file")
	v.SetDefault("database.file.path", "data/drafts.json")
	v.SetDefault("catalog.mode", "http")
	v.SetDefault("catalog.baseURL", "http://localhost:8090")
	v.SetDefault("catalog.healthPath", "/health")
	v.SetDefault("catalog.timeout", 10*time.Second)
	v.SetDefault("connectivity.interval", 15*time.Second)
	v.SetDefault("connectivity.timeout", 3*time.Second)
	v.SetDefault("media.probeTimeout", 2*time.Second)
	v.SetDefault("media.fetchTimeout", 30*time.Second)
	v.SetDefault("media.maxBytes", int64(256<<20))
	v.SetDefault("republish.delay", 500*time.Millisecond)
	v.SetDefault("republish.attemptTimeout", 30*time.Second)
	v.SetDefault("redisClient.ttl", 10*time.Minute)
	v.SetDefault("pubsub.topic", "publish-pipeline-events")
	v.SetDefault("serviceBus.queue", "publish-pipeline-events")
	v.SetDefault("logger.level", "info")
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found, using defaults")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	if v := os.Getenv("DB_DRIVER"); v != "" {
		C.Database.Driver = v
	}
	if v := os.Getenv("DRAFTS_FILE"); v != "" {
		C.Database.File.Path = v
	}
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.User == "" {
		C.Database.Psql.User = os.Getenv("DB_USER")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = os.Getenv("DB_PORT")
	}

	if C.Database.Mssql.Name == "" {
		C.Database.Mssql.Name = os.Getenv("MSSQL_DB_NAME")
	}
	if C.Database.Mssql.Host == "" {
		C.Database.Mssql.Host = os.Getenv("MSSQL_HOST")
	}
	if C.Database.Mssql.Password == "" {
		C.Database.Mssql.Password = os.Getenv("MSSQL_PASSWORD")
	}
	if C.Database.Mssql.User == "" {
		C.Database.Mssql.User = os.Getenv("MSSQL_USER")
	}
	if C.Database.Mssql.Port == "" {
		if v := os.Getenv("MSSQL_PORT"); v != "" {
			C.Database.Mssql.Port = v
		} else {
			C.Database.Mssql.Port = "1433"
		}
	}
	if C.Database.Mssql.Host == "" {
		C.Database.Mssql.Host = "localhost"
	}
	logger.GetLogger().WithField("driver", C.Database.Driver).Info("Draft store configuration")
}

func initApp(C *Config) {
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 10001
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10001
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch v {
		case "1", "true", "TRUE", "True":
			C.App.TLSEnabled = true
		case "0", "false", "FALSE", "False":
			C.App.TLSEnabled = false
		}
	}
	if C.App.TLSCertFile == "" {
		C.App.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	}
	if C.App.TLSKeyFile == "" {
		C.App.TLSKeyFile = os.Getenv("TLS_KEY_FILE")
	}
	if v := os.Getenv("CATALOG_BASE_URL"); v != "" {
		C.Catalog.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		C.Logger.Level = v
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; catalog reset tokens are signed with an ephemeral key")
	}
}
