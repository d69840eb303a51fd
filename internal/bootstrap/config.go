package bootstrap

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort      string        `mapstructure:"SERVER_PORT"`
	RedisUrl        string        `mapstructure:"REDIS_URL"`
	MongoUri        string        `mapstructure:"MONGO_URI"`
	MongoDatabase   string        `mapstructure:"MONGO_DATABASE"`
	IsLocalCors     bool          `mapstructure:"LOCAL_CORS"`
	PageLimitKifu   int           `mapstructure:"PAGE_LIMIT_KIFU"`
	NormalizeOnSave bool          `mapstructure:"NORMALIZE_ON_SAVE"`
	KifuTTL         time.Duration `mapstructure:"KIFU_TTL"`
	DataDir         string        `mapstructure:"DATA_DIR"`
}

var configKeys = []string{
	"SERVER_PORT",
	"REDIS_URL",
	"MONGO_URI",
	"MONGO_DATABASE",
	"LOCAL_CORS",
	"PAGE_LIMIT_KIFU",
	"NORMALIZE_ON_SAVE",
	"KIFU_TTL",
	"DATA_DIR",
}

// Setup читает конфигурацию из dotenv-файла. Переменные окружения процесса
// имеют приоритет над файлом; отсутствие файла не ошибка.
func Setup(cfgPath string) (*Config, error) {
	v := viper.New()
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("MONGO_DATABASE", "kifu_viewer")
	v.SetDefault("PAGE_LIMIT_KIFU", 20)
	v.SetDefault("KIFU_TTL", "0s")
	v.SetDefault("DATA_DIR", ".")

	if cfgPath != "" {
		if err := godotenv.Load(cfgPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if _, err := os.Stat(cfgPath); err == nil {
			v.SetConfigFile(cfgPath)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	}

	v.AutomaticEnv()
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
