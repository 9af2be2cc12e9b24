package env

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// Addr is the host:port RESP clients connect to
	Addr string `env:"RESPD_ADDR,default=127.0.0.1:6379"`

	MaxConnections uint `env:"RESPD_MAX_CONNECTIONS,default=1023"`
	MaxDepth       int  `env:"RESPD_MAX_DEPTH,default=32"`
	MaxUnitSize    int  `env:"RESPD_MAX_UNIT_SIZE,default=67108864"`

	Listeners int  `env:"RESPD_LISTENERS,default=1"`
	Reuseport bool `env:"RESPD_REUSEPORT"`

	// HTTPAddr enables the admin HTTP server when set
	HTTPAddr  string `env:"RESPD_HTTP_ADDR"`
	DebugHTTP bool   `env:"RESPD_DEBUG_HTTP"`

	LogLevel string `env:"RESPD_LOG_LEVEL,default=info"`

	// SeedFile is a JSON object of string values loaded into the store
	// at start up
	SeedFile string `env:"RESPD_SEED_FILE"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
