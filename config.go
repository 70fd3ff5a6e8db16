package taskboard

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// service configuration. values resolve in order:
// defaults, then the toml file, then environment overrides.
type Config struct {
	Listen        string `toml:"listen"`
	MongoUri      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
	JwtKey        string `toml:"jwt_key"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen:        ":3001",
		MongoUri:      "mongodb://localhost:27017",
		MongoDatabase: "taskboard",
	}
}

func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, config); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("could not read config %s: %w", path, err)
			}
		}
	}

	if listen := os.Getenv("TASKBOARD_LISTEN"); listen != "" {
		config.Listen = listen
	}
	if mongoUri := os.Getenv("TASKBOARD_MONGO_URI"); mongoUri != "" {
		config.MongoUri = mongoUri
	}
	if mongoDatabase := os.Getenv("TASKBOARD_MONGO_DATABASE"); mongoDatabase != "" {
		config.MongoDatabase = mongoDatabase
	}
	if jwtKey := os.Getenv("TASKBOARD_JWT_KEY"); jwtKey != "" {
		config.JwtKey = jwtKey
	}

	if config.JwtKey == "" {
		return nil, fmt.Errorf("a jwt key is required (set jwt_key or TASKBOARD_JWT_KEY)")
	}

	return config, nil
}
