package taskboard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestLoadConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "taskboard.toml")
	err := os.WriteFile(configPath, []byte(`
listen = ":4001"
mongo_uri = "mongodb://db:27017"
jwt_key = "file-key"
`), 0600)
	assert.Equal(t, nil, err)

	config, err := LoadConfig(configPath)
	assert.Equal(t, nil, err)
	assert.Equal(t, ":4001", config.Listen)
	assert.Equal(t, "mongodb://db:27017", config.MongoUri)
	// unset values keep their defaults
	assert.Equal(t, "taskboard", config.MongoDatabase)
	assert.Equal(t, "file-key", config.JwtKey)

	// environment overrides the file
	os.Setenv("TASKBOARD_JWT_KEY", "env-key")
	defer os.Unsetenv("TASKBOARD_JWT_KEY")
	config, err = LoadConfig(configPath)
	assert.Equal(t, nil, err)
	assert.Equal(t, "env-key", config.JwtKey)
}

func TestLoadConfigRequiresJwtKey(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Equal(t, (*Config)(nil), config)
	assert.NotEqual(t, nil, err)
}
