package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glefebvre/guidepost/internal/config"
	"github.com/glefebvre/guidepost/internal/models"
)

func TestOpen_SQLiteMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "guide.db")

	conn, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: path}, "silent")
	require.NoError(t, err)

	for _, model := range models.All() {
		assert.True(t, conn.Migrator().HasTable(model), "missing table for %T", model)
	}
	assert.FileExists(t, path)

	Set(conn)
	defer Set(nil)
	assert.NoError(t, HealthCheck())
	assert.NoError(t, Close())
}

func TestDialector(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.DatabaseConfig
		want    string
		wantErr bool
	}{
		{"sqlite", config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, "sqlite", false},
		{"default driver", config.DatabaseConfig{Path: ":memory:"}, "sqlite", false},
		{"postgres", config.DatabaseConfig{Driver: "postgres", Host: "localhost", Port: 5432, User: "u", DBName: "d", SSLMode: "disable"}, "postgres", false},
		{"unknown", config.DatabaseConfig{Driver: "mysql"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Dialector(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestHealthCheck_NotInitialized(t *testing.T) {
	Set(nil)
	assert.Error(t, HealthCheck())
	assert.NoError(t, Close())
}
