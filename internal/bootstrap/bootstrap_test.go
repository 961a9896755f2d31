package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GregMSThompson/dashboard-backend/internal/config"
)

func TestRun_SQLiteWithoutAuth(t *testing.T) {
	cfg := &config.Config{
		LogLevel:     "error",
		StoreBackend: config.StoreSQLite,
		SQLitePath:   filepath.Join(t.TempDir(), "dash.db"),
		AuthMode:     config.AuthNone,
		NumberLocale: "de",
	}
	bs, err := Run(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })

	assert.Nil(t, bs.Firebase)
	assert.Nil(t, bs.Firestore)
	require.NotNil(t, bs.Renderer)

	fields, err := bs.Fields.ListFields(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestRun_BadLocale(t *testing.T) {
	cfg := &config.Config{
		LogLevel:     "error",
		StoreBackend: config.StoreSQLite,
		SQLitePath:   filepath.Join(t.TempDir(), "dash.db"),
		AuthMode:     config.AuthNone,
		NumberLocale: "not a locale!",
	}
	bs, err := Run(cfg)
	require.Error(t, err)
	_ = bs.Close()
}
