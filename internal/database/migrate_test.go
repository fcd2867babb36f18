package database

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

func TestMigrateCreatesEveryTable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db), "migrations are repeatable")

	for _, model := range models.All() {
		require.True(t, db.Migrator().HasTable(model), "%T", model)
	}
}

func TestConnectersRejectEmptyURLs(t *testing.T) {
	_, err := ConnectRedis("")
	require.Error(t, err)
	_, err = ConnectNATS("", "test", zerolog.Nop())
	require.Error(t, err)
}
