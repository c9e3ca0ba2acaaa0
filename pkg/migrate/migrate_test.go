package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/allocations-backend/pkg/config"
	"github.com/angelmondragon/allocations-backend/pkg/db"
	"github.com/angelmondragon/allocations-backend/pkg/db/models"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestValidateDirAcceptsRepoMigrations(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestTierMigrationEnforcesLevelUniqueness(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_allocation_tiers.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS " + models.TierLevelConstraint,
		"CHECK (level > 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_tier_product_overrides_product ON tier_product_overrides (tier_id, product_id)",
		"REFERENCES allocations(id) ON DELETE RESTRICT",
		"DROP TABLE IF EXISTS allocation_tiers",
	} {
		require.Contains(t, content, sub)
	}
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- +goose Up"), 0o644))
	require.Error(t, ValidateDir(dir))

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_no_down.sql"), []byte("-- +goose Up"), 0o644))
	err := ValidateDir(dir)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "goose Down"))
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Tier Notes!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_tier_notes.sql"))
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("20260301120000")
	require.NoError(t, err)
	require.Equal(t, int64(20260301120000), v)

	_, err = ParseVersion("123")
	require.Error(t, err)
	_, err = ParseVersion("")
	require.Error(t, err)
}

func TestMaybeRunDevAutoMigratesSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_autorun?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	client := db.NewFromGorm(conn)

	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true, UseSQLite: true},
	}
	require.NoError(t, MaybeRunDev(context.Background(), cfg, logger.Nop(), client))

	for _, table := range []string{"allocations", "allocation_tiers", "tier_product_overrides", "customer_tiers"} {
		require.True(t, conn.Migrator().HasTable(table), "missing table %s", table)
	}
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: config.AppEnvProd}}
	require.NoError(t, MaybeRunDev(context.Background(), cfg, logger.Nop(), nil))
}
