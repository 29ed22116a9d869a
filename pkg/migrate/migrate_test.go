package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestShippedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestEscrowMigrationEnforcesSinglePaymentPerMilestone(t *testing.T) {
	content := readMigration(t, "create_escrow_and_wallet")
	for _, sub := range []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_escrow_milestone_payment",
		"WHERE type = 'milestone_payment'",
		"CHECK (amount > 0)",
		"DROP TABLE IF EXISTS escrow_transactions",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestProjectMigrationGuardsFundingAndProgress(t *testing.T) {
	content := readMigration(t, "create_projects_and_milestones")
	for _, sub := range []string{
		"current_funding <= funding_goal",
		"project_progress <= 100",
		"milestones_approval_consistent",
		"milestones_rejection_reason_present",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestEnumMigrationMatchesMilestoneLifecycle(t *testing.T) {
	content := readMigration(t, "create_enums")
	assert.Contains(t, content, "'pending', 'in_progress', 'awaiting_verification', 'approved', 'rejected'")
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	assert.ErrorContains(t, ValidateDir(dir), "invalid migration filename")

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_no_down.sql"), []byte("-- +goose Up\n"), 0o644))
	assert.ErrorContains(t, ValidateDir(dir), "-- +goose Down")
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	path, err := CreateSQLMigration(dir, " Add Rule Index! ", now)
	require.NoError(t, err)
	assert.Equal(t, "20260301090000_add_rule_index.sql", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "-- +goose Up"))
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "add rule index", now)
	assert.ErrorContains(t, err, "already exists")

	_, err = CreateSQLMigration(dir, "!!!", now)
	assert.Error(t, err)
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("20260301090000")
	require.NoError(t, err)
	assert.Equal(t, int64(20260301090000), v)

	_, err = ParseVersion("42")
	assert.Error(t, err)
}
