package postgres

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrate struct {
	upErr, downErr  error
	version         uint
	dirty           bool
	versionErr      error
	srcErr, dbErr   error
	upCalls, downCalls int
}

func (f *fakeMigrate) Up() error   { f.upCalls++; return f.upErr }
func (f *fakeMigrate) Down() error { f.downCalls++; return f.downErr }
func (f *fakeMigrate) Version() (uint, bool, error) {
	return f.version, f.dirty, f.versionErr
}
func (f *fakeMigrate) Close() (error, error) { return f.srcErr, f.dbErr }

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	var ups, downs int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		default:
			t.Fatalf("unexpected file in migrations: %s", e.Name())
		}
	}
	assert.Greater(t, ups, 0)
	assert.Equal(t, ups, downs, "every up migration needs a down")
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db", migrateURL("postgres://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://u:p@h:5432/db", migrateURL("postgresql://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://u:p@h:5432/db", migrateURL("pgx5://u:p@h:5432/db"))
}

func TestMigrator_Up_NoChangeIsNotAnError(t *testing.T) {
	f := &fakeMigrate{upErr: migrate.ErrNoChange}
	m := &Migrator{m: f}

	assert.NoError(t, m.Up())
	assert.Equal(t, 1, f.upCalls)
}

func TestMigrator_Up_Failure(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{upErr: errors.New("syntax error")}}

	err := m.Up()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate up")
}

func TestMigrator_Down(t *testing.T) {
	assert.NoError(t, (&Migrator{m: &fakeMigrate{downErr: migrate.ErrNoChange}}).Down())
	assert.Error(t, (&Migrator{m: &fakeMigrate{downErr: errors.New("locked")}}).Down())
}

func TestMigrator_Version(t *testing.T) {
	v, dirty, err := (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
	assert.False(t, dirty)

	v, dirty, err = (&Migrator{m: &fakeMigrate{version: 1, dirty: true}}).Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.True(t, dirty)

	_, _, err = (&Migrator{m: &fakeMigrate{versionErr: errors.New("boom")}}).Version()
	assert.Error(t, err)
}

func TestMigrator_Close_JoinsErrors(t *testing.T) {
	src, db := errors.New("src"), errors.New("db")
	err := (&Migrator{m: &fakeMigrate{srcErr: src, dbErr: db}}).Close()

	assert.ErrorIs(t, err, src)
	assert.ErrorIs(t, err, db)
	assert.NoError(t, (&Migrator{m: &fakeMigrate{}}).Close())
}
