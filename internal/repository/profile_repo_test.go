package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/plexbridge/plexbridge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupProfileTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.FFmpegProfile{})
	require.NoError(t, err)

	return db
}

func testClients() models.ProfileClients {
	return models.ProfileClients{
		models.ClientWebBrowser: {FFmpegArgs: "-i [URL] -c copy -f mpegts pipe:1"},
	}
}

func TestProfileRepo_DefaultFlagMoves(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	a := &models.FFmpegProfile{Name: "a", IsDefault: true, Clients: testClients()}
	b := &models.FFmpegProfile{Name: "b", Clients: testClients()}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	def, err := repo.GetDefault(ctx)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, a.ID, def.ID)

	require.NoError(t, repo.SetDefault(ctx, b.ID))

	def, err = repo.GetDefault(ctx)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, b.ID, def.ID)

	// Exactly one default at all times.
	var count int64
	require.NoError(t, db.Model(&models.FFmpegProfile{}).
		Where("is_default = ?", true).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestProfileRepo_SetDefaultMissing(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewProfileRepository(db)

	err := repo.SetDefault(context.Background(), models.NewULID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileRepo_DeleteProtections(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	def := &models.FFmpegProfile{Name: "default", IsDefault: true, Clients: testClients()}
	system := &models.FFmpegProfile{Name: "system", IsSystem: true, Clients: testClients()}
	plain := &models.FFmpegProfile{Name: "plain", Clients: testClients()}
	require.NoError(t, repo.Create(ctx, def))
	require.NoError(t, repo.Create(ctx, system))
	require.NoError(t, repo.Create(ctx, plain))

	assert.ErrorIs(t, repo.Delete(ctx, def.ID), ErrProfileIsDefault)
	assert.ErrorIs(t, repo.Delete(ctx, system.ID), ErrProfileIsSystem)
	assert.NoError(t, repo.Delete(ctx, plain.ID))

	gone, err := repo.GetByID(ctx, plain.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestProfileRepo_SystemImmutable(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	system := &models.FFmpegProfile{Name: "system", IsSystem: true, Clients: testClients()}
	require.NoError(t, repo.Create(ctx, system))

	system.Name = "renamed"
	assert.ErrorIs(t, repo.Update(ctx, system), ErrProfileIsSystem)
}

func TestProfileRepo_SystemCanBecomeDefault(t *testing.T) {
	// System profiles are immutable in content but may carry the default
	// flag; operators may also point the default at a non-system profile.
	db := setupProfileTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	system := &models.FFmpegProfile{Name: "system", IsSystem: true, IsDefault: true, Clients: testClients()}
	custom := &models.FFmpegProfile{Name: "custom", Clients: testClients()}
	require.NoError(t, repo.Create(ctx, system))
	require.NoError(t, repo.Create(ctx, custom))

	require.NoError(t, repo.SetDefault(ctx, custom.ID))
	def, err := repo.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, custom.ID, def.ID)

	require.NoError(t, repo.SetDefault(ctx, system.ID))
	def, err = repo.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, system.ID, def.ID)
}
