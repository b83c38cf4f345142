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

func setupChannelTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Channel{}, &models.Stream{})
	require.NoError(t, err)

	return db
}

func TestChannelRepo_CreateAndGet(t *testing.T) {
	db := setupChannelTestDB(t)
	repo := NewChannelRepository(db)
	ctx := context.Background()

	ch := &models.Channel{Number: 5, Name: "NewsFirst", EpgID: "newsfirst.example"}
	require.NoError(t, repo.Create(ctx, ch))
	assert.False(t, ch.ID.IsZero())

	byID, err := repo.GetByID(ctx, ch.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "NewsFirst", byID.Name)

	byNumber, err := repo.GetByNumber(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, byNumber)
	assert.Equal(t, ch.ID, byNumber.ID)

	missing, err := repo.GetByNumber(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestChannelRepo_ListEnabled(t *testing.T) {
	db := setupChannelTestDB(t)
	repo := NewChannelRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Channel{Number: 2, Name: "Two"}))
	require.NoError(t, repo.Create(ctx, &models.Channel{Number: 1, Name: "One"}))
	require.NoError(t, repo.Create(ctx, &models.Channel{
		Number: 3, Name: "Three", Enabled: models.BoolPtr(false),
	}))

	enabled, err := repo.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	// Ordered by guide number.
	assert.Equal(t, 1, enabled[0].Number)
	assert.Equal(t, 2, enabled[1].Number)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestChannelRepo_DuplicateNumberRejected(t *testing.T) {
	db := setupChannelTestDB(t)
	repo := NewChannelRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Channel{Number: 7, Name: "A"}))
	err := repo.Create(ctx, &models.Channel{Number: 7, Name: "B"})
	assert.Error(t, err)
}

func TestStreamRepo_FirstEnabledForChannel(t *testing.T) {
	db := setupChannelTestDB(t)
	channels := NewChannelRepository(db)
	streams := NewStreamRepository(db)
	ctx := context.Background()

	ch := &models.Channel{Number: 1, Name: "One"}
	require.NoError(t, channels.Create(ctx, ch))

	first := &models.Stream{
		ChannelID: ch.ID, Name: "primary",
		URL: "https://example.com/a.m3u8", Kind: models.StreamKindHLS,
		Enabled: models.BoolPtr(false),
	}
	second := &models.Stream{
		ChannelID: ch.ID, Name: "backup",
		URL: "https://example.com/b.ts", Kind: models.StreamKindMPEGTS,
	}
	require.NoError(t, streams.Create(ctx, first))
	require.NoError(t, streams.Create(ctx, second))

	active, err := streams.FirstEnabledForChannel(ctx, ch.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	// The disabled first stream is skipped.
	assert.Equal(t, "backup", active.Name)

	all, err := streams.ListForChannel(ctx, ch.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "primary", all[0].Name)

	none, err := streams.FirstEnabledForChannel(ctx, models.NewULID())
	require.NoError(t, err)
	assert.Nil(t, none)
}
