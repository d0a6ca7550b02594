package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edgebank/assist/internal/clock"
	"github.com/edgebank/assist/internal/convmem/domain"
	convmemrepo "github.com/edgebank/assist/internal/convmem/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newMemory(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Turn{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		Repo:  convmemrepo.Provide(),
		GenID: node,
		Clock: fake,
	})
	return svc, fake
}

func TestAppendAndRecentChronological(t *testing.T) {
	svc, fake := newMemory(t)
	ctx := context.Background()

	for _, msg := range []string{"hello", "annual fee of world card?", "usd 11.50 per year"} {
		role := domain.RoleUser
		if msg == "usd 11.50 per year" {
			role = domain.RoleAssistant
		}
		_, err := svc.Append(ctx, "sess-1", role, msg)
		require.NoError(t, err)
		fake.Advance(time.Second)
	}

	turns, err := svc.Recent(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "hello", turns[0].Content)
	assert.Equal(t, "usd 11.50 per year", turns[2].Content)
	assert.True(t, turns[0].CreatedAt.Before(turns[2].CreatedAt))
}

func TestRecentLimitKeepsNewest(t *testing.T) {
	svc, fake := newMemory(t)
	ctx := context.Background()

	for _, msg := range []string{"one", "two", "three", "four"} {
		_, err := svc.Append(ctx, "sess-1", domain.RoleUser, msg)
		require.NoError(t, err)
		fake.Advance(time.Second)
	}

	turns, err := svc.Recent(ctx, "sess-1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "three", turns[0].Content)
	assert.Equal(t, "four", turns[1].Content)
}

func TestRecentZeroIsEmpty(t *testing.T) {
	svc, _ := newMemory(t)
	turns, err := svc.Recent(context.Background(), "sess-1", 0)
	require.NoError(t, err)
	assert.Nil(t, turns)
}

func TestUserTurnCountIgnoresAssistant(t *testing.T) {
	svc, fake := newMemory(t)
	ctx := context.Background()

	_, err := svc.Append(ctx, "sess-1", domain.RoleUser, "hi")
	require.NoError(t, err)
	fake.Advance(time.Second)
	_, err = svc.Append(ctx, "sess-1", domain.RoleAssistant, "hello there")
	require.NoError(t, err)
	fake.Advance(time.Second)
	_, err = svc.Append(ctx, "sess-2", domain.RoleUser, "other session")
	require.NoError(t, err)

	count, err := svc.UserTurnCount(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestClearRemovesOnlyThatSession(t *testing.T) {
	svc, _ := newMemory(t)
	ctx := context.Background()

	_, err := svc.Append(ctx, "sess-1", domain.RoleUser, "hi")
	require.NoError(t, err)
	_, err = svc.Append(ctx, "sess-2", domain.RoleUser, "keep me")
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, "sess-1"))

	turns, err := svc.Recent(ctx, "sess-1", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)

	turns, err = svc.Recent(ctx, "sess-2", 10)
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestAppendRequiresSession(t *testing.T) {
	svc, _ := newMemory(t)
	_, err := svc.Append(context.Background(), "  ", domain.RoleUser, "hi")
	require.Error(t, err)
}
