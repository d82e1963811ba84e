package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/systemlog/domain"
	"github.com/mi42hq/mi42/internal/systemlog/service"
	"github.com/mi42hq/mi42/pkg/db/dbtest"
	"github.com/mi42hq/mi42/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	conn := dbtest.Open(t, &domain.Entry{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return service.Provide(conn, node, clk), clk
}

func TestWriteAndListNewestFirst(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()
	userID := snowflake.ID(7)

	svc.Write(ctx, domain.LevelInfo, domain.TypeAuth, "login", &userID, nil)
	clk.Advance(time.Second)
	svc.Write(ctx, domain.LevelError, domain.TypeLLMUsage, "timeout", &userID, map[string]any{"agent": "market_analyst"})
	clk.Advance(time.Second)
	svc.Write(ctx, domain.LevelInfo, domain.TypeSystem, "startup", nil, nil)

	entries, err := svc.List(ctx, domain.Query{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "startup", entries[0].Message)
	assert.Equal(t, "login", entries[2].Message)
	assert.JSONEq(t, `{"agent":"market_analyst"}`, string(entries[1].Details))
}

func TestListFilters(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	alice := snowflake.ID(1)
	bob := snowflake.ID(2)

	svc.Write(ctx, domain.LevelInfo, domain.TypeAPICall, "a", &alice, nil)
	svc.Write(ctx, domain.LevelError, domain.TypeError, "b", &bob, nil)
	svc.Write(ctx, domain.LevelError, domain.TypeAPICall, "c", &alice, nil)

	byType, err := svc.List(ctx, domain.Query{Type: domain.TypeAPICall})
	require.NoError(t, err)
	assert.Len(t, byType, 2)

	byLevel, err := svc.List(ctx, domain.Query{Level: domain.LevelError})
	require.NoError(t, err)
	assert.Len(t, byLevel, 2)

	byUser, err := svc.List(ctx, domain.Query{UserID: bob})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, "b", byUser[0].Message)

	combined, err := svc.List(ctx, domain.Query{Level: domain.LevelError, Type: domain.TypeAPICall, UserID: alice})
	require.NoError(t, err)
	require.Len(t, combined, 1)
	assert.Equal(t, "c", combined[0].Message)
}

func TestListPagination(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		svc.Write(ctx, domain.LevelInfo, domain.TypeSystem, "entry", nil, nil)
		clk.Advance(time.Second)
	}

	page, err := svc.List(ctx, domain.Query{Page: pagination.Pagination{Limit: 2, Offset: 4}})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}
