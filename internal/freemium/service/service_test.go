package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/freemium/domain"
	"github.com/mi42hq/mi42/internal/freemium/service"
	userdomain "github.com/mi42hq/mi42/internal/user/domain"
	userrepo "github.com/mi42hq/mi42/internal/user/repository"
	"github.com/mi42hq/mi42/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	conn := dbtest.Open(t, &domain.FreemiumDomain{}, &userdomain.User{})
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return service.Provide(conn, userrepo.Provide(), clk), conn, clk
}

func TestCheckAvailabilityFreshDomain(t *testing.T) {
	svc, _, clk := newService(t)

	avail, err := svc.CheckAvailability(context.Background(), "anna@baustoff-mueller.de")
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Equal(t, "baustoff-mueller.de", avail.Domain)
	assert.Zero(t, avail.UsedSlots)
	assert.Equal(t, domain.DomainLimit, avail.Limit)
	assert.False(t, avail.IsFreemail)
	assert.Equal(t, clk.Now().AddDate(0, domain.WindowMonths, 0), avail.ResetDate)
}

func TestCheckAvailabilityFreemailAlwaysOpen(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.IncrementCount(ctx, "user@gmail.com"))
	}

	avail, err := svc.CheckAvailability(ctx, "user@gmail.com")
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.True(t, avail.IsFreemail)
	assert.Equal(t, domain.FreemailLimit, avail.Limit)
	assert.Zero(t, avail.UsedSlots, "freemail domains are never tracked")
}

func TestCheckAvailabilityRejectsUnparseableEmail(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.CheckAvailability(context.Background(), "not-an-email")
	require.ErrorIs(t, err, domain.ErrUnknownDomain)
}

func TestDomainFillsUpAtLimit(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.IncrementCount(ctx, "a@baustoff-mueller.de"))
	avail, err := svc.CheckAvailability(ctx, "b@baustoff-mueller.de")
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Equal(t, 1, avail.UsedSlots)

	require.NoError(t, svc.IncrementCount(ctx, "b@baustoff-mueller.de"))
	avail, err = svc.CheckAvailability(ctx, "c@baustoff-mueller.de")
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, domain.DomainLimit, avail.UsedSlots)
}

func TestWindowResetReopensDomain(t *testing.T) {
	svc, conn, clk := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.IncrementCount(ctx, "a@baustoff-mueller.de"))
	require.NoError(t, svc.IncrementCount(ctx, "b@baustoff-mueller.de"))

	clk.Advance(time.Duration(domain.WindowMonths) * 31 * 24 * time.Hour)
	require.NoError(t, svc.ResetIfExpired(ctx, "baustoff-mueller.de"))

	avail, err := svc.CheckAvailability(ctx, "c@baustoff-mueller.de")
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Zero(t, avail.UsedSlots)
	assert.Equal(t, clk.Now().AddDate(0, domain.WindowMonths, 0), avail.ResetDate)

	// The reset is persisted, not just computed for the answer.
	var count int
	require.NoError(t, conn.Raw(
		`SELECT user_count FROM freemium_domains WHERE domain = ?`,
		"baustoff-mueller.de",
	).Scan(&count).Error)
	assert.Zero(t, count)
}

func TestCheckAvailabilityNeverWrites(t *testing.T) {
	svc, conn, clk := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.IncrementCount(ctx, "a@baustoff-mueller.de"))
	require.NoError(t, svc.IncrementCount(ctx, "b@baustoff-mueller.de"))
	clk.Advance(time.Duration(domain.WindowMonths) * 31 * 24 * time.Hour)

	// Without an explicit reset the stored window stays untouched, even
	// when its reset date has already passed.
	_, err := svc.CheckAvailability(ctx, "c@baustoff-mueller.de")
	require.NoError(t, err)

	var count int
	require.NoError(t, conn.Raw(
		`SELECT user_count FROM freemium_domains WHERE domain = ?`,
		"baustoff-mueller.de",
	).Scan(&count).Error)
	assert.Equal(t, domain.DomainLimit, count)
}

func TestWindowResetIsIdempotent(t *testing.T) {
	svc, _, clk := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.IncrementCount(ctx, "a@baustoff-mueller.de"))
	clk.Advance(366 * 24 * time.Hour)

	require.NoError(t, svc.ResetIfExpired(ctx, "baustoff-mueller.de"))
	first, err := svc.CheckAvailability(ctx, "x@baustoff-mueller.de")
	require.NoError(t, err)

	require.NoError(t, svc.ResetIfExpired(ctx, "baustoff-mueller.de"))
	second, err := svc.CheckAvailability(ctx, "x@baustoff-mueller.de")
	require.NoError(t, err)

	assert.Equal(t, first.ResetDate, second.ResetDate)
	assert.Zero(t, second.UsedSlots)
}

func TestResetBeforeWindowEndIsNoOp(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.IncrementCount(ctx, "a@baustoff-mueller.de"))
	require.NoError(t, svc.ResetIfExpired(ctx, "baustoff-mueller.de"))

	avail, err := svc.CheckAvailability(ctx, "b@baustoff-mueller.de")
	require.NoError(t, err)
	assert.Equal(t, 1, avail.UsedSlots)
}

func TestIncrementAfterResetStartsNewWindow(t *testing.T) {
	svc, _, clk := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.IncrementCount(ctx, "a@baustoff-mueller.de"))
	require.NoError(t, svc.IncrementCount(ctx, "b@baustoff-mueller.de"))
	clk.Advance(366 * 24 * time.Hour)
	require.NoError(t, svc.ResetIfExpired(ctx, "baustoff-mueller.de"))

	avail, err := svc.CheckAvailability(ctx, "c@baustoff-mueller.de")
	require.NoError(t, err)
	require.True(t, avail.Available)

	require.NoError(t, svc.IncrementCount(ctx, "c@baustoff-mueller.de"))
	avail, err = svc.CheckAvailability(ctx, "d@baustoff-mueller.de")
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Equal(t, 1, avail.UsedSlots)
}

func TestFreemiumUsersListsSlotOccupants(t *testing.T) {
	svc, conn, clk := newService(t)
	ctx := context.Background()
	repo := userrepo.Provide()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	first := &userdomain.User{
		ID:          node.Generate(),
		Email:       "anna@baustoff-mueller.de",
		Name:        "Anna",
		EmailDomain: "baustoff-mueller.de",
		Role:        userdomain.RoleExternal,
		IsFreemium:  true,
		IsActive:    true,
		CreatedAt:   clk.Now(),
	}
	require.NoError(t, repo.Insert(ctx, conn, first))
	second := &userdomain.User{
		ID:          node.Generate(),
		Email:       "bernd@baustoff-mueller.de",
		Name:        "Bernd",
		EmailDomain: "baustoff-mueller.de",
		Role:        userdomain.RoleExternal,
		IsFreemium:  true,
		IsActive:    true,
		CreatedAt:   clk.Now().Add(time.Minute),
	}
	require.NoError(t, repo.Insert(ctx, conn, second))

	users, err := svc.FreemiumUsers(ctx, "baustoff-mueller.de")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "anna@baustoff-mueller.de", users[0].Email)
	assert.Equal(t, "bernd@baustoff-mueller.de", users[1].Email)
}
