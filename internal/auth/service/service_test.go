package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/auth/domain"
	"github.com/mi42hq/mi42/internal/auth/service"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/config"
	userdomain "github.com/mi42hq/mi42/internal/user/domain"
	userrepo "github.com/mi42hq/mi42/internal/user/repository"
	"github.com/mi42hq/mi42/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fixture struct {
	svc   domain.Service
	conn  *gorm.DB
	clk   *clock.FakeClock
	users userdomain.Repository
	node  *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t, &domain.Session{}, &userdomain.User{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	users := userrepo.Provide()
	cfg := config.Config{SessionTTL: time.Hour}
	return &fixture{
		svc:   service.Provide(conn, node, clk, users, cfg),
		conn:  conn,
		clk:   clk,
		users: users,
		node:  node,
	}
}

func (f *fixture) insertUser(t *testing.T, email, password string, active bool) *userdomain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &userdomain.User{
		ID:           f.node.Generate(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         "Anna",
		EmailDomain:  "example.com",
		Role:         userdomain.RoleExternal,
		IsFreemium:   true,
		IsActive:     active,
		CreatedAt:    f.clk.Now(),
	}
	require.NoError(t, f.users.Insert(context.Background(), f.conn, u))
	return u
}

func TestLoginAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insertUser(t, "anna@example.com", "sehr-geheim-123", true)

	token, user, err := f.svc.Login(ctx, "anna@example.com", "sehr-geheim-123")
	require.NoError(t, err)
	assert.Len(t, token, 64)
	require.NotNil(t, user.LastSignedIn)
	assert.Equal(t, f.clk.Now(), user.LastSignedIn.UTC())

	got, err := f.svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// Only the digest lands in the database.
	var stored int64
	require.NoError(t, f.conn.Raw(
		`SELECT COUNT(1) FROM sessions WHERE token_hash = ?`, token,
	).Scan(&stored).Error)
	assert.Zero(t, stored)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insertUser(t, "anna@example.com", "sehr-geheim-123", true)

	_, _, err := f.svc.Login(ctx, "anna@example.com", "falsch")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, _, err = f.svc.Login(ctx, "nobody@example.com", "sehr-geheim-123")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	f := newFixture(t)
	f.insertUser(t, "anna@example.com", "sehr-geheim-123", false)

	_, _, err := f.svc.Login(context.Background(), "anna@example.com", "sehr-geheim-123")
	require.ErrorIs(t, err, domain.ErrAccountInactive)
}

func TestAuthenticateRejectsExpiredSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insertUser(t, "anna@example.com", "sehr-geheim-123", true)

	token, _, err := f.svc.Login(ctx, "anna@example.com", "sehr-geheim-123")
	require.NoError(t, err)

	f.clk.Advance(2 * time.Hour)

	_, err = f.svc.Authenticate(ctx, token)
	require.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insertUser(t, "anna@example.com", "sehr-geheim-123", true)

	token, _, err := f.svc.Login(ctx, "anna@example.com", "sehr-geheim-123")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, token))
	_, err = f.svc.Authenticate(ctx, token)
	require.ErrorIs(t, err, domain.ErrSessionRevoked)

	// Idempotent.
	require.NoError(t, f.svc.Logout(ctx, token))
	require.NoError(t, f.svc.Logout(ctx, "unknown-token"))
}

func TestAuthenticateRejectsGarbageTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Authenticate(ctx, "")
	require.ErrorIs(t, err, domain.ErrInvalidSession)

	_, err = f.svc.Authenticate(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrInvalidSession)
}
