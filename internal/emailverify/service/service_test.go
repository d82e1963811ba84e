package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/config"
	"github.com/mi42hq/mi42/internal/emailverify/domain"
	"github.com/mi42hq/mi42/internal/emailverify/service"
	userdomain "github.com/mi42hq/mi42/internal/user/domain"
	userrepo "github.com/mi42hq/mi42/internal/user/repository"
	"github.com/mi42hq/mi42/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type capturingMail struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

func (m *capturingMail) Send(_ context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return assert.AnError
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

type fixture struct {
	svc   domain.Service
	conn  *gorm.DB
	clk   *clock.FakeClock
	mail  *capturingMail
	users userdomain.Repository
	node  *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t, &domain.VerificationToken{}, &userdomain.User{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	mail := &capturingMail{}
	users := userrepo.Provide()
	cfg := config.Config{BaseURL: "https://app.mi42.de"}
	return &fixture{
		svc:   service.Provide(conn, node, clk, users, mail, cfg),
		conn:  conn,
		clk:   clk,
		mail:  mail,
		users: users,
		node:  node,
	}
}

func (f *fixture) insertUser(t *testing.T, email string, verified bool) *userdomain.User {
	t.Helper()
	u := &userdomain.User{
		ID:            f.node.Generate(),
		Email:         email,
		Name:          "Anna",
		EmailDomain:   "example.com",
		Role:          userdomain.RoleExternal,
		IsFreemium:    true,
		IsActive:      true,
		EmailVerified: verified,
		CreatedAt:     f.clk.Now(),
	}
	require.NoError(t, f.users.Insert(context.Background(), f.conn, u))
	return u
}

func (f *fixture) storedToken(t *testing.T, userID snowflake.ID) string {
	t.Helper()
	var token string
	require.NoError(t, f.conn.Raw(
		`SELECT token FROM email_verification_tokens
		 WHERE user_id = ? AND used_at IS NULL ORDER BY created_at DESC LIMIT 1`,
		userID,
	).Scan(&token).Error)
	return token
}

func TestIssueSendsMailWithTokenLink(t *testing.T) {
	f := newFixture(t)
	user := f.insertUser(t, "anna@example.com", false)

	require.NoError(t, f.svc.Issue(context.Background(), user.ID, user.Email, user.Name))

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "anna@example.com", f.mail.sent[0].To)

	token := f.storedToken(t, user.ID)
	assert.Len(t, token, 64)
	assert.Contains(t, f.mail.sent[0].Body, token)
	assert.Contains(t, f.mail.sent[0].Body, "https://app.mi42.de/api/auth/verify-email?token=")
}

func TestIssueSurvivesMailFailure(t *testing.T) {
	f := newFixture(t)
	f.mail.fail = true
	user := f.insertUser(t, "anna@example.com", false)

	require.NoError(t, f.svc.Issue(context.Background(), user.ID, user.Email, user.Name))
	assert.NotEmpty(t, f.storedToken(t, user.ID), "token must exist even when delivery fails")
}

func TestVerifyMarksUserAndConsumesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.insertUser(t, "anna@example.com", false)
	require.NoError(t, f.svc.Issue(ctx, user.ID, user.Email, user.Name))
	token := f.storedToken(t, user.ID)

	gotID, err := f.svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, gotID)

	stored, err := f.users.FindByID(ctx, f.conn, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)

	_, err = f.svc.Verify(ctx, token)
	require.ErrorIs(t, err, domain.ErrTokenUsed)
}

func TestVerifyRejectsUnknownAndMalformedTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Verify(ctx, "short")
	require.ErrorIs(t, err, domain.ErrTokenInvalid)

	_, err = f.svc.Verify(ctx, "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.insertUser(t, "anna@example.com", false)
	require.NoError(t, f.svc.Issue(ctx, user.ID, user.Email, user.Name))
	token := f.storedToken(t, user.ID)

	f.clk.Advance(domain.TokenTTL + time.Minute)

	_, err := f.svc.Verify(ctx, token)
	require.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestReissueInvalidatesOlderToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.insertUser(t, "anna@example.com", false)

	require.NoError(t, f.svc.Issue(ctx, user.ID, user.Email, user.Name))
	first := f.storedToken(t, user.ID)
	f.clk.Advance(time.Minute)
	require.NoError(t, f.svc.Issue(ctx, user.ID, user.Email, user.Name))
	second := f.storedToken(t, user.ID)
	require.NotEqual(t, first, second)

	_, err := f.svc.Verify(ctx, first)
	require.ErrorIs(t, err, domain.ErrTokenUsed)

	_, err = f.svc.Verify(ctx, second)
	require.NoError(t, err)
}

func TestResendDoesNotLeakAccountExistence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Resend(ctx, "nobody@example.com"))
	assert.Empty(t, f.mail.sent)

	f.insertUser(t, "done@example.com", true)
	require.NoError(t, f.svc.Resend(ctx, "done@example.com"))
	assert.Empty(t, f.mail.sent)

	f.insertUser(t, "pending@example.com", false)
	require.NoError(t, f.svc.Resend(ctx, "pending@example.com"))
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "pending@example.com", f.mail.sent[0].To)
}
