package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/config"
	creditdomain "github.com/mi42hq/mi42/internal/credit/domain"
	creditservice "github.com/mi42hq/mi42/internal/credit/service"
	emailverifydomain "github.com/mi42hq/mi42/internal/emailverify/domain"
	emailverifyservice "github.com/mi42hq/mi42/internal/emailverify/service"
	freemiumdomain "github.com/mi42hq/mi42/internal/freemium/domain"
	freemiumservice "github.com/mi42hq/mi42/internal/freemium/service"
	"github.com/mi42hq/mi42/internal/registration/domain"
	"github.com/mi42hq/mi42/internal/registration/service"
	userdomain "github.com/mi42hq/mi42/internal/user/domain"
	userrepo "github.com/mi42hq/mi42/internal/user/repository"
	"github.com/mi42hq/mi42/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type nullMail struct{ count int }

func (m *nullMail) Send(context.Context, string, string, string) error {
	m.count++
	return nil
}

type fixture struct {
	svc     domain.Service
	credits creditdomain.Service
	conn    *gorm.DB
	clk     *clock.FakeClock
	mail    *nullMail
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t,
		&userdomain.User{},
		&creditdomain.CreditAccount{},
		&creditdomain.CreditTransaction{},
		&freemiumdomain.FreemiumDomain{},
		&emailverifydomain.VerificationToken{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	users := userrepo.Provide()
	mail := &nullMail{}
	credits := creditservice.Provide(conn, node, clk, nil)
	freemium := freemiumservice.Provide(conn, users, clk)
	verify := emailverifyservice.Provide(conn, node, clk, users, mail, config.Config{BaseURL: "http://localhost:8080"})
	svc := service.Provide(conn, node, clk, users, credits, freemium, verify, nil)
	return &fixture{svc: svc, credits: credits, conn: conn, clk: clk, mail: mail}
}

func validInput(email string) domain.Input {
	return domain.Input{
		Email:         email,
		Password:      "sehr-geheim-123",
		Name:          "Anna Muster",
		CompanyName:   "Baustoff Müller GmbH",
		AcceptedTerms: true,
	}
}

func TestRegisterHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, validInput("Anna@Baustoff-Mueller.DE"))
	require.NoError(t, err)
	assert.Equal(t, "anna@baustoff-mueller.de", user.Email)
	assert.Equal(t, "baustoff-mueller.de", user.EmailDomain)
	assert.Equal(t, userdomain.RoleExternal, user.Role)
	assert.True(t, user.IsFreemium)
	assert.False(t, user.EmailVerified)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("sehr-geheim-123")))

	balance, err := f.credits.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(creditdomain.StartingCredits), balance)

	assert.Equal(t, 1, f.mail.count, "verification mail goes out on registration")

	var slots int
	require.NoError(t, f.conn.Raw(
		`SELECT user_count FROM freemium_domains WHERE domain = ?`,
		"baustoff-mueller.de",
	).Scan(&slots).Error)
	assert.Equal(t, 1, slots)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput("anna@example.com")
	in.Password = "short"
	_, err := f.svc.Register(ctx, in)
	require.ErrorIs(t, err, domain.ErrWeakPassword)

	in = validInput("")
	_, err = f.svc.Register(ctx, in)
	require.ErrorIs(t, err, domain.ErrMissingRequired)

	in = validInput("not-an-email")
	_, err = f.svc.Register(ctx, in)
	require.ErrorIs(t, err, domain.ErrInvalidEmail)

	in = validInput("two@@example.com")
	_, err = f.svc.Register(ctx, in)
	require.ErrorIs(t, err, domain.ErrInvalidEmail)

	in = validInput("anna@example.com")
	in.AcceptedTerms = false
	_, err = f.svc.Register(ctx, in)
	require.ErrorIs(t, err, domain.ErrMissingConsent)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, validInput("anna@example.com"))
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, validInput("ANNA@example.com"))
	require.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestRegisterDomainExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, validInput("anna@baustoff-mueller.de"))
	require.NoError(t, err)
	f.clk.Advance(time.Minute)
	_, err = f.svc.Register(ctx, validInput("bernd@baustoff-mueller.de"))
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, validInput("clara@baustoff-mueller.de"))
	var exhausted *domain.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "baustoff-mueller.de", exhausted.Domain)
	require.Len(t, exhausted.Users, 2)
	assert.Equal(t, "anna@baustoff-mueller.de", exhausted.Users[0].Email)
	assert.Equal(t, f.clk.Now().AddDate(0, freemiumdomain.WindowMonths, 0).Year(), exhausted.ResetDate.Year())
}

func TestRegisterFreemailNeverExhausts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, email := range []string{"a@gmail.com", "b@gmail.com", "c@gmail.com"} {
		_, err := f.svc.Register(ctx, validInput(email))
		require.NoError(t, err)
	}
}

func TestRegisterFreemailUserIsNotFreemium(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, validInput("anna@gmail.com"))
	require.NoError(t, err)
	assert.False(t, user.IsFreemium, "freemail signups never occupy a freemium slot")

	// The flag drives the slot-occupant query, so the stored row matters.
	var stored bool
	require.NoError(t, f.conn.Raw(
		`SELECT is_freemium FROM users WHERE id = ?`, user.ID,
	).Scan(&stored).Error)
	assert.False(t, stored)

	var tracked int
	require.NoError(t, f.conn.Raw(
		`SELECT COUNT(1) FROM freemium_domains WHERE domain = ?`, "gmail.com",
	).Scan(&tracked).Error)
	assert.Zero(t, tracked, "freemail domains are never tracked")
}

func TestRegisterAfterWindowReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, validInput("anna@baustoff-mueller.de"))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, validInput("bernd@baustoff-mueller.de"))
	require.NoError(t, err)

	f.clk.Advance(366 * 24 * time.Hour)

	_, err = f.svc.Register(ctx, validInput("clara@baustoff-mueller.de"))
	require.NoError(t, err)
}
