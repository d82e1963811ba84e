package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/mi42hq/mi42/internal/agent/domain"
	agentservice "github.com/mi42hq/mi42/internal/agent/service"
	briefingdomain "github.com/mi42hq/mi42/internal/briefing/domain"
	briefingservice "github.com/mi42hq/mi42/internal/briefing/service"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/config"
	creditdomain "github.com/mi42hq/mi42/internal/credit/domain"
	creditservice "github.com/mi42hq/mi42/internal/credit/service"
	"github.com/mi42hq/mi42/internal/ratelimit"
	systemlogdomain "github.com/mi42hq/mi42/internal/systemlog/domain"
	systemlogservice "github.com/mi42hq/mi42/internal/systemlog/service"
	"github.com/mi42hq/mi42/pkg/db/dbtest"
	"github.com/mi42hq/mi42/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	response string
	err      error
	calls    int
}

func (s *stubLLM) Generate(_ context.Context, _, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

type fixture struct {
	svc       agentdomain.Service
	credits   creditdomain.Service
	briefings briefingdomain.Service
	llm       *stubLLM
	userID    snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t,
		&agentdomain.Task{},
		&briefingdomain.Briefing{},
		&briefingdomain.AutomatedBriefing{},
		&creditdomain.CreditAccount{},
		&creditdomain.CreditTransaction{},
		&systemlogdomain.Entry{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	catalog, err := config.NewAgentCatalogHolder()
	require.NoError(t, err)

	provider := &stubLLM{response: "Analyse: Der Markt ist stabil."}
	audit := systemlogservice.Provide(conn, node, clk)
	credits := creditservice.Provide(conn, node, clk, nil)
	briefings := briefingservice.Provide(conn, node, clk, provider, audit)
	svc := agentservice.Provide(conn, node, clk, catalog, credits, briefings, provider,
		ratelimit.NewLimiter(nil, nil), audit, nil)

	userID := snowflake.ID(7)
	require.NoError(t, credits.EnsureAccount(context.Background(), userID))

	return &fixture{svc: svc, credits: credits, briefings: briefings, llm: provider, userID: userID}
}

func TestListAgentsFromCatalog(t *testing.T) {
	f := newFixture(t)
	agents := f.svc.ListAgents(context.Background())
	require.Len(t, agents, 8)

	byType := map[string]agentdomain.Info{}
	for _, a := range agents {
		byType[a.Type] = a
	}
	assert.Equal(t, int64(200), byType["market_analyst"].EstimatedCredits)
	assert.Equal(t, int64(2500), byType["competitor_intelligence"].EstimatedCredits)
}

func TestExecuteHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Execute(ctx, f.userID, "market_analyst", "Wie entwickelt sich der Dämmstoffmarkt?")
	require.NoError(t, err)
	assert.Equal(t, agentdomain.StatusCompleted, task.Status)
	assert.Equal(t, int64(200), task.CreditsCharged)
	require.NotNil(t, task.BriefingID)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, 1, f.llm.calls)

	balance, err := f.credits.Balance(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, int64(creditdomain.StartingCredits-200), balance)

	briefing, err := f.briefings.GetForUser(ctx, f.userID, *task.BriefingID)
	require.NoError(t, err)
	assert.Equal(t, "market_analyst", briefing.AgentType)
	assert.Equal(t, "Analyse: Der Markt ist stabil.", briefing.Content)
	assert.Contains(t, briefing.Title, "Markt-Analyst")

	stored, err := f.svc.GetTask(ctx, f.userID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, agentdomain.StatusCompleted, stored.Status)
}

func TestExecuteUnknownAgent(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Execute(context.Background(), f.userID, "fortune_teller", "?")
	require.ErrorIs(t, err, agentdomain.ErrUnknownAgent)
	assert.Zero(t, f.llm.calls)
}

func TestExecuteEmptyPrompt(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Execute(context.Background(), f.userID, "market_analyst", "   ")
	require.ErrorIs(t, err, agentdomain.ErrEmptyPrompt)
}

func TestExecuteInsufficientCredits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// strategy_advisor costs 5000, exactly the starting grant; drain a bit first.
	require.NoError(t, f.credits.Deduct(ctx, f.userID, 1, "drain", ""))

	task, err := f.svc.Execute(ctx, f.userID, "strategy_advisor", "Expansionsstrategie?")
	require.ErrorIs(t, err, creditdomain.ErrInsufficientCredits)
	require.NotNil(t, task)
	assert.Equal(t, agentdomain.StatusFailed, task.Status)
	assert.Zero(t, f.llm.calls, "no model call without successful charge")

	balance, err := f.credits.Balance(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, int64(creditdomain.StartingCredits-1), balance)
}

func TestExecuteModelFailureRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.llm.err = errors.New("model unavailable")

	task, err := f.svc.Execute(ctx, f.userID, "trend_scout", "Neue Trends?")
	require.Error(t, err)
	require.NotNil(t, task)
	assert.Equal(t, agentdomain.StatusFailed, task.Status)
	assert.Contains(t, task.Error, "model unavailable")
	assert.Zero(t, task.CreditsCharged, "charge was refunded")

	balance, berr := f.credits.Balance(ctx, f.userID)
	require.NoError(t, berr)
	assert.Equal(t, int64(creditdomain.StartingCredits), balance)

	history, herr := f.credits.History(ctx, f.userID, pagination.Pagination{})
	require.NoError(t, herr)
	require.Len(t, history, 3, "bonus, usage and refund entries")
	assert.Equal(t, creditdomain.TransactionRefund, history[0].Type)
}

func TestTasksAreOwnerScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Execute(ctx, f.userID, "market_analyst", "Frage")
	require.NoError(t, err)

	_, err = f.svc.GetTask(ctx, snowflake.ID(999), task.ID)
	require.ErrorIs(t, err, agentdomain.ErrTaskNotFound)

	tasks, err := f.svc.ListTasks(ctx, f.userID, pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	other, err := f.svc.ListTasks(ctx, snowflake.ID(999), pagination.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, other)
}
