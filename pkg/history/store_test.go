package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelios/maestro/pkg/plan"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(Config{
		Path:   filepath.Join(t.TempDir(), "history.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func testPlan() *plan.ExecutionPlan {
	return plan.New("transfer funds", []plan.PlanStep{
		{StepNumber: 1, Action: "wallet_balance", Payload: map[string]interface{}{"address": "0x1111111111111111111111111111111111111111"}},
		{StepNumber: 2, Action: "wallet_transfer", Payload: map[string]interface{}{"to": "0x2222222222222222222222222222222222222222", "amount": 5.0}},
	})
}

func testResult(p *plan.ExecutionPlan) *plan.ExecutionResult {
	return &plan.ExecutionResult{
		PlanID:         p.PlanID,
		Status:         plan.ExecSuccess,
		CompletedSteps: 2,
		TotalSteps:     2,
		StepResults: []plan.StepResult{
			{StepNumber: 1, Action: "wallet_balance", Status: plan.StepSuccess, Duration: 10 * time.Millisecond},
			{StepNumber: 2, Action: "wallet_transfer", Status: plan.StepSuccess, Duration: 25 * time.Millisecond},
		},
		Duration: 35 * time.Millisecond,
	}
}

func TestOpen(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.db")

		store, err := Open(Config{Path: path, Logger: zerolog.Nop()})
		require.NoError(t, err)
		defer store.Close()

		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("requires path", func(t *testing.T) {
		_, err := Open(Config{Logger: zerolog.Nop()})
		assert.ErrorContains(t, err, "path is required")
	})

	t.Run("reopens existing database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.db")

		store, err := Open(Config{Path: path, Logger: zerolog.Nop()})
		require.NoError(t, err)

		p := testPlan()
		_, err = store.Record(context.Background(), p, testResult(p), "user-1")
		require.NoError(t, err)
		require.NoError(t, store.Close())

		reopened, err := Open(Config{Path: path, Logger: zerolog.Nop()})
		require.NoError(t, err)
		defer reopened.Close()

		stats, err := reopened.Stats()
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.TotalRuns)
	})
}

func TestRecordAndGet(t *testing.T) {
	store := openTestStore(t)

	p := testPlan()
	result := testResult(p)

	runID, err := store.Record(context.Background(), p, result, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := store.Get(runID)
	require.NoError(t, err)

	assert.Equal(t, runID, run.RunID)
	assert.Equal(t, p.PlanID, run.PlanID)
	assert.Equal(t, "user-1", run.UserID)
	assert.Equal(t, "success", run.Status)
	assert.Equal(t, 2, run.CompletedSteps)
	assert.Equal(t, 2, run.TotalSteps)
	assert.Equal(t, int64(35), run.DurationMs)
	assert.NotZero(t, run.RecordedAtMs)

	require.Len(t, run.StepResults, 2)
	assert.Equal(t, "wallet_transfer", run.StepResults[1].Action)
	assert.Equal(t, plan.StepSuccess, run.StepResults[1].Status)

	require.NotNil(t, run.Plan)
	assert.Equal(t, p.PlanID, run.Plan.PlanID)
	assert.Len(t, run.Plan.Steps, 2)
}

func TestRecordValidation(t *testing.T) {
	store := openTestStore(t)

	t.Run("nil plan", func(t *testing.T) {
		_, err := store.Record(context.Background(), nil, testResult(testPlan()), "user-1")
		assert.ErrorContains(t, err, "plan is required")
	})

	t.Run("nil result", func(t *testing.T) {
		_, err := store.Record(context.Background(), testPlan(), nil, "user-1")
		assert.ErrorContains(t, err, "result is required")
	})
}

func TestGetNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get("no-such-run")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := testPlan()
	firstResult := testResult(first)
	_, err := store.Record(ctx, first, firstResult, "user-1")
	require.NoError(t, err)

	second := testPlan()
	secondResult := testResult(second)
	secondResult.Status = plan.ExecFailed
	secondResult.CompletedSteps = 1
	secondResult.Error = "step 2 failed: insufficient liquidity"
	_, err = store.Record(ctx, second, secondResult, "user-2")
	require.NoError(t, err)

	third := testPlan()
	_, err = store.Record(ctx, third, testResult(third), "user-1")
	require.NoError(t, err)

	t.Run("newest first", func(t *testing.T) {
		runs, err := store.List(Filter{})
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, third.PlanID, runs[0].PlanID)
		assert.Equal(t, second.PlanID, runs[1].PlanID)
		assert.Equal(t, first.PlanID, runs[2].PlanID)
	})

	t.Run("by plan", func(t *testing.T) {
		runs, err := store.List(Filter{PlanID: second.PlanID})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "failed", runs[0].Status)
		assert.Equal(t, "step 2 failed: insufficient liquidity", runs[0].Error)
	})

	t.Run("by user", func(t *testing.T) {
		runs, err := store.List(Filter{UserID: "user-1"})
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})

	t.Run("by status", func(t *testing.T) {
		runs, err := store.List(Filter{Status: "success"})
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})

	t.Run("limit", func(t *testing.T) {
		runs, err := store.List(Filter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, third.PlanID, runs[0].PlanID)
	})

	t.Run("no matches", func(t *testing.T) {
		runs, err := store.List(Filter{UserID: "user-9"})
		require.NoError(t, err)
		assert.Empty(t, runs)
	})
}

func TestStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	t.Run("empty archive", func(t *testing.T) {
		stats, err := store.Stats()
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.TotalRuns)
		assert.Empty(t, stats.ByStatus)
	})

	for i := 0; i < 3; i++ {
		p := testPlan()
		_, err := store.Record(ctx, p, testResult(p), "user-1")
		require.NoError(t, err)
	}
	failed := testPlan()
	failedResult := testResult(failed)
	failedResult.Status = plan.ExecFailed
	_, err := store.Record(ctx, failed, failedResult, "user-1")
	require.NoError(t, err)

	t.Run("counts by status", func(t *testing.T) {
		stats, err := store.Stats()
		require.NoError(t, err)
		assert.Equal(t, int64(4), stats.TotalRuns)
		assert.Equal(t, int64(3), stats.ByStatus["success"])
		assert.Equal(t, int64(1), stats.ByStatus["failed"])
	})
}
