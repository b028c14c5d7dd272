package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStore_Create(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	t.Run("successfully create job", func(t *testing.T) {
		j := &Job{Type: JobTypeWorkflowCapture, Config: captureConfig("linear")}
		require.NoError(t, store.Create(ctx, j))
		assert.NotEqual(t, uuid.Nil, j.ID)
		assert.Equal(t, StatusCreated, j.Status)
		assert.Equal(t, "linear", j.App)
	})

	t.Run("invalid job type returns error", func(t *testing.T) {
		j := &Job{Type: JobType("invalid"), Config: captureConfig("linear")}
		assert.ErrorIs(t, store.Create(ctx, j), ErrInvalidJobType)
	})

	t.Run("missing config returns error", func(t *testing.T) {
		j := &Job{Type: JobTypeWorkflowCapture}
		assert.ErrorIs(t, store.Create(ctx, j), ErrInvalidConfig)
	})
}

func TestSQLStore_GetByID(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	t.Run("retrieve existing job", func(t *testing.T) {
		j := &Job{Type: JobTypeWorkflowCapture, Config: captureConfig("asana")}
		require.NoError(t, store.Create(ctx, j))

		retrieved, err := store.GetByID(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, j.ID, retrieved.ID)
		assert.Equal(t, StatusCreated, retrieved.Status)
		assert.Equal(t, "https://linear.app", retrieved.Config.String(ConfigStartURL))
	})

	t.Run("non-existent job returns error", func(t *testing.T) {
		_, err := store.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestSQLStore_Update(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	j := &Job{Type: JobTypeWorkflowCapture, Config: captureConfig("linear")}
	require.NoError(t, store.Create(ctx, j))

	require.NoError(t, store.Update(ctx, j.ID,
		SetStatus(StatusFailed),
		MergeResult(JSONMap{ResultError: "preflight failed"}),
	))
	require.NoError(t, store.Update(ctx, j.ID, MergeResult(JSONMap{ResultTotalSteps: 0})))

	got, err := store.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "preflight failed", got.Result.String(ResultError))
	assert.Equal(t, float64(0), got.Result[ResultTotalSteps])

	assert.ErrorIs(t, store.Update(ctx, j.ID, SetStatus("bogus")), ErrInvalidStatus)
	assert.ErrorIs(t, store.Update(ctx, uuid.New()), ErrJobNotFound)
}

func TestSQLStore_ListAndCount(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	for _, app := range []string{"linear", "linear", "asana"} {
		require.NoError(t, store.Create(ctx, &Job{Type: JobTypeWorkflowCapture, Config: captureConfig(app)}))
	}

	all, err := store.List(ctx, ListFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	linear, err := store.List(ctx, ListFilter{App: "linear"}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, linear, 2)

	page, err := store.List(ctx, ListFilter{}, 1, 1)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	n, err := store.Count(ctx, ListFilter{Status: StatusCreated})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = store.Count(ctx, ListFilter{Status: StatusRunning})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLStore_StartAndComplete(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	j := &Job{Type: JobTypeWorkflowCapture, Config: captureConfig("linear")}
	require.NoError(t, store.Create(ctx, j))

	assert.ErrorIs(t, store.Complete(ctx, j.ID, StatusSuccess, nil), ErrJobNotRunning)
	require.NoError(t, store.Start(ctx, j.ID))
	assert.ErrorIs(t, store.Start(ctx, j.ID), ErrJobAlreadyStarted)

	require.NoError(t, store.Complete(ctx, j.ID, StatusSuccess, JSONMap{
		ResultWorkflowPath: "linear_create_issue_20250101T000000Z/workflow.json",
		ResultSuccess:      true,
	}))

	got, err := store.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, got.Status)
	assert.Equal(t, true, got.Result[ResultSuccess])
	assert.NotNil(t, got.Duration)

	assert.ErrorIs(t, store.Start(ctx, uuid.New()), ErrJobNotFound)
}

func TestSQLStore_ClaimNextCreated(t *testing.T) {
	t.Run("empty queue", func(t *testing.T) {
		_, store := setupTestStore(t)
		j, err := store.ClaimNextCreated(context.Background())
		require.NoError(t, err)
		assert.Nil(t, j)
	})

	t.Run("claims oldest first", func(t *testing.T) {
		_, store := setupTestStore(t)
		ctx := context.Background()

		newer := &Job{Type: JobTypeWorkflowCapture, Config: captureConfig("asana"), CreatedAt: time.Now().Add(-time.Minute)}
		older := &Job{Type: JobTypeWorkflowCapture, Config: captureConfig("linear"), CreatedAt: time.Now().Add(-time.Hour)}
		require.NoError(t, store.Create(ctx, newer))
		require.NoError(t, store.Create(ctx, older))

		claimed, err := store.ClaimNextCreated(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		assert.Equal(t, older.ID, claimed.ID)
		assert.Equal(t, StatusRunning, claimed.Status)
		assert.NotNil(t, claimed.StartTime)

		stored, err := store.GetByID(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, stored.Status)
	})

	t.Run("concurrent claimers never share a job", func(t *testing.T) {
		_, store := setupTestStore(t)
		ctx := context.Background()

		const jobs = 6
		for i := 0; i < jobs; i++ {
			require.NoError(t, store.Create(ctx, &Job{Type: JobTypeWorkflowCapture, Config: captureConfig("linear")}))
		}

		var mu sync.Mutex
		claimed := map[uuid.UUID]int{}
		var wg sync.WaitGroup
		for w := 0; w < 3; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					j, err := store.ClaimNextCreated(ctx)
					if !assert.NoError(t, err) || j == nil {
						return
					}
					mu.Lock()
					claimed[j.ID]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, claimed, jobs)
		for id, n := range claimed {
			assert.Equal(t, 1, n, "job %s claimed %d times", id, n)
		}
	})
}
