package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/KodaTao/PromptChain/pkg/chain"
	"github.com/KodaTao/PromptChain/pkg/observability"
	"github.com/KodaTao/PromptChain/pkg/specs"
)

// setupTestRepo 创建使用内存数据库的 Repository
func setupTestRepo(t *testing.T) *Repository {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo, err := NewRepository(db)
	if err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return repo
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := setupTestRepo(t)

	run := &Run{
		RunID:    "run-1",
		Approach: "raw",
		Model:    "m",
		Input:    "laptop",
		Output:   `{"cpu":"A"}`,
		Status:   StatusOK,
	}
	require.NoError(t, repo.Create(run))
	assert.NotZero(t, run.ID)

	got, err := repo.GetByRunID("run-1")
	require.NoError(t, err)
	assert.Equal(t, "raw", got.Approach)
	assert.Equal(t, `{"cpu":"A"}`, got.Output)
	assert.True(t, got.Succeeded())
}

func TestRepository_GetByRunID_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.GetByRunID("missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRepository_DuplicateRunID(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Create(&Run{RunID: "dup", Approach: "raw", Input: "x", Status: StatusOK}))
	assert.Error(t, repo.Create(&Run{RunID: "dup", Approach: "raw", Input: "y", Status: StatusOK}))
}

func TestRepository_ListAndCount(t *testing.T) {
	repo := setupTestRepo(t)

	for i := 0; i < 5; i++ {
		status := StatusOK
		if i%2 == 1 {
			status = StatusFailed
		}
		require.NoError(t, repo.Create(&Run{
			RunID:    fmt.Sprintf("run-%d", i),
			Approach: "raw",
			Input:    "x",
			Status:   status,
		}))
	}

	all, err := repo.List(nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	// 按时间倒序
	assert.Equal(t, "run-4", all[0].RunID)

	page, err := repo.List(nil, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "run-3", page[0].RunID)

	failed := StatusFailed
	failedRuns, err := repo.List(&failed, 10, 0)
	require.NoError(t, err)
	assert.Len(t, failedRuns, 2)

	total, err := repo.Count(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	failedCount, err := repo.Count(&failed)
	require.NoError(t, err)
	assert.Equal(t, int64(2), failedCount)
}

func TestRepository_DeleteByRunID(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Create(&Run{RunID: "run-1", Approach: "raw", Input: "x", Status: StatusOK}))
	require.NoError(t, repo.DeleteByRunID("run-1"))

	_, err := repo.GetByRunID("run-1")
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.True(t, errors.Is(repo.DeleteByRunID("run-1"), ErrRunNotFound))
}

func TestRecorder_Record(t *testing.T) {
	repo := setupTestRepo(t)
	rec := NewRecorder(repo)

	ctx := observability.WithRunID(context.Background(), "ok-run")
	run := rec.Record(ctx, Entry{
		Approach: "openai",
		Model:    "m",
		Input:    "laptop",
		Record:   specs.Record{CPU: "A", Memory: "B", Storage: "C"},
		Duration: 120 * time.Millisecond,
	})
	require.NotNil(t, run)
	assert.Equal(t, StatusOK, run.Status)
	assert.Equal(t, int64(120), run.DurationMs)
	assert.JSONEq(t, `{"cpu":"A","memory":"B","storage":"C"}`, run.Output)

	failCtx := observability.WithRunID(context.Background(), "failed-run")
	cause := &chain.ChainError{Stage: chain.StageValidate, Err: &specs.ValidationError{Reason: specs.ReasonMalformed}}
	failed := rec.Record(failCtx, Entry{Approach: "raw", Input: "laptop", Err: cause})
	require.NotNil(t, failed)

	got, err := repo.GetByRunID("failed-run")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "validate", got.Stage)
	assert.Equal(t, "validation", got.ErrorKind)
	assert.Empty(t, got.Output)
	assert.Contains(t, got.Error, "malformed")
}
