// Package storagetest 任务存储实现的通用一致性测试
//
// 每个 TaskStore 驱动在自己的测试中调用 Run，保证行为一致。
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-planner/internal/shared/model"
	"trip-planner/internal/shared/storage"
)

// Factory 为每个子测试创建一个干净的存储实例
type Factory func(t *testing.T) storage.TaskStore

// NewTask 构造测试用任务
func NewTask(id string) *model.TaskRecord {
	req := &model.TripRequest{
		Destination: "Rome",
		Origin:      "NYC",
		StartDate:   model.NewDate(2024, 6, 1),
		EndDate:     model.NewDate(2024, 6, 5),
		Budget:      model.Dollars(1500),
		Travelers:   1,
		Preferences: model.Preferences{
			Activities:         []model.ActivityCategory{model.CategoryCulture},
			AccommodationStyle: model.AccommodationModerate,
		},
	}
	return model.NewTaskRecord(id, req, time.Now())
}

// Run 执行全部一致性测试
func Run(t *testing.T, newStore Factory) {
	t.Run("创建并读取", func(t *testing.T) { testCreateGet(t, newStore(t)) })
	t.Run("重复创建", func(t *testing.T) { testDuplicate(t, newStore(t)) })
	t.Run("未知任务", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("更新与回滚", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("快照隔离", func(t *testing.T) { testSnapshotIsolation(t, newStore(t)) })
	t.Run("状态单调", func(t *testing.T) { testMonotonic(t, newStore(t)) })
	t.Run("并发写入第一阶段", func(t *testing.T) { testConcurrentStage1(t, newStore(t)) })
	t.Run("过期清理", func(t *testing.T) { testExpiry(t, newStore(t)) })
}

func uniqueID(t *testing.T) string {
	return fmt.Sprintf("task-%d", time.Now().UnixNano())
}

func testCreateGet(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	task := NewTask(uniqueID(t))
	require.NoError(t, s.Create(ctx, task))

	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, model.TaskStatusPending, got.Status)
	assert.Equal(t, "Rome", got.Request.Destination)
	assert.Equal(t, model.Dollars(1500), got.Request.Budget)
	assert.True(t, task.Request.StartDate.Equal(got.Request.StartDate.Time))
}

func testDuplicate(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	task := NewTask(uniqueID(t))
	require.NoError(t, s.Create(ctx, task))

	err := s.Create(ctx, task)
	assert.True(t, errors.Is(err, storage.ErrDuplicate), "got %v", err)
}

func testNotFound(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	_, err := s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	_, err = s.Update(ctx, "missing", func(*model.TaskRecord) error { return nil })
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func testUpdate(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	task := NewTask(uniqueID(t))
	require.NoError(t, s.Create(ctx, task))

	updated, err := s.Update(ctx, task.ID, func(rec *model.TaskRecord) error {
		rec.Stage = "search"
		return rec.Advance(model.TaskStatusRunning, 0, time.Now())
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusRunning, updated.Status)

	boom := errors.New("boom")
	_, err = s.Update(ctx, task.ID, func(rec *model.TaskRecord) error {
		rec.Stage = "should not persist"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "search", got.Stage)
	assert.Equal(t, model.TaskStatusRunning, got.Status)
}

func testSnapshotIsolation(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	task := NewTask(uniqueID(t))
	require.NoError(t, s.Create(ctx, task))

	task.Status = model.TaskStatusFailed
	first, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	first.Status = model.TaskStatusCompleted
	first.Request.Destination = "Paris"

	second, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, second.Status)
	assert.Equal(t, "Rome", second.Request.Destination)
}

func testMonotonic(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	task := NewTask(uniqueID(t))
	require.NoError(t, s.Create(ctx, task))

	_, err := s.Update(ctx, task.ID, func(rec *model.TaskRecord) error {
		return rec.Fail("fatal", time.Now(), time.Hour)
	})
	require.NoError(t, err)

	_, err = s.Update(ctx, task.ID, func(rec *model.TaskRecord) error {
		return rec.Advance(model.TaskStatusRunning, 0, time.Now())
	})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.Equal(t, "fatal", got.Error)
}

func testConcurrentStage1(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	task := NewTask(uniqueID(t))
	require.NoError(t, s.Create(ctx, task))
	_, err := s.Update(ctx, task.ID, func(rec *model.TaskRecord) error {
		return rec.Advance(model.TaskStatusRunning, 0, time.Now())
	})
	require.NoError(t, err)

	results := map[model.AgentKind]*model.StageResults{
		model.AgentFlight:         {Flights: &model.FlightResult{Provenance: model.Fallback("timeout")}},
		model.AgentHotel:          {Hotels: &model.HotelResult{Provenance: model.Live("places")}},
		model.AgentRecommendation: {Recommendations: &model.RecommendationResult{Provenance: model.Live("places")}},
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(results))
	for kind, r := range results {
		wg.Add(1)
		go func(kind model.AgentKind, r *model.StageResults) {
			defer wg.Done()
			_, err := s.Update(ctx, task.ID, func(rec *model.TaskRecord) error {
				return rec.RecordStage1(kind, r, time.Now())
			})
			errs <- err
		}(kind, r)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPartiallyComplete, got.Status)
	assert.Equal(t, 3, got.Progress)
	assert.Equal(t, 3, got.Results.Stage1Count())
	assert.Equal(t, model.SourceFallback, got.Results.Flights.Source)
}

func testExpiry(t *testing.T, s storage.TaskStore) {
	ctx := context.Background()
	done := NewTask(uniqueID(t))
	require.NoError(t, s.Create(ctx, done))
	active := NewTask(uniqueID(t) + "-active")
	require.NoError(t, s.Create(ctx, active))

	_, err := s.Update(ctx, done.ID, func(rec *model.TaskRecord) error {
		return rec.Fail("fatal", time.Now(), time.Hour)
	})
	require.NoError(t, err)

	n, err := s.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "保留期内不清理")

	n, err = s.DeleteExpired(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, done.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	_, err = s.Get(ctx, active.ID)
	assert.NoError(t, err, "未结束的任务不受保留期影响")
}
