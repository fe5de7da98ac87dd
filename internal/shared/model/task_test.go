package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     TaskStatus
		fromProg int
		to       TaskStatus
		toProg   int
		want     bool
	}{
		{"pending 到 running", TaskStatusPending, 0, TaskStatusRunning, 0, true},
		{"running 到 partially_complete(1)", TaskStatusRunning, 0, TaskStatusPartiallyComplete, 1, true},
		{"progress 递增", TaskStatusPartiallyComplete, 1, TaskStatusPartiallyComplete, 2, true},
		{"progress 不变", TaskStatusPartiallyComplete, 2, TaskStatusPartiallyComplete, 2, false},
		{"progress 回退", TaskStatusPartiallyComplete, 2, TaskStatusPartiallyComplete, 1, false},
		{"progress 越界", TaskStatusPartiallyComplete, 3, TaskStatusPartiallyComplete, 4, false},
		{"未汇合不能聚合", TaskStatusPartiallyComplete, 2, TaskStatusAggregating, 2, false},
		{"汇合后聚合", TaskStatusPartiallyComplete, 3, TaskStatusAggregating, 3, true},
		{"聚合到完成", TaskStatusAggregating, 3, TaskStatusCompleted, 3, true},
		{"running 回退到 pending", TaskStatusRunning, 0, TaskStatusPending, 0, false},
		{"聚合回退", TaskStatusAggregating, 3, TaskStatusPartiallyComplete, 3, false},
		{"任意非终态可失败", TaskStatusPartiallyComplete, 1, TaskStatusFailed, 1, true},
		{"pending 直接失败", TaskStatusPending, 0, TaskStatusFailed, 0, true},
		{"完成后不可失败", TaskStatusCompleted, 3, TaskStatusFailed, 3, false},
		{"失败后不可完成", TaskStatusFailed, 1, TaskStatusCompleted, 3, false},
		{"未知状态", TaskStatusRunning, 0, TaskStatus("paused"), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.fromProg, tt.to, tt.toProg))
		})
	}
}

func TestTaskStatus_Public(t *testing.T) {
	assert.Equal(t, TaskStatusPending, TaskStatusPending.Public())
	assert.Equal(t, TaskStatusRunning, TaskStatusPartiallyComplete.Public())
	assert.Equal(t, TaskStatusRunning, TaskStatusAggregating.Public())
	assert.Equal(t, TaskStatusCompleted, TaskStatusCompleted.Public())
	assert.Equal(t, TaskStatusFailed, TaskStatusFailed.Public())
}

func TestTaskRecord_Lifecycle(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	req := &TripRequest{Destination: "Rome"}
	task := NewTaskRecord("task-1", req, now)

	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Nil(t, task.StartedAt)

	require.NoError(t, task.Advance(TaskStatusRunning, 0, now))
	require.NotNil(t, task.StartedAt)

	require.NoError(t, task.RecordStage1(AgentFlight, &StageResults{Flights: &FlightResult{}}, now))
	assert.Equal(t, TaskStatusPartiallyComplete, task.Status)
	assert.Equal(t, 1, task.Progress)

	err := task.RecordStage1(AgentFlight, &StageResults{Flights: &FlightResult{}}, now)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "同一槽位不能写两次")

	assert.Error(t, task.RecordStage1(AgentHotel, &StageResults{}, now), "空结果不计入 progress")
	assert.Equal(t, 1, task.Progress)

	require.NoError(t, task.RecordStage1(AgentHotel, &StageResults{Hotels: &HotelResult{}}, now))
	require.NoError(t, task.RecordStage1(AgentRecommendation, &StageResults{Recommendations: &RecommendationResult{}}, now))
	assert.Equal(t, 3, task.Progress)

	require.NoError(t, task.Advance(TaskStatusAggregating, 3, now))

	finished := now.Add(time.Minute)
	require.NoError(t, task.Complete(&TripPlan{TaskID: "task-1"}, finished, time.Hour))
	assert.Equal(t, TaskStatusCompleted, task.Status)
	require.NotNil(t, task.Result)
	require.NotNil(t, task.ExpiresAt)
	assert.Equal(t, finished.Add(time.Hour), *task.ExpiresAt)

	assert.False(t, task.Expired(finished.Add(59*time.Minute)))
	assert.True(t, task.Expired(finished.Add(time.Hour)))

	err = task.Fail("late failure", finished, time.Hour)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, TaskStatusCompleted, task.Status)
	assert.Empty(t, task.Error)
}

func TestTaskRecord_Fail(t *testing.T) {
	now := time.Now()
	task := NewTaskRecord("task-2", &TripRequest{}, now)
	require.NoError(t, task.Advance(TaskStatusRunning, 0, now))

	require.NoError(t, task.Fail("generator produced no options", now, time.Minute))
	assert.Equal(t, TaskStatusFailed, task.Status)
	assert.Equal(t, "generator produced no options", task.Error)
	assert.Nil(t, task.Result)
	assert.NotNil(t, task.FinishedAt)
}
