package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dawitel/optimetricsapi/internal/model"
)

func newEngineTask() *model.Task {
	return &model.Task{
		ID:       "task-1",
		Type:     model.TaskTypeSeoScrape,
		DomainID: "dom-1",
		Status:   model.TaskStatusPending,
		Stage:    model.StageSiteFinding,
	}
}

func TestEngine_Execute_RunsStagesInOrder(t *testing.T) {
	t.Parallel()

	st := &mockStore{}
	st.On("UpdateTaskStatus", mock.Anything, "task-1", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var order []model.TaskStage
	p := &Pipeline{
		Type: model.TaskTypeSeoScrape,
		Stages: []Stage{
			{Name: "ALPHA", Run: func(_ context.Context, _ *Run) error {
				order = append(order, "ALPHA")
				return nil
			}},
			{Name: "BETA", Run: func(_ context.Context, _ *Run) error {
				order = append(order, "BETA")
				return nil
			}},
		},
	}

	err := NewEngine(st).Execute(context.Background(), newEngineTask(), p)
	require.NoError(t, err)
	assert.Equal(t, []model.TaskStage{"ALPHA", "BETA"}, order)

	// PROCESSING before and after each stage, COMPLETED once at the end.
	st.AssertCalled(t, "UpdateTaskStatus", mock.Anything, "task-1", model.TaskStatusProcessing, model.TaskStage("ALPHA"), "")
	st.AssertCalled(t, "UpdateTaskStatus", mock.Anything, "task-1", model.TaskStatusProcessing, model.TaskStage("BETA"), "")
	st.AssertCalled(t, "UpdateTaskStatus", mock.Anything, "task-1", model.TaskStatusCompleted, model.TaskStage(""), "")
	st.AssertNumberOfCalls(t, "UpdateTaskStatus", 5)
}

func TestEngine_Execute_HaltsOnFirstFailure(t *testing.T) {
	t.Parallel()

	st := &mockStore{}
	st.On("UpdateTaskStatus", mock.Anything, "task-1", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	ranLater := false
	p := &Pipeline{
		Type: model.TaskTypeSeoScrape,
		Stages: []Stage{
			{Name: "ALPHA", Run: func(_ context.Context, _ *Run) error {
				return nil
			}},
			{Name: "BETA", Run: func(_ context.Context, _ *Run) error {
				return eris.New("Site does not use HTTPS")
			}},
			{Name: "GAMMA", Run: func(_ context.Context, _ *Run) error {
				ranLater = true
				return nil
			}},
		},
	}

	err := NewEngine(st).Execute(context.Background(), newEngineTask(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage BETA")
	assert.False(t, ranLater)

	st.AssertCalled(t, "UpdateTaskStatus", mock.Anything, "task-1", model.TaskStatusFailed, model.TaskStage("BETA"), "Site does not use HTTPS")
	st.AssertNotCalled(t, "UpdateTaskStatus", mock.Anything, "task-1", model.TaskStatusCompleted, mock.Anything, mock.Anything)
}

func TestEngine_Execute_AccumulatorThreadsThroughStages(t *testing.T) {
	t.Parallel()

	st := &mockStore{}
	st.On("UpdateTaskStatus", mock.Anything, "task-1", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	p := &Pipeline{
		Type: model.TaskTypeReviewScrape,
		Stages: []Stage{
			{Name: "COLLECT", Run: func(_ context.Context, run *Run) error {
				run.RawReviews = append(run.RawReviews, model.RawReview{ID: "r1"})
				return nil
			}},
			{Name: "CHECK", Run: func(_ context.Context, run *Run) error {
				if len(run.RawReviews) != 1 {
					return eris.New("lost accumulator")
				}
				return nil
			}},
		},
	}

	err := NewEngine(st).Execute(context.Background(), newEngineTask(), p)
	require.NoError(t, err)
}

func TestEngine_Execute_StatusWriteFailureAborts(t *testing.T) {
	t.Parallel()

	st := &mockStore{}
	st.On("UpdateTaskStatus", mock.Anything, "task-1", mock.Anything, mock.Anything, mock.Anything).
		Return(eris.New("store: connection lost"))

	ran := false
	p := &Pipeline{
		Type: model.TaskTypeSeoScrape,
		Stages: []Stage{
			{Name: "ALPHA", Run: func(_ context.Context, _ *Run) error {
				ran = true
				return nil
			}},
		},
	}

	err := NewEngine(st).Execute(context.Background(), newEngineTask(), p)
	require.Error(t, err)
	assert.False(t, ran)
}

func TestEngine_Execute_StageTimeout(t *testing.T) {
	t.Parallel()

	st := &mockStore{}
	st.On("UpdateTaskStatus", mock.Anything, "task-1", model.TaskStatusProcessing, model.TaskStage("SLOW"), "").Return(nil)
	st.On("UpdateTaskStatus", mock.Anything, "task-1", model.TaskStatusFailed, model.TaskStage("SLOW"), "context deadline exceeded").Return(nil)

	p := &Pipeline{
		Type: model.TaskTypeSeoScrape,
		Stages: []Stage{
			{Name: "SLOW", Run: func(ctx context.Context, _ *Run) error {
				<-ctx.Done()
				return ctx.Err()
			}},
		},
	}

	err := NewEngine(st, WithStageTimeout(20*time.Millisecond)).Execute(context.Background(), newEngineTask(), p)
	require.Error(t, err)
	st.AssertExpectations(t)
	st.AssertNotCalled(t, "UpdateTaskStatus", mock.Anything, "task-1", model.TaskStatusCompleted, model.TaskStage(""), "")
}
