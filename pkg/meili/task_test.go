package meili

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourname/meilikit/internal/meilitest"
)

func TestTaskStatus_Terminal(t *testing.T) {
	assert.True(t, TaskStatusSucceeded.Terminal())
	assert.True(t, TaskStatusFailed.Terminal())
	assert.True(t, TaskStatusCanceled.Terminal())
	assert.False(t, TaskStatusEnqueued.Terminal())
	assert.False(t, TaskStatusProcessing.Terminal())
}

func TestWaitForTask_PollsUntilTerminal(t *testing.T) {
	client, server := newTestClient(t, meilitest.WithTaskPolls(3))
	ctx := context.Background()

	info, err := client.Index("movies").AddDocuments(ctx, []Document{{"id": 1}}, "")
	require.NoError(t, err)
	assert.Equal(t, TaskStatusEnqueued, info.Status)

	task, err := client.WaitForTask(ctx, info.TaskUID, WaitOptions{Interval: 5 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, TaskStatusSucceeded, task.Status)
	assert.Equal(t, "movies", task.IndexUID)
	assert.NotNil(t, task.FinishedAt)
	assert.Len(t, server.RequestsTo(http.MethodGet, "/tasks/0"), 4)
}

func TestWaitForTask_ReturnsFailedTask(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	info, err := client.Index("movies").AddDocuments(ctx, []Document{{"title": "no identifier"}}, "")
	require.NoError(t, err)

	task, err := client.WaitForTask(ctx, info.TaskUID, WaitOptions{})
	require.NoError(t, err)
	assert.Equal(t, TaskStatusFailed, task.Status)
	require.NotNil(t, task.Error)
	assert.Equal(t, "index_primary_key_no_candidate_found", task.Error.Code)
}

func TestWaitForTask_Timeout(t *testing.T) {
	client, _ := newTestClient(t, meilitest.WithTaskPolls(-1))
	ctx := context.Background()

	info, err := client.CreateDump(ctx)
	require.NoError(t, err)

	start := time.Now()
	_, err = client.WaitForTask(ctx, info.TaskUID, WaitOptions{Timeout: 100 * time.Millisecond, Interval: 20 * time.Millisecond})
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, info.TaskUID, timeoutErr.TaskUID)
	assert.Equal(t, TaskStatusEnqueued, timeoutErr.LastStatus)
	assert.True(t, IsTimeout(err))
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestWaitForTask_NoPollAfterDeadline(t *testing.T) {
	var (
		deadline atomic.Int64
		late     atomic.Int32
		polls    atomic.Int32
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		if d := deadline.Load(); d != 0 && time.Now().UnixNano() > d {
			late.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"uid":7,"status":"processing","type":"documentAdditionOrUpdate"}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	// Interval does not divide the timeout, so the last sleep is shortened.
	timeout := 130 * time.Millisecond
	deadline.Store(time.Now().Add(timeout).UnixNano())
	_, err = client.WaitForTask(context.Background(), 7, WaitOptions{Timeout: timeout, Interval: 50 * time.Millisecond})
	require.True(t, IsTimeout(err))

	assert.Zero(t, late.Load())
	assert.LessOrEqual(t, polls.Load(), int32(3))
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestWaitForTask_ContextCanceled(t *testing.T) {
	client, _ := newTestClient(t, meilitest.WithTaskPolls(-1))

	info, err := client.CreateDump(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = client.WaitForTask(ctx, info.TaskUID, WaitOptions{Timeout: 5 * time.Second, Interval: 10 * time.Millisecond})
	require.Error(t, err)
	assert.False(t, IsTimeout(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWaitForTask_UnknownTask(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.WaitForTask(context.Background(), 42, WaitOptions{})
	assert.True(t, IsAPIErrorCode(err, CodeTaskNotFound))
}

func TestWaitForTasks_AggregatesFailures(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	index := client.Index("movies")

	ok, err := index.AddDocuments(ctx, []Document{{"id": 1}}, "")
	require.NoError(t, err)
	bad, err := index.AddDocuments(ctx, []Document{{"title": "missing id"}}, "")
	require.NoError(t, err)

	tasks, err := client.WaitForTasks(ctx, []TaskInfo{*ok, *bad}, WaitOptions{})
	require.Len(t, tasks, 2)
	assert.Equal(t, TaskStatusSucceeded, tasks[0].Status)
	assert.Equal(t, TaskStatusFailed, tasks[1].Status)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 1)

	var failed *TaskFailedError
	require.ErrorAs(t, merr.Errors[0], &failed)
	assert.Equal(t, bad.TaskUID, failed.Task.UID)
	assert.Equal(t, "missing_document_id", failed.Task.Error.Code)
}

func TestGetTasks_Filter(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.CreateIndex(ctx, "movies", "id")
	require.NoError(t, err)
	_, err = client.CreateIndex(ctx, "books", "id")
	require.NoError(t, err)
	_, err = client.Index("movies").AddDocuments(ctx, []Document{{"id": 1}}, "")
	require.NoError(t, err)

	all, err := client.GetTasks(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all.Results, 3)
	assert.EqualValues(t, 2, all.Results[0].UID, "newest first")

	movies, err := client.GetTasks(ctx, &TasksFilter{IndexUIDs: []string{"movies"}})
	require.NoError(t, err)
	assert.Len(t, movies.Results, 2)

	creations, err := client.GetTasks(ctx, &TasksFilter{Types: []string{"indexCreation"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, creations.Results, 1)
	require.NotNil(t, creations.Next)
	assert.EqualValues(t, 0, *creations.Next)

	older, err := client.GetTasks(ctx, &TasksFilter{Types: []string{"indexCreation"}, From: creations.Next})
	require.NoError(t, err)
	require.Len(t, older.Results, 1)
	assert.Equal(t, "movies", older.Results[0].IndexUID)
	assert.Nil(t, older.Next)
}

func TestStatusCheck(t *testing.T) {
	client, _ := newTestClient(t, meilitest.WithTaskPolls(1))
	ctx := context.Background()

	_, err := client.CreateIndex(ctx, "movies", "id")
	require.NoError(t, err)

	err = client.StatusCheck(ctx, func(ctx context.Context) error {
		index := client.Index("movies")
		if _, err := index.AddDocuments(ctx, []Document{{"id": 1}}, ""); err != nil {
			return err
		}
		_, err := index.AddDocuments(ctx, []Document{{"title": "missing id"}}, "")
		return err
	})

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 1)

	var failed *TaskFailedError
	require.ErrorAs(t, merr.Errors[0], &failed)
	assert.EqualValues(t, 2, failed.Task.UID)
}

func TestStatusCheck_AllSucceeded(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	err := client.StatusCheck(ctx, func(ctx context.Context) error {
		_, err := client.Index("movies").AddDocuments(ctx, []Document{{"id": 1}}, "")
		return err
	})
	assert.NoError(t, err)
}

func TestStatusCheck_CallbackError(t *testing.T) {
	client, _ := newTestClient(t)
	boom := errors.New("boom")

	err := client.StatusCheck(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
