package meili

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
)

// TaskStatus is the lifecycle state of a server-side task.
type TaskStatus string

const (
	TaskStatusEnqueued   TaskStatus = "enqueued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusSucceeded  TaskStatus = "succeeded"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCanceled   TaskStatus = "canceled"
)

// Terminal reports whether no further transition can happen.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusCanceled:
		return true
	default:
		return false
	}
}

const (
	DefaultTaskTimeout  = 5 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
)

// TaskInfo is the summary returned when a task is enqueued.
type TaskInfo struct {
	TaskUID    int64      `json:"taskUid" yaml:"taskUid"`
	IndexUID   string     `json:"indexUid,omitempty" yaml:"indexUid,omitempty"`
	Status     TaskStatus `json:"status" yaml:"status"`
	Type       string     `json:"type" yaml:"type"`
	EnqueuedAt time.Time  `json:"enqueuedAt" yaml:"enqueuedAt"`
}

// TaskError is the error attached to a failed task.
type TaskError struct {
	Message string `json:"message" yaml:"message"`
	Code    string `json:"code" yaml:"code"`
	Type    string `json:"type" yaml:"type"`
	Link    string `json:"link" yaml:"link"`
}

// Task is the full task resource.
type Task struct {
	UID        int64          `json:"uid" yaml:"uid"`
	IndexUID   string         `json:"indexUid,omitempty" yaml:"indexUid,omitempty"`
	Status     TaskStatus     `json:"status" yaml:"status"`
	Type       string         `json:"type" yaml:"type"`
	Details    map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	Error      *TaskError     `json:"error,omitempty" yaml:"error,omitempty"`
	Duration   string         `json:"duration,omitempty" yaml:"duration,omitempty"`
	EnqueuedAt time.Time      `json:"enqueuedAt" yaml:"enqueuedAt"`
	StartedAt  *time.Time     `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
}

// TasksFilter narrows GetTasks.
type TasksFilter struct {
	IndexUIDs []string     `url:"indexUids,comma,omitempty"`
	Statuses  []TaskStatus `url:"statuses,comma,omitempty"`
	Types     []string     `url:"types,comma,omitempty"`
	Limit     int          `url:"limit,omitempty"`
	From      *int64       `url:"from,omitempty"`
}

// TasksResults is a page of tasks, newest first.
type TasksResults struct {
	Results []Task `json:"results" yaml:"results"`
	Limit   int    `json:"limit" yaml:"limit"`
	From    *int64 `json:"from" yaml:"from"`
	Next    *int64 `json:"next" yaml:"next"`
}

// WaitOptions configures WaitForTask. Zero values use the defaults.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTaskTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	return o
}

// GetTask fetches one task.
func (c *Client) GetTask(ctx context.Context, uid int64) (*Task, error) {
	var result Task
	if err := c.get(ctx, "tasks/"+strconv.FormatInt(uid, 10), nil, &result); err != nil {
		return nil, fmt.Errorf("get task %d failed: %w", uid, err)
	}
	return &result, nil
}

// GetTasks lists tasks matching the filter.
func (c *Client) GetTasks(ctx context.Context, filter *TasksFilter) (*TasksResults, error) {
	var params any
	if filter != nil {
		params = *filter
	}

	var result TasksResults
	if err := c.get(ctx, "tasks", params, &result); err != nil {
		return nil, fmt.Errorf("list tasks failed: %w", err)
	}
	return &result, nil
}

// WaitForTask polls the task until its status is terminal or the timeout elapses.
// A failed or canceled task is returned without error; callers inspect Status.
// No request is made once the deadline has passed.
func (c *Client) WaitForTask(ctx context.Context, uid int64, opts WaitOptions) (*Task, error) {
	opts = opts.withDefaults()
	deadline := time.Now().Add(opts.Timeout)

	timer := time.NewTimer(opts.Interval)
	defer timer.Stop()

	var lastStatus TaskStatus
	for {
		task, err := c.GetTask(ctx, uid)
		if err != nil {
			return nil, err
		}
		lastStatus = task.Status

		if task.Status.Terminal() {
			c.logger.Debug().
				Int64("task", uid).
				Str("status", string(task.Status)).
				Msg("MeiliSearch: task finished")
			return task, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		wait := opts.Interval
		if wait > remaining {
			wait = remaining
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		if !time.Now().Before(deadline) {
			break
		}
	}

	return nil, &TimeoutError{TaskUID: uid, Timeout: opts.Timeout, LastStatus: lastStatus}
}

// waitForSuccess waits for a task and converts a non-successful outcome into an error.
func (c *Client) waitForSuccess(ctx context.Context, uid int64, timeout time.Duration) (*Task, error) {
	task, err := c.WaitForTask(ctx, uid, WaitOptions{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	if task.Status != TaskStatusSucceeded {
		return task, &TaskFailedError{Task: task}
	}
	return task, nil
}

// WaitForTasks waits for each task in order and returns the terminal tasks.
// Failed or canceled tasks are collected into a multierror of *TaskFailedError;
// a polling error stops the wait immediately.
func (c *Client) WaitForTasks(ctx context.Context, infos []TaskInfo, opts WaitOptions) ([]*Task, error) {
	tasks := make([]*Task, 0, len(infos))
	var result *multierror.Error

	for _, info := range infos {
		task, err := c.WaitForTask(ctx, info.TaskUID, opts)
		if err != nil {
			return tasks, err
		}
		tasks = append(tasks, task)
		if task.Status != TaskStatusSucceeded {
			result = multierror.Append(result, &TaskFailedError{Task: task})
		}
	}

	return tasks, result.ErrorOrNil()
}

// StatusCheck runs fn, waits for every task enqueued while it ran, and reports
// the ones that did not succeed. Failures are logged and returned as a
// multierror; fn's own error takes precedence.
func (c *Client) StatusCheck(ctx context.Context, fn func(ctx context.Context) error) error {
	latest, err := c.latestTaskUID(ctx)
	if err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		return err
	}

	var enqueued []Task
	filter := TasksFilter{Limit: 1000}
	for {
		page, err := c.GetTasks(ctx, &filter)
		if err != nil {
			return err
		}
		for _, task := range page.Results {
			if task.UID > latest {
				enqueued = append(enqueued, task)
			}
		}
		if page.Next == nil || *page.Next <= latest {
			break
		}
		filter.From = page.Next
	}

	var result *multierror.Error
	// Oldest first so failures are reported in submission order.
	for i := len(enqueued) - 1; i >= 0; i-- {
		task := &enqueued[i]
		if !task.Status.Terminal() {
			task, err = c.WaitForTask(ctx, task.UID, WaitOptions{})
			if err != nil {
				return err
			}
		}
		if task.Status == TaskStatusSucceeded {
			continue
		}

		c.logger.Warn().
			Int64("task", task.UID).
			Str("index", task.IndexUID).
			Str("status", string(task.Status)).
			Interface("error", task.Error).
			Msg("MeiliSearch: task did not succeed")
		result = multierror.Append(result, &TaskFailedError{Task: task})
	}

	return result.ErrorOrNil()
}

// latestTaskUID returns the uid of the newest task, or -1 when there is none.
func (c *Client) latestTaskUID(ctx context.Context) (int64, error) {
	page, err := c.GetTasks(ctx, &TasksFilter{Limit: 1})
	if err != nil {
		return 0, err
	}
	if len(page.Results) == 0 {
		return -1, nil
	}
	return page.Results[0].UID, nil
}

// IsTimeout reports whether err is a task wait timeout.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}
