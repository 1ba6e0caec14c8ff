package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestEnqueuePassesOrgAndRespondsAccepted(t *testing.T) {
	h := &Handler{client: &Client{}, logger: slog.New(slog.DiscardHandler)}
	var gotOrg int64
	fn := h.enqueue(func(ctx context.Context, orgID int64) (*asynq.TaskInfo, error) {
		gotOrg = orgID
		return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
	})

	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodPost, "/reconcile-scan?org=7", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, int64(7), gotOrg)
	require.JSONEq(t, `{"task_id":"task-1","queue":"default"}`, rec.Body.String())
}

func TestEnqueueDefaultsToAllOrgs(t *testing.T) {
	h := &Handler{client: &Client{}, logger: slog.New(slog.DiscardHandler)}
	gotOrg := int64(-1)
	fn := h.enqueue(func(ctx context.Context, orgID int64) (*asynq.TaskInfo, error) {
		gotOrg = orgID
		return &asynq.TaskInfo{ID: "task-2", Queue: QueueDefault}, nil
	})

	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodPost, "/journal-integrity", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Zero(t, gotOrg)
}

func TestEnqueueRejectsBadOrg(t *testing.T) {
	h := &Handler{client: &Client{}, logger: slog.New(slog.DiscardHandler)}
	fn := h.enqueue(func(ctx context.Context, orgID int64) (*asynq.TaskInfo, error) {
		t.Fatal("must not submit")
		return nil, nil
	})

	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodPost, "/reconcile-scan?org=abc", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueWithoutClientIsUnavailable(t *testing.T) {
	h := NewHandler(nil, nil, slog.New(slog.DiscardHandler))
	fn := h.enqueue(func(ctx context.Context, orgID int64) (*asynq.TaskInfo, error) {
		t.Fatal("must not submit")
		return nil, nil
	})

	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodPost, "/reconcile-scan", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEnqueueSubmitFailureIsUnavailable(t *testing.T) {
	h := &Handler{client: &Client{}, logger: slog.New(slog.DiscardHandler)}
	fn := h.enqueue(func(ctx context.Context, orgID int64) (*asynq.TaskInfo, error) {
		return nil, errors.New("redis down")
	})

	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodPost, "/reconcile-scan", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReconcileScanTaskPayload(t *testing.T) {
	at := time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC)
	task, err := NewReconcileScanTask(42, at)
	require.NoError(t, err)
	require.Equal(t, TaskLedgerReconcileScan, task.Type())

	var payload ReconcileScanPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, int64(42), payload.OrgID)
	require.True(t, payload.ScheduledFor.Equal(at))
}
