package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/csrf"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/session"
	"github.com/nhle/taskboard/internal/store"
	"github.com/nhle/taskboard/tests/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
	store  store.Store
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(t *testing.T, st store.Store) *Server {
	t.Helper()

	sessions, err := session.NewManager([]byte("test-key"), time.Hour, false)
	require.NoError(t, err)

	return New(Config{
		Addr:          "127.0.0.1:0",
		AllowedOrigin: "http://localhost:3000",
		Logger:        quietLogger(),
	}, st, csrf.NewGuard(csrf.NewMemoryStore(time.Hour), csrf.WithLogger(quietLogger())), sessions)
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st := testutil.NewTestStore(t, store.WithClock(testutil.TickingClock(epoch, time.Second)))
	return newHarnessWithStore(t, st)
}

func newHarnessWithStore(t *testing.T, st store.Store) *harness {
	t.Helper()

	srv := httptest.NewServer(newServer(t, st).Handler())
	t.Cleanup(srv.Close)

	return &harness{t: t, srv: srv, client: newClient(t), store: st}
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

type response struct {
	status int
	header http.Header
	raw    []byte
	env    api.Envelope[json.RawMessage]
}

func (h *harness) doWith(client *http.Client, method, path string, body any, token string) response {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(h.t, err)
			reader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequest(method, h.srv.URL+path, reader)
	require.NoError(h.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(csrf.HeaderName, token)
	}

	resp, err := client.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)

	r := response{status: resp.StatusCode, header: resp.Header, raw: raw}
	if len(raw) > 0 {
		require.NoError(h.t, json.Unmarshal(raw, &r.env), string(raw))
	}
	return r
}

func (h *harness) do(method, path string, body any, token string) response {
	h.t.Helper()
	return h.doWith(h.client, method, path, body, token)
}

func (h *harness) token() string {
	h.t.Helper()
	r := h.do(http.MethodGet, "/api/csrf-token", nil, "")
	require.Equal(h.t, http.StatusOK, r.status)
	require.NotEmpty(h.t, r.env.CSRFToken)
	return r.env.CSRFToken
}

func (h *harness) list() []model.Task {
	h.t.Helper()
	r := h.do(http.MethodGet, "/api/tasks", nil, "")
	require.Equal(h.t, http.StatusOK, r.status)
	require.NotNil(h.t, r.env.Data)

	var tasks []model.Task
	require.NoError(h.t, json.Unmarshal(*r.env.Data, &tasks))
	return tasks
}

func decodeData[T any](t *testing.T, r response) T {
	t.Helper()
	require.NotNil(t, r.env.Data, string(r.raw))
	var v T
	require.NoError(t, json.Unmarshal(*r.env.Data, &v))
	return v
}

func TestCSRFTokenIsStablePerSession(t *testing.T) {
	h := newHarness(t)

	first := h.token()
	assert.Regexp(t, "^[0-9a-f]{64}$", first)
	assert.Equal(t, first, h.token())

	other := h.doWith(newClient(t), http.MethodGet, "/api/csrf-token", nil, "")
	assert.NotEqual(t, first, other.env.CSRFToken)
}

func TestListEmpty(t *testing.T) {
	h := newHarness(t)

	r := h.do(http.MethodGet, "/api/tasks", nil, "")
	assert.Equal(t, http.StatusOK, r.status)
	assert.JSONEq(t, `{"success":true,"data":[]}`, string(r.raw))
}

func TestMutationsRequireToken(t *testing.T) {
	h := newHarness(t)
	tok := h.token()
	created := h.do(http.MethodPost, "/api/tasks", map[string]string{"title": "A"}, tok)
	require.Equal(t, http.StatusCreated, created.status)
	id := decodeData[model.Task](t, created).ID
	path := "/api/tasks/" + itoa(id)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		token  string
	}{
		{"create without token", http.MethodPost, "/api/tasks", map[string]string{"title": "X"}, ""},
		{"create wrong token", http.MethodPost, "/api/tasks", map[string]string{"title": "X"}, "deadbeef"},
		{"update without token", http.MethodPut, path, map[string]string{"title": "X"}, ""},
		{"delete without token", http.MethodDelete, path, nil, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := h.do(tc.method, tc.path, tc.body, tc.token)
			assert.Equal(t, http.StatusForbidden, r.status)
			assert.False(t, r.env.Success)
			assert.Equal(t, api.ErrInvalidCSRF, r.env.Error)
		})
	}

	tasks := h.list()
	require.Len(t, tasks, 1)
	assert.Equal(t, "A", tasks[0].Title)
}

func TestTokenIsBoundToSession(t *testing.T) {
	h := newHarness(t)
	tok := h.token()

	r := h.doWith(newClient(t), http.MethodPost, "/api/tasks", map[string]string{"title": "X"}, tok)
	assert.Equal(t, http.StatusForbidden, r.status)
	assert.Empty(t, h.list())
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	tok := h.token()

	tests := []struct {
		name string
		body any
		want string
	}{
		{"missing title", map[string]string{"description": "d"}, "title is required"},
		{"empty title", map[string]string{"title": ""}, "title is required"},
		{"blank title", map[string]string{"title": "   "}, "title is required"},
		{"markup-only title", map[string]string{"title": "<b></b>"}, "title is required"},
		{"markup around spaces", map[string]string{"title": "<i> </i>"}, "title is required"},
		{"empty body", "", "title is required"},
		{"malformed json", "{", api.ErrInvalidBody},
		{"long title", map[string]string{"title": strings.Repeat("a", 256)}, "title must be at most 255 characters"},
		{"long description", map[string]string{"title": "t", "description": strings.Repeat("a", 1001)},
			"description must be at most 1000 characters"},
		{"bad status", map[string]string{"title": "t", "status": "done"},
			"status must be one of pending, in_progress, completed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := h.do(http.MethodPost, "/api/tasks", tc.body, tok)
			assert.Equal(t, http.StatusBadRequest, r.status)
			assert.Equal(t, tc.want, r.env.Error)
		})
	}

	assert.Empty(t, h.list())
}

func TestCreateDefaultsAndSanitizes(t *testing.T) {
	h := newHarness(t)
	tok := h.token()

	r := h.do(http.MethodPost, "/api/tasks", map[string]string{"title": "<b>Hi</b> & you"}, tok)
	require.Equal(t, http.StatusCreated, r.status)
	assert.Equal(t, api.MsgTaskCreated, r.env.Message)

	task := decodeData[model.Task](t, r)
	assert.Positive(t, task.ID)
	assert.Equal(t, "Hi &amp; you", task.Title)
	assert.Equal(t, "", task.Description)
	assert.Equal(t, model.StatusPending, task.Status)
}

func TestCreateLimitsApplyToInput(t *testing.T) {
	h := newHarness(t)
	tok := h.token()

	r := h.do(http.MethodPost, "/api/tasks", map[string]string{"title": strings.Repeat("<", 255)}, tok)
	require.Equal(t, http.StatusCreated, r.status)

	task := decodeData[model.Task](t, r)
	assert.Equal(t, strings.Repeat("&lt;", 255), task.Title)
}

func TestCreateIgnoresClientTimestamps(t *testing.T) {
	h := newHarness(t)
	tok := h.token()

	r := h.do(http.MethodPost, "/api/tasks", map[string]string{
		"title":      "A",
		"created_at": "1999-01-01T00:00:00Z",
	}, tok)
	require.Equal(t, http.StatusCreated, r.status)

	task := decodeData[model.Task](t, r)
	assert.True(t, task.CreatedAt.Equal(epoch))
}

func TestListNewestFirst(t *testing.T) {
	h := newHarness(t)
	tok := h.token()

	for _, title := range []string{"A", "B"} {
		r := h.do(http.MethodPost, "/api/tasks", map[string]string{"title": title}, tok)
		require.Equal(t, http.StatusCreated, r.status)
	}

	r := h.do(http.MethodGet, "/api/tasks?page=2", nil, "")
	require.Equal(t, http.StatusOK, r.status)
	tasks := decodeData[[]model.Task](t, r)
	require.Len(t, tasks, 2)
	assert.Equal(t, "B", tasks[0].Title)
	assert.Equal(t, "A", tasks[1].Title)
}

func TestTaskLifecycle(t *testing.T) {
	h := newHarness(t)
	tok := h.token()

	r := h.do(http.MethodPost, "/api/tasks", map[string]string{
		"title":       "Buy milk",
		"description": "2 liters",
	}, tok)
	require.Equal(t, http.StatusCreated, r.status)
	id := decodeData[model.Task](t, r).ID
	path := "/api/tasks/" + itoa(id)

	r = h.do(http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, r.status)
	shown := decodeData[model.Task](t, r)
	assert.Equal(t, "Buy milk", shown.Title)
	assert.Equal(t, "2 liters", shown.Description)
	assert.Equal(t, model.StatusPending, shown.Status)
	assert.False(t, shown.CreatedAt.IsZero())

	r = h.do(http.MethodPut, path, map[string]string{"status": "completed"}, tok)
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, api.MsgTaskUpdated, r.env.Message)
	assert.JSONEq(t,
		`{"id":`+itoa(id)+`,"title":"Buy milk","description":"2 liters","status":"completed"}`,
		string(*r.env.Data))

	r = h.do(http.MethodGet, path, nil, "")
	updated := decodeData[model.Task](t, r)
	assert.Equal(t, model.StatusCompleted, updated.Status)
	assert.Equal(t, "2 liters", updated.Description)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	r = h.do(http.MethodDelete, path, nil, tok)
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, api.MsgTaskDeleted, r.env.Message)
	assert.Nil(t, r.env.Data)

	r = h.do(http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, r.status)
	assert.Equal(t, api.ErrTaskNotFound, r.env.Error)
}

func TestUpdateEmptyBodyKeepsFields(t *testing.T) {
	h := newHarness(t)
	tok := h.token()

	r := h.do(http.MethodPost, "/api/tasks", map[string]string{"title": "A", "description": "d"}, tok)
	id := decodeData[model.Task](t, r).ID

	r = h.do(http.MethodPut, "/api/tasks/"+itoa(id), "", tok)
	require.Equal(t, http.StatusOK, r.status)

	got := decodeData[taskSummary](t, r)
	assert.Equal(t, "A", got.Title)
	assert.Equal(t, "d", got.Description)
}

func TestUpdateValidation(t *testing.T) {
	h := newHarness(t)
	tok := h.token()

	r := h.do(http.MethodPost, "/api/tasks", map[string]string{"title": "A"}, tok)
	path := "/api/tasks/" + itoa(decodeData[model.Task](t, r).ID)

	r = h.do(http.MethodPut, path, map[string]string{"title": ""}, tok)
	assert.Equal(t, http.StatusBadRequest, r.status)

	r = h.do(http.MethodPut, path, map[string]string{"title": "<b></b>"}, tok)
	assert.Equal(t, http.StatusBadRequest, r.status)
	assert.Equal(t, api.ErrTitleEmpty, r.env.Error)

	r = h.do(http.MethodPut, path, map[string]string{"title": "<i> </i>"}, tok)
	assert.Equal(t, http.StatusBadRequest, r.status)

	r = h.do(http.MethodPut, path, map[string]string{"status": "archived"}, tok)
	assert.Equal(t, http.StatusBadRequest, r.status)

	tasks := h.list()
	require.Len(t, tasks, 1)
	assert.Equal(t, "A", tasks[0].Title)
	assert.Equal(t, model.StatusPending, tasks[0].Status)
}

func TestMissingTaskReturns404(t *testing.T) {
	h := newHarness(t)
	tok := h.token()

	r := h.do(http.MethodPut, "/api/tasks/999", map[string]string{"title": "X"}, tok)
	assert.Equal(t, http.StatusNotFound, r.status)
	assert.Equal(t, api.ErrTaskNotFound, r.env.Error)

	r = h.do(http.MethodDelete, "/api/tasks/999", nil, tok)
	assert.Equal(t, http.StatusNotFound, r.status)

	assert.Empty(t, h.list())
}

func TestUnknownRoutes(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"unknown path", http.MethodGet, "/api/projects"},
		{"non integer id", http.MethodGet, "/api/tasks/abc"},
		{"non integer id on put skips csrf", http.MethodPut, "/api/tasks/abc"},
		{"signed id", http.MethodDelete, "/api/tasks/-1"},
		{"trailing slash", http.MethodGet, "/api/tasks/"},
		{"unsupported method", http.MethodPatch, "/api/tasks/1"},
		{"nested path", http.MethodGet, "/api/tasks/1/comments"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := h.do(tc.method, tc.path, nil, "")
			assert.Equal(t, http.StatusNotFound, r.status)
			assert.Equal(t, api.ErrRouteNotFound, r.env.Error)
		})
	}
}

func TestPreflight(t *testing.T) {
	h := newHarness(t)

	r := h.do(http.MethodOptions, "/api/tasks", nil, "")
	assert.Equal(t, http.StatusOK, r.status)
	assert.Empty(t, r.raw)
	assert.Equal(t, "http://localhost:3000", r.header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", r.header.Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, r.header.Get("Access-Control-Allow-Headers"), csrf.HeaderName)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	r := h.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, r.status)
}

type brokenStore struct{ store.Store }

var errBroken = errors.New("disk on fire")

func (brokenStore) List(context.Context) ([]model.Task, error) { return nil, errBroken }
func (brokenStore) Create(context.Context, model.NewTask) (model.Task, error) {
	return model.Task{}, errBroken
}
func (brokenStore) GetByID(context.Context, int64) (*model.Task, error) { return nil, errBroken }
func (brokenStore) Ping(context.Context) error                         { return errBroken }

func TestStoreFailuresAreGeneric(t *testing.T) {
	h := newHarnessWithStore(t, brokenStore{})
	tok := h.token()

	for _, r := range []response{
		h.do(http.MethodGet, "/api/tasks", nil, ""),
		h.do(http.MethodPost, "/api/tasks", map[string]string{"title": "A"}, tok),
		h.do(http.MethodGet, "/api/tasks/1", nil, ""),
		h.do(http.MethodPut, "/api/tasks/1", map[string]string{"title": "A"}, tok),
		h.do(http.MethodDelete, "/api/tasks/1", nil, tok),
	} {
		assert.Equal(t, http.StatusInternalServerError, r.status)
		assert.Equal(t, api.ErrInternal, r.env.Error)
		assert.NotContains(t, string(r.raw), "disk on fire")
	}

	r := h.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, r.status)
}

func TestStartStop(t *testing.T) {
	st := testutil.NewTestStore(t)
	s := newServer(t, st)

	require.NoError(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
