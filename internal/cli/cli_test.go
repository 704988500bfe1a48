package cli

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskboard/internal/csrf"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/server"
	"github.com/nhle/taskboard/internal/session"
	"github.com/nhle/taskboard/tests/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// startServer runs an in-memory API server and points the client config
// at it through the environment.
func startServer(t *testing.T) {
	t.Helper()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions, err := session.NewManager([]byte("cli-test-key"), time.Hour, false)
	require.NoError(t, err)

	srv := server.New(server.Config{
		Addr:          "127.0.0.1:0",
		AllowedOrigin: "http://localhost:3000",
		Logger:        quiet,
	}, testutil.NewTestStore(t), csrf.NewGuard(csrf.NewMemoryStore(time.Hour), csrf.WithLogger(quiet)), sessions)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	t.Setenv("TASKBOARD_CLIENT_BASE_URL", ts.URL)
	t.Setenv("TASKBOARD_LOG_LEVEL", "error")
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestTasksLifecycle(t *testing.T) {
	startServer(t)

	out, err := execute(t, "tasks", "add", "Buy milk", "--description", "2 liters")
	require.NoError(t, err)
	assert.Contains(t, out, "1\tpending")
	assert.Contains(t, out, "Buy milk")

	_, err = execute(t, "tasks", "add", "Walk dog", "--status", "in_progress")
	require.NoError(t, err)

	out, err = execute(t, "tasks", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Walk dog")
	assert.Contains(t, lines[1], "Buy milk")

	out, err = execute(t, "tasks", "list", "--status", "in_progress")
	require.NoError(t, err)
	assert.NotContains(t, out, "Buy milk")
	assert.Contains(t, out, "Walk dog")

	out, err = execute(t, "tasks", "update", "1", "--status", "completed")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")

	out, err = execute(t, "tasks", "rm", "1")
	require.NoError(t, err)
	assert.Equal(t, "deleted 1\n", out)

	_, err = execute(t, "tasks", "rm", "1")
	assert.Error(t, err)
}

func TestTasksValidation(t *testing.T) {
	startServer(t)

	_, err := execute(t, "tasks", "add", "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title is required")

	_, err = execute(t, "tasks", "update", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to update")

	_, err = execute(t, "tasks", "rm", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid task id")

	_, err = execute(t, "tasks", "list", "--status", "done")
	require.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", path, "config", "init"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), path)

	_, err := os.Stat(path)
	require.NoError(t, err)

	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultAppConfig().Server.Addr, cfg.Server.Addr)

	cmd = NewRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", path, "config", "init"})
	assert.Error(t, cmd.Execute())
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "taskboard dev\n", out)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     model.LogConfig
		wantErr bool
		check   func(t *testing.T, out string)
	}{
		{
			name: "text",
			cfg:  model.LogConfig{Level: "info", Format: "text"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "msg=hello")
			},
		},
		{
			name: "json",
			cfg:  model.LogConfig{Level: "info", Format: "json"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, `"msg":"hello"`)
			},
		},
		{
			name: "level filters",
			cfg:  model.LogConfig{Level: "error", Format: "text"},
			check: func(t *testing.T, out string) {
				assert.Empty(t, out)
			},
		},
		{name: "bad level", cfg: model.LogConfig{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: model.LogConfig{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(&buf, tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Info("hello")
			tt.check(t, buf.String())
		})
	}
}

func TestNewTokenStoreDefaultsToMemory(t *testing.T) {
	st, closeFn, err := newTokenStore(t.Context(), model.SessionConfig{Store: model.SessionStoreMemory, TTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &csrf.MemoryStore{}, st)
	assert.NoError(t, closeFn(t.Context()))
}
