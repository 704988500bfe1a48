package csrf

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueOrGetTokenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewMemoryStore(0))

	first, err := g.IssueOrGetToken(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, first, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", first)

	second, err := g.IssueOrGetToken(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := g.IssueOrGetToken(ctx, "s2")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewMemoryStore(0))

	assert.False(t, g.Validate(ctx, "s1", "anything"), "no token issued yet")

	tok, err := g.IssueOrGetToken(ctx, "s1")
	require.NoError(t, err)

	assert.True(t, g.Validate(ctx, "s1", tok))
	assert.False(t, g.Validate(ctx, "s1", ""))
	assert.False(t, g.Validate(ctx, "s1", tok[:63]+"x"))
	assert.False(t, g.Validate(ctx, "s2", tok), "token is bound to its session")
}

func TestRequestPasses(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewMemoryStore(0))
	tok, err := g.IssueOrGetToken(ctx, "s1")
	require.NoError(t, err)

	tests := []struct {
		method    string
		presented string
		want      bool
	}{
		{http.MethodGet, "", true},
		{http.MethodPost, "", false},
		{http.MethodPost, tok, true},
		{http.MethodPut, "wrong", false},
		{http.MethodPut, tok, true},
		{http.MethodDelete, "", false},
		{http.MethodDelete, tok, true},
	}

	for _, tc := range tests {
		t.Run(tc.method+"/"+tc.presented, func(t *testing.T) {
			assert.Equal(t, tc.want, g.RequestPasses(ctx, tc.method, "s1", tc.presented))
		})
	}
}

type failingStore struct{}

func (failingStore) Token(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store down")
}

func (failingStore) SetTokenIfAbsent(context.Context, string, string) (string, error) {
	return "", errors.New("store down")
}

func TestStoreFaults(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(failingStore{})

	_, err := g.IssueOrGetToken(ctx, "s1")
	assert.Error(t, err)
	assert.False(t, g.Validate(ctx, "s1", "tok"))
	assert.True(t, g.RequestPasses(ctx, http.MethodGet, "s1", ""))
}

func TestRandomFailure(t *testing.T) {
	g := NewGuard(NewMemoryStore(0))
	g.random = func([]byte) (int, error) { return 0, errors.New("no entropy") }

	_, err := g.IssueOrGetToken(context.Background(), "s1")
	assert.Error(t, err)
}

func TestConcurrentIssueAgreesOnOneToken(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewMemoryStore(0))

	const n = 16
	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := g.IssueOrGetToken(ctx, "shared")
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	for _, tok := range tokens {
		assert.Equal(t, tokens[0], tok)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, err := m.SetTokenIfAbsent(ctx, "s1", "tok")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	now = now.Add(2 * time.Minute)
	_, ok, err := m.Token(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())

	live, err := m.SetTokenIfAbsent(ctx, "s1", "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", live)
}

func TestMemoryStoreSweepsAbandonedSessions(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		_, err := m.SetTokenIfAbsent(ctx, fmt.Sprintf("s%d", i), "tok")
		require.NoError(t, err)
	}
	assert.Len(t, m.entries, 50)

	now = now.Add(30 * time.Second)
	_, err := m.SetTokenIfAbsent(ctx, "mid", "tok")
	require.NoError(t, err)
	assert.Len(t, m.entries, 51)

	now = now.Add(2 * time.Minute)
	_, err = m.SetTokenIfAbsent(ctx, "late", "tok")
	require.NoError(t, err)
	assert.Len(t, m.entries, 1)

	tok, ok, err := m.Token(ctx, "late")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", tok)
}
