package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskboard/internal/model"
)

type stubLister struct {
	mu    gosync.Mutex
	tasks []model.Task
	err   error
	calls int
}

func (s *stubLister) ListTasks(context.Context) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return append([]model.Task{}, s.tasks...), s.err
}

func (s *stubLister) set(tasks []model.Task, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = tasks
	s.err = err
}

func TestFetchCountsNewTasks(t *testing.T) {
	l := &stubLister{tasks: []model.Task{{ID: 1}}}
	p := New(l, time.Hour, time.Second)

	p.fetch()
	first := <-p.resultCh
	require.NoError(t, first.Error)
	assert.Len(t, first.Tasks, 1)
	assert.Zero(t, first.NewTaskCount)

	l.set([]model.Task{{ID: 3}, {ID: 2}, {ID: 1}}, nil)
	p.fetch()
	second := <-p.resultCh
	assert.Equal(t, 2, second.NewTaskCount)
	assert.Equal(t, StateIdle, p.Status().State)
	assert.False(t, p.Status().LastSync.IsZero())
}

func TestFetchErrorKeepsKnownIDs(t *testing.T) {
	l := &stubLister{tasks: []model.Task{{ID: 1}}}
	p := New(l, time.Hour, time.Second)
	p.fetch()
	<-p.resultCh

	l.set(nil, errors.New("unreachable"))
	p.fetch()
	failed := <-p.resultCh
	assert.Error(t, failed.Error)
	assert.Equal(t, StateError, p.Status().State)

	l.set([]model.Task{{ID: 1}}, nil)
	p.fetch()
	assert.Zero(t, (<-p.resultCh).NewTaskCount)
}

func TestRefreshTriggersFetch(t *testing.T) {
	l := &stubLister{tasks: []model.Task{{ID: 1}}}
	p := New(l, time.Hour, time.Second)

	wait := p.Start()
	require.NotNil(t, wait)
	assert.Nil(t, p.Start())
	defer p.Stop()

	p.Refresh()
	msg, ok := wait().(ResultMsg)
	require.True(t, ok)
	assert.Len(t, msg.Tasks, 1)
}

func TestStopUnblocksWaiters(t *testing.T) {
	p := New(&stubLister{}, time.Hour, time.Second)
	wait := p.Start()
	p.Stop()
	p.Stop()

	assert.Nil(t, wait())
}
