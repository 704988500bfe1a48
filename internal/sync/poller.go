package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskboard/internal/model"
)

// State represents the current state of the background refresh.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

// Status describes the most recent refresh.
type Status struct {
	State    State
	LastSync time.Time
	Error    error
}

// ResultMsg is a tea.Msg sent when a refresh completes.
type ResultMsg struct {
	Tasks []model.Task
	Error error

	// NewTaskCount is the number of tasks that were not present in the
	// previous successful refresh. It is zero on the first refresh.
	NewTaskCount int
}

// Lister fetches the full task list.
type Lister interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
}

// DefaultFetchTimeout bounds a single refresh.
const DefaultFetchTimeout = 30 * time.Second

// Poller periodically re-fetches the task list so changes made by other
// clients show up without a manual reload.
type Poller struct {
	lister   Lister
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	resultCh  chan ResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      gosync.Mutex
	running bool
	status  Status
	known   map[int64]struct{}
}

// New creates a Poller that refreshes every interval. A non-positive
// interval means one minute; a non-positive timeout uses
// DefaultFetchTimeout.
func New(l Lister, interval, timeout time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Poller{
		lister:    l,
		interval:  interval,
		timeout:   timeout,
		now:       time.Now,
		resultCh:  make(chan ResultMsg, 4),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the polling goroutine and returns a command that waits
// for the first result. Calling Start on a running poller returns nil.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.WaitForNextResult()
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Refresh asks for an immediate refresh without waiting for the ticker.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A refresh is already pending.
	}
}

// Status returns the state of the most recent refresh.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.fetch()
		case <-p.triggerCh:
			p.fetch()
		}
	}
}

// fetch performs a single refresh and publishes the result.
func (p *Poller) fetch() {
	p.setStatus(StateRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	tasks, err := p.lister.ListTasks(ctx)
	if err != nil {
		p.setStatus(StateError, err)
		p.sendResult(ResultMsg{Error: err})
		return
	}

	newCount := p.track(tasks)
	p.setStatus(StateIdle, nil)
	p.sendResult(ResultMsg{Tasks: tasks, NewTaskCount: newCount})
}

// track records the IDs in tasks and returns how many were not seen in
// the previous refresh.
func (p *Poller) track(tasks []model.Task) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[int64]struct{}, len(tasks))
	count := 0
	for _, t := range tasks {
		next[t.ID] = struct{}{}
		if p.known == nil {
			continue
		}
		if _, ok := p.known[t.ID]; !ok {
			count++
		}
	}
	p.known = next
	return count
}

func (p *Poller) setStatus(state State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == StateIdle {
		p.status.LastSync = p.now()
	}
}

// sendResult sends a ResultMsg without blocking.
func (p *Poller) sendResult(msg ResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next refresh
// result. Call it again after handling each ResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case result := <-p.resultCh:
			return result
		case <-p.stopCh:
			return nil
		}
	}
}
