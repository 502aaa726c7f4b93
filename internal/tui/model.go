// Package tui renders the caller's running timer in the terminal and lets
// them stop it.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	taskflowsdk "taskflow/sdk/go"
)

// Source is the part of the API the watcher needs.
type Source interface {
	Ongoing(ctx context.Context) (*taskflowsdk.TimeLog, error)
	StopTimer(ctx context.Context, logID string, description *string) (taskflowsdk.StopResult, error)
}

type tickMsg time.Time

type pollMsg struct{}

type ongoingMsg struct {
	log *taskflowsdk.TimeLog
	err error
}

type stoppedMsg struct {
	res taskflowsdk.StopResult
	err error
}

type Model struct {
	src      Source
	poll     time.Duration
	timeout  time.Duration
	now      time.Time
	loaded   bool
	stopping bool

	Running  *taskflowsdk.TimeLog
	LastStop *taskflowsdk.StopResult
	Err      error
}

// New returns a model that refreshes from src every poll interval.
func New(src Source, poll time.Duration) *Model {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Model{src: src, poll: poll, timeout: 10 * time.Second, now: time.Now()}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) schedulePoll() tea.Cmd {
	return tea.Tick(m.poll, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m *Model) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		l, err := m.src.Ongoing(ctx)
		return ongoingMsg{log: l, err: err}
	}
}

func (m *Model) stop(logID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		res, err := m.src.StopTimer(ctx, logID, nil)
		return stoppedMsg{res: res, err: err}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()
	case pollMsg:
		return m, m.fetch()
	case ongoingMsg:
		m.loaded = true
		m.Err = msg.err
		if msg.err == nil {
			m.Running = msg.log
		}
		return m, m.schedulePoll()
	case stoppedMsg:
		m.stopping = false
		m.Err = msg.err
		if msg.err == nil {
			m.Running = nil
			m.LastStop = &msg.res
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.fetch()
		case "s":
			if m.Running == nil || m.stopping {
				return m, nil
			}
			m.stopping = true
			return m, m.stop(m.Running.ID)
		}
	}
	return m, nil
}

// Elapsed is the running log's age at the last tick.
func (m *Model) Elapsed() time.Duration {
	if m.Running == nil {
		return 0
	}
	start, err := m.Running.Started()
	if err != nil || m.now.Before(start) {
		return 0
	}
	return m.now.Sub(start)
}
