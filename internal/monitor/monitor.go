package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flor3z/faction-bot/internal/poller"
	"github.com/flor3z/faction-bot/internal/torn"
	"golang.org/x/sync/errgroup"
)

// MessageKind says which part of the alert list a message is
type MessageKind int

const (
	KindHeader MessageKind = iota
	KindAlert
	KindFooter
)

// Message is a chat message before it is rendered for the platform
type Message struct {
	Kind      MessageKind
	FactionID int64
	Entry     Entry // KindAlert only
	Count     int   // KindHeader only
	Policy    Policy
	UpdatedAt time.Time
}

// Messenger performs chat operations for the monitor
type Messenger interface {
	Send(ctx context.Context, msg *Message) (string, error)
	Edit(ctx context.Context, messageID string, msg *Message) error
	Delete(ctx context.Context, messageID string) error
}

// Roster fetches the current members of a faction
type Roster interface {
	FactionMembers(ctx context.Context, factionID int64) ([]torn.Member, error)
}

// Config configures a Monitor
type Config struct {
	FactionID   int64
	Interval    time.Duration
	Policy      Policy
	Concurrency int
	Now         func() time.Time
}

// Status is a point-in-time summary of the monitor
type Status struct {
	Running   bool
	FactionID int64
	Policy    Policy
	Tracked   int
	InWindow  int
	Available int
	Claims    int
	Cycles    int
	LastCycle time.Time
	LastError string
}

// Monitor keeps a channel's alert messages in sync with an opposing roster
type Monitor struct {
	roster    Roster
	messenger Messenger
	cfg       Config
	claims    *Claims
	poller    *poller.Poller

	// mu guards everything below; cycles run one at a time but status and
	// claims are read from command handlers
	mu        sync.Mutex
	alerts    map[int64]Alert
	headerID  string
	footerID  string
	cycles    int
	lastCycle time.Time
	lastErr   error
}

// New creates a Monitor
func New(roster Roster, messenger Messenger, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Monitor{
		roster:    roster,
		messenger: messenger,
		cfg:       cfg,
		claims:    NewClaims(),
		alerts:    make(map[int64]Alert),
	}
	m.poller = poller.New(fmt.Sprintf("monitor-%d", cfg.FactionID), cfg.Interval, m.Cycle)
	return m
}

// Claims exposes the monitor's claim set
func (m *Monitor) Claims() *Claims {
	return m.claims
}

// Start begins polling in the background
func (m *Monitor) Start(ctx context.Context) {
	m.poller.Start(ctx)
}

// Stop halts polling, then deletes every live message and clears all
// tracking. Delete failures are logged and ignored.
func (m *Monitor) Stop(ctx context.Context) {
	m.poller.Stop()

	m.mu.Lock()
	ids := make([]string, 0, len(m.alerts)+2)
	for _, a := range m.alerts {
		ids = append(ids, a.MessageID)
	}
	if m.headerID != "" {
		ids = append(ids, m.headerID)
	}
	if m.footerID != "" {
		ids = append(ids, m.footerID)
	}
	m.alerts = make(map[int64]Alert)
	m.headerID = ""
	m.footerID = ""
	m.mu.Unlock()

	m.claims.Clear()

	g := new(errgroup.Group)
	g.SetLimit(m.cfg.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := m.messenger.Delete(ctx, id); err != nil {
				slog.Warn("Failed to delete alert message on stop", "message", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Monitor stopped", "faction", m.cfg.FactionID, "deleted", len(ids))
}

// Status returns a summary of the monitor's state
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		Running:   m.poller.Running(),
		FactionID: m.cfg.FactionID,
		Policy:    m.cfg.Policy,
		Tracked:   len(m.alerts),
		Claims:    m.claims.Len(),
		Cycles:    m.cycles,
		LastCycle: m.lastCycle,
	}
	for _, a := range m.alerts {
		switch a.Class {
		case ClassInWindow:
			s.InWindow++
		case ClassAvailable:
			s.Available++
		}
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

// Tracked returns a copy of the tracked alerts
func (m *Monitor) Tracked() map[int64]Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[int64]Alert, len(m.alerts))
	for id, a := range m.alerts {
		out[id] = a
	}
	return out
}

type opResult struct {
	op        Op
	messageID string
	err       error
}

// Cycle fetches the roster once and reconciles the alert messages against it.
// A roster failure leaves every tracked alert untouched.
func (m *Monitor) Cycle(ctx context.Context) error {
	members, err := m.roster.FactionMembers(ctx, m.cfg.FactionID)
	if err != nil {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		slog.Error("Failed to fetch roster", "faction", m.cfg.FactionID, "error", err)
		return fmt.Errorf("fetch roster: %w", err)
	}

	now := m.cfg.Now()
	targets := make([]Target, 0, len(members))
	for _, member := range members {
		targets = append(targets, TargetFromMember(member))
	}
	showable := Evaluate(targets, now, m.cfg.Policy, m.claims)

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(showable) > 0 && m.headerID == "" {
		id, err := m.messenger.Send(ctx, m.header(len(showable), now))
		if err != nil {
			slog.Warn("Failed to send header", "error", err)
		} else {
			m.headerID = id
			// Alerts posted before the new header sit above it
			if len(m.alerts) > 0 {
				m.clearListMessages(ctx)
			}
		}
	}

	ops := Diff(m.alerts, showable)
	results := m.execute(ctx, ops)

	created := 0
	for _, r := range results {
		switch r.op.Kind {
		case OpCreate:
			if r.err != nil {
				slog.Warn("Failed to send alert", "member", r.op.MemberID, "error", r.err)
				continue
			}
			m.alerts[r.op.MemberID] = Alert{MemberID: r.op.MemberID, MessageID: r.messageID, Class: r.op.Entry.Class}
			created++
		case OpUpdate:
			if r.err != nil {
				// The message no longer reliably shows the target; recreate next cycle
				slog.Warn("Failed to edit alert, dropping it", "member", r.op.MemberID, "error", r.err)
				delete(m.alerts, r.op.MemberID)
				continue
			}
			a := m.alerts[r.op.MemberID]
			a.Class = r.op.Entry.Class
			m.alerts[r.op.MemberID] = a
		case OpDelete:
			if r.err != nil {
				slog.Warn("Failed to delete alert", "member", r.op.MemberID, "error", r.err)
			}
			delete(m.alerts, r.op.MemberID)
			m.claims.Release(r.op.MemberID)
		}
	}

	m.syncBrackets(ctx, created, now)

	m.cycles++
	m.lastCycle = now
	m.lastErr = nil

	slog.Debug("Monitor cycle complete",
		"faction", m.cfg.FactionID,
		"roster", len(members),
		"showable", len(showable),
		"tracked", len(m.alerts),
		"ops", len(ops),
	)
	return nil
}

// execute runs every op concurrently. One failure never cancels the others.
func (m *Monitor) execute(ctx context.Context, ops []Op) []opResult {
	results := make([]opResult, len(ops))

	g := new(errgroup.Group)
	g.SetLimit(m.cfg.Concurrency)

	for i, op := range ops {
		results[i].op = op
		g.Go(func() error {
			switch op.Kind {
			case OpCreate:
				results[i].messageID, results[i].err = m.messenger.Send(ctx, m.alert(op.Entry))
			case OpUpdate:
				results[i].err = m.messenger.Edit(ctx, op.MessageID, m.alert(op.Entry))
				if results[i].err != nil {
					// Best effort so a recreated alert does not duplicate a live one
					_ = m.messenger.Delete(ctx, op.MessageID)
				}
			case OpDelete:
				results[i].err = m.messenger.Delete(ctx, op.MessageID)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// clearListMessages deletes every alert and the footer so the list can be
// re-posted in order. Claims are kept.
func (m *Monitor) clearListMessages(ctx context.Context) {
	ids := make([]string, 0, len(m.alerts)+1)
	for _, a := range m.alerts {
		ids = append(ids, a.MessageID)
	}
	if m.footerID != "" {
		ids = append(ids, m.footerID)
	}

	g := new(errgroup.Group)
	g.SetLimit(m.cfg.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := m.messenger.Delete(ctx, id); err != nil {
				slog.Warn("Failed to delete message for re-post", "message", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	m.alerts = make(map[int64]Alert)
	m.footerID = ""
	slog.Info("Re-posting alert list under a new header", "faction", m.cfg.FactionID, "deleted", len(ids))
}

// syncBrackets keeps the header and footer around a non-empty list and
// removes them once the list is empty
func (m *Monitor) syncBrackets(ctx context.Context, created int, now time.Time) {
	if len(m.alerts) == 0 {
		for _, id := range []string{m.headerID, m.footerID} {
			if id == "" {
				continue
			}
			if err := m.messenger.Delete(ctx, id); err != nil {
				slog.Warn("Failed to delete bracket message", "message", id, "error", err)
			}
		}
		m.headerID = ""
		m.footerID = ""
		return
	}

	if m.headerID != "" {
		if err := m.messenger.Edit(ctx, m.headerID, m.header(len(m.alerts), now)); err != nil {
			slog.Warn("Failed to edit header", "error", err)
			_ = m.messenger.Delete(ctx, m.headerID)
			m.headerID = ""
		}
	}

	// New alerts land below the old footer, so move it back to the end
	if m.footerID != "" && created > 0 {
		if err := m.messenger.Delete(ctx, m.footerID); err != nil {
			slog.Warn("Failed to delete footer", "error", err)
		}
		m.footerID = ""
	}

	footer := &Message{Kind: KindFooter, FactionID: m.cfg.FactionID, Policy: m.cfg.Policy, UpdatedAt: now}
	if m.footerID == "" {
		id, err := m.messenger.Send(ctx, footer)
		if err != nil {
			slog.Warn("Failed to send footer", "error", err)
			return
		}
		m.footerID = id
		return
	}

	if err := m.messenger.Edit(ctx, m.footerID, footer); err != nil {
		slog.Warn("Failed to edit footer", "error", err)
		_ = m.messenger.Delete(ctx, m.footerID)
		m.footerID = ""
	}
}

func (m *Monitor) header(count int, now time.Time) *Message {
	return &Message{Kind: KindHeader, FactionID: m.cfg.FactionID, Count: count, Policy: m.cfg.Policy, UpdatedAt: now}
}

func (m *Monitor) alert(e Entry) *Message {
	return &Message{Kind: KindAlert, FactionID: m.cfg.FactionID, Entry: e, Policy: m.cfg.Policy, UpdatedAt: m.cfg.Now()}
}
