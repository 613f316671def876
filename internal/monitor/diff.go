package monitor

import (
	"sort"
	"time"
)

// Alert associates a target with the chat message currently showing it
type Alert struct {
	MemberID  int64
	MessageID string
	Class     Class
}

// Entry is everything needed to render one target's alert
type Entry struct {
	Target    Target
	Class     Class
	Remaining time.Duration
	Claim     *Claim
}

// OpKind is the kind of chat operation a reconciliation step needs
type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	default:
		return "delete"
	}
}

// Op is one planned chat operation
type Op struct {
	Kind      OpKind
	MemberID  int64
	MessageID string // set for update and delete
	Entry     Entry  // set for create and update
}

// Evaluate classifies every target and returns the showable ones keyed by id
func Evaluate(targets []Target, now time.Time, p Policy, claims *Claims) map[int64]Entry {
	showable := make(map[int64]Entry)
	for _, t := range targets {
		class, remaining := Classify(t, now, p)
		if class == ClassHidden {
			continue
		}
		e := Entry{Target: t, Class: class, Remaining: remaining}
		if claims != nil {
			if c, ok := claims.Get(t.ID); ok {
				e.Claim = &c
			}
		}
		showable[t.ID] = e
	}
	return showable
}

// Diff plans the operations that bring tracked in line with showable.
// Every still-showable alert is updated since its countdown moves each cycle.
// Ops are ordered by member id.
func Diff(tracked map[int64]Alert, showable map[int64]Entry) []Op {
	var ops []Op

	for id, alert := range tracked {
		entry, ok := showable[id]
		if !ok {
			ops = append(ops, Op{Kind: OpDelete, MemberID: id, MessageID: alert.MessageID})
			continue
		}
		ops = append(ops, Op{Kind: OpUpdate, MemberID: id, MessageID: alert.MessageID, Entry: entry})
	}

	for id, entry := range showable {
		if _, ok := tracked[id]; ok {
			continue
		}
		ops = append(ops, Op{Kind: OpCreate, MemberID: id, Entry: entry})
	}

	sort.Slice(ops, func(i, j int) bool {
		return ops[i].MemberID < ops[j].MemberID
	})
	return ops
}
