// Package conversation tracks each user's progress through the
// report-authoring dialogue. State is ephemeral: it lives in memory,
// keyed by user id, and does not survive a restart.
package conversation

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// MaxCustomReasonLen is the hard cap, in runes, on a user-typed reason.
// Longer input is rejected and re-prompted, never truncated.
const MaxCustomReasonLen = 16

var (
	// ErrReasonTooLong is returned when a custom reason exceeds
	// MaxCustomReasonLen; the conversation state is left unchanged.
	ErrReasonTooLong = errors.New("custom reason exceeds length bound")
	// ErrBadTarget is returned when target text is neither a handle nor a
	// numeric user id; the conversation state is left unchanged.
	ErrBadTarget = errors.New("target is neither a handle nor a numeric id")
)

// State is a user's position in the report-authoring dialogue.
type State int

const (
	// Idle means no report is being authored.
	Idle State = iota
	// AwaitingCustomReason means the user chose "other" and owes a
	// free-text reason.
	AwaitingCustomReason
	// AwaitingTarget means the reason is recorded and the user owes a
	// target (reply, handle, or numeric id).
	AwaitingTarget
)

// Target identifies the reported user: a resolved numeric id, or an
// unresolved handle. Exactly one field is set.
type Target struct {
	ID       int64
	Username string
}

// ParseTarget resolves free text into a Target. Text starting with the
// handle sigil resolves to a handle; all-digit text resolves to a
// numeric id. Anything else is ErrBadTarget.
func ParseTarget(text string) (Target, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "@") && len(text) > 1 {
		return Target{Username: text[1:]}, nil
	}
	if allDigits(text) {
		if id, err := strconv.ParseInt(text, 10, 64); err == nil && id > 0 {
			return Target{ID: id}, nil
		}
	}
	return Target{}, ErrBadTarget
}

// allDigits rejects anything ParseInt would tolerate beyond plain
// digits, such as a sign prefix.
func allDigits(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type flow struct {
	state  State
	reason string
}

// Manager owns all conversation state, keyed by user id. Entry points
// overwrite any previous flow for the user; Reset and Complete clear it.
type Manager struct {
	mu    sync.Mutex
	flows map[int64]*flow
}

func NewManager() *Manager {
	return &Manager{flows: make(map[int64]*flow)}
}

// StartPreset records a preset reason and moves the user to
// AwaitingTarget.
func (m *Manager) StartPreset(userID int64, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows[userID] = &flow{state: AwaitingTarget, reason: reason}
}

// StartCustom moves the user to AwaitingCustomReason.
func (m *Manager) StartCustom(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows[userID] = &flow{state: AwaitingCustomReason}
}

// SetCustomReason records a user-typed reason and advances to
// AwaitingTarget. Over-long input returns ErrReasonTooLong and leaves
// the state in AwaitingCustomReason.
func (m *Manager) SetCustomReason(userID int64, reason string) error {
	if utf8.RuneCountInString(reason) > MaxCustomReasonLen {
		return ErrReasonTooLong
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows[userID] = &flow{state: AwaitingTarget, reason: reason}
	return nil
}

// StateOf returns the user's current state.
func (m *Manager) StateOf(userID int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.flows[userID]; ok {
		return f.state
	}
	return Idle
}

// Complete consumes the recorded reason and returns the user to Idle.
// It reports false if the user was not awaiting a target.
func (m *Manager) Complete(userID int64) (reason string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, found := m.flows[userID]
	if !found || f.state != AwaitingTarget {
		return "", false
	}
	delete(m.flows, userID)
	return f.reason, true
}

// Reset unconditionally discards any in-progress flow for the user.
func (m *Manager) Reset(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flows, userID)
}
