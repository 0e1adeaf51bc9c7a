// Package session implements SessionState: the per-link state a
// superframe assembler/parser pair owns — callsign, optional signing/
// encryption key material, recipient filtering, and the RX sync state
// machine (spec §4.5, §4.6, §5). Grounded on the teacher's mutex-guarded
// plain-struct-with-lifecycle shape (pkg/peer/peer.go): an enum state with
// a String() method, RWMutex-guarded getters/setters, no channels.
package session

import (
	"crypto/ecdsa"
	"sync"

	"github.com/sleipnir-radio/sleipnir/internal/crypto"
)

// Lifecycle is the coarse session lifecycle (spec §3).
type Lifecycle int

const (
	LifecycleInit Lifecycle = iota
	LifecycleRunning
	LifecycleTeardown
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleInit:
		return "init"
	case LifecycleRunning:
		return "running"
	case LifecycleTeardown:
		return "teardown"
	default:
		return "unknown"
	}
}

// SyncState is the RX acquisition state machine (spec §4.6).
type SyncState int

const (
	SyncSearching SyncState = iota
	SyncSynced
	SyncLost
)

func (s SyncState) String() string {
	switch s {
	case SyncSearching:
		return "searching"
	case SyncSynced:
		return "synced"
	case SyncLost:
		return "lost"
	default:
		return "unknown"
	}
}

const (
	// counterMismatchLimit and macFailureLimit are the consecutive-failure
	// thresholds that drop a synced receiver back to searching (spec §4.6).
	counterMismatchLimit = 3
	macFailureLimit      = 5
)

// RecipientFilter reports whether a received frame's sender callsign
// should be accepted by this session. A nil filter accepts everyone.
type RecipientFilter func(callsign string) bool

// State is the mutable per-link session state. Zero value is not useful;
// construct with New.
type State struct {
	Callsign string

	SigningKey *ecdsa.PrivateKey
	MacKey     *[crypto.KeySize]byte
	NonceBase  *[crypto.NonceSize]byte
	Recipients RecipientFilter

	mu                    sync.RWMutex
	lifecycle             Lifecycle
	sync                  SyncState
	lastCounter           uint32
	haveLastCounter       bool
	counterMismatchStreak int
	macFailureStreak      int
}

// New creates a session in the init lifecycle state, searching for sync.
func New(callsign string) *State {
	return &State{
		Callsign:  callsign,
		lifecycle: LifecycleInit,
		sync:      SyncSearching,
	}
}

// Lifecycle returns the current lifecycle phase.
func (s *State) Lifecycle() Lifecycle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lifecycle
}

// SetLifecycle transitions the session's lifecycle phase.
func (s *State) SetLifecycle(l Lifecycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lifecycle = l
}

// SyncState returns the current RX acquisition state.
func (s *State) SyncState() SyncState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sync
}

// LastCounter returns the last accepted superframe counter and whether one
// has been observed yet.
func (s *State) LastCounter() (counter uint32, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCounter, s.haveLastCounter
}

// AcquireSync transitions to synced and seeds the counter, clearing both
// failure streaks (spec §4.6 acquisition).
func (s *State) AcquireSync(counter uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sync = SyncSynced
	s.lastCounter = counter
	s.haveLastCounter = true
	s.counterMismatchStreak = 0
	s.macFailureStreak = 0
}

// RecordCounterMatch accepts a new counter value while synced, resetting
// the mismatch streak.
func (s *State) RecordCounterMatch(counter uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCounter = counter
	s.haveLastCounter = true
	s.counterMismatchStreak = 0
}

// RecordCounterMismatch increments the consecutive-mismatch streak and, on
// reaching the threshold, drops the session to searching (spec §4.6:
// "three consecutive counter mismatches"). Returns true iff sync was lost
// by this call.
func (s *State) RecordCounterMismatch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counterMismatchStreak++
	if s.counterMismatchStreak >= counterMismatchLimit {
		s.loseSyncLocked()
		return true
	}
	return false
}

// RecordMacSuccess resets the consecutive-MAC-failure streak.
func (s *State) RecordMacSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.macFailureStreak = 0
}

// RecordMacFailure increments the consecutive-MAC-failure streak and, on
// reaching the threshold, drops the session to searching (spec §4.6:
// "five consecutive MAC failures"). Returns true iff sync was lost by this
// call.
func (s *State) RecordMacFailure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.macFailureStreak++
	if s.macFailureStreak >= macFailureLimit {
		s.loseSyncLocked()
		return true
	}
	return false
}

// loseSyncLocked fires the synced -> lost -> searching transition (spec
// §4.6). The state machine always comes to rest in searching so
// acquisition can restart; callers that need to report the momentary lost
// state use the bool returned by RecordCounterMismatch/RecordMacFailure to
// emit their own status event.
func (s *State) loseSyncLocked() {
	s.sync = SyncSearching
	s.haveLastCounter = false
	s.counterMismatchStreak = 0
	s.macFailureStreak = 0
}

// Accepts reports whether callsign passes this session's recipient filter.
func (s *State) Accepts(callsign string) bool {
	if s.Recipients == nil {
		return true
	}
	return s.Recipients(callsign)
}
