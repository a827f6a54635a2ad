// Package session holds the state of one roast: which plate is selected,
// where the roast is in its lifecycle and what the model said.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/menta2k/plate-roaster/internal/log"
	"github.com/menta2k/plate-roaster/pkg/handle"
	"github.com/menta2k/plate-roaster/pkg/types"
)

// Phase is the session lifecycle state
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseReady      Phase = "ready"
	PhaseProcessing Phase = "processing"
	PhaseComplete   Phase = "complete"
	PhaseError      Phase = "error"
)

var (
	// ErrInvalidTransition is returned when an action is not allowed in the current phase.
	ErrInvalidTransition = errors.New("session: invalid transition")
	// ErrNoPlate is returned when processing starts without a selected plate.
	ErrNoPlate = errors.New("session: no plate selected")
	// ErrStale is returned when a roast finishes after its session was
	// reset or given a new plate.
	ErrStale = fmt.Errorf("%w: roast is stale", ErrInvalidTransition)
)

// State is a snapshot of the session
type State struct {
	Phase Phase
	Plate *types.Photo
	Roast *types.Roast
	Error string
}

// Ticket identifies one processing run. Complete and Fail only accept the
// ticket of the run that is currently in flight.
type Ticket struct {
	Gen   uint64
	Plate types.Photo
}

// Session is the explicitly owned state container for a roast. It owns the
// preview handle of the current plate and revokes it whenever the plate is
// replaced or the session is reset.
type Session struct {
	handles *handle.Store

	mu    sync.Mutex
	phase Phase
	plate *types.Photo
	roast *types.Roast
	err   string
	gen   uint64
}

// New creates an idle session releasing handles into store
func New(store *handle.Store) *Session {
	return &Session{handles: store, phase: PhaseIdle}
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{Phase: s.phase, Error: s.err}
	if s.plate != nil {
		p := *s.plate
		st.Plate = &p
	}
	if s.roast != nil {
		r := *s.roast
		st.Roast = &r
	}
	return st
}

// Phase returns the current phase
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SelectPlate makes photo the active plate and moves to ready. Any previous
// plate's handle is revoked. Not allowed while a roast is in flight.
func (s *Session) SelectPlate(photo types.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseProcessing {
		return s.invalid("select plate")
	}

	if s.plate != nil && s.plate.Handle != photo.Handle {
		s.release(s.plate.Handle)
	}

	s.plate = &photo
	s.roast = nil
	s.err = ""
	s.phase = PhaseReady
	s.gen++
	return nil
}

// StartProcessing moves a ready (or failed) session to processing and
// returns the ticket for this run along with a copy of the plate. The
// selected plate is kept so a failed roast can be retried.
func (s *Session) StartProcessing() (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.plate == nil {
		return Ticket{}, ErrNoPlate
	}
	if s.phase != PhaseReady && s.phase != PhaseError {
		return Ticket{}, s.invalid("start processing")
	}

	s.gen++
	s.phase = PhaseProcessing
	s.err = ""
	return Ticket{Gen: s.gen, Plate: *s.plate}, nil
}

// Complete records the roast and finishes the run identified by t
func (s *Session) Complete(t Ticket, r types.Roast) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTicket(t, "complete"); err != nil {
		return err
	}

	s.roast = &r
	s.phase = PhaseComplete
	s.err = ""
	return nil
}

// Fail records a user-visible error for the run identified by t
func (s *Session) Fail(t Ticket, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTicket(t, "fail"); err != nil {
		return err
	}

	s.phase = PhaseError
	s.err = message
	return nil
}

func (s *Session) checkTicket(t Ticket, action string) error {
	if t.Gen != s.gen {
		log.Printf("[session] dropped stale %s (run %d, current %d)", action, t.Gen, s.gen)
		return ErrStale
	}
	if s.phase != PhaseProcessing {
		return s.invalid(action)
	}
	return nil
}

// Reset returns to idle and releases the current plate
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.plate != nil {
		s.release(s.plate.Handle)
	}
	s.phase = PhaseIdle
	s.plate = nil
	s.roast = nil
	s.err = ""
	s.gen++
}

func (s *Session) release(h string) {
	if s.handles != nil && h != "" {
		s.handles.Revoke(h)
	}
}

func (s *Session) invalid(action string) error {
	log.Printf("[session] rejected %s in phase %s", action, s.phase)
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, s.phase)
}
