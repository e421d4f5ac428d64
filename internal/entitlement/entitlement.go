// Package entitlement decides whether a user may start a metered analysis and
// how a successful analysis is debited.
package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// UnlimitedTrials marks a trial count that is never exhausted nor decremented.
const UnlimitedTrials = -1

// DefaultTrials is the number of free analyses a new profile starts with.
const DefaultTrials = 3

var (
	// ErrExhausted is returned when an unpaid user has no trials left.
	ErrExhausted = errors.New("entitlement exhausted")
	// ErrProfileNotFound is returned when no profile exists for a user.
	ErrProfileNotFound = errors.New("profile not found")
)

// State is a user's metering state.
type State struct {
	TrialCount int
	HasPaid    bool
}

// Unlimited reports whether the trial count is the unbounded sentinel.
func (s State) Unlimited() bool {
	return s.TrialCount == UnlimitedTrials
}

// CanProceed reports whether a new analysis may start.
func CanProceed(s State) bool {
	return s.HasPaid || s.Unlimited() || s.TrialCount > 0
}

// Debit returns the state after one successful analysis. Paid and unlimited
// states are unchanged and the count never goes below zero.
func Debit(s State) State {
	if s.HasPaid || s.Unlimited() || s.TrialCount <= 0 {
		return s
	}
	s.TrialCount--
	return s
}

// Store persists per-user metering state.
type Store interface {
	// GetProfile returns ErrProfileNotFound when the user has no profile.
	GetProfile(ctx context.Context, userID string) (State, error)
	// CreateProfile creates the profile if it does not exist and returns the
	// stored state either way.
	CreateProfile(ctx context.Context, userID string, initial State) (State, error)
	// ConsumeTrial atomically applies Debit. It returns ErrExhausted when an
	// unpaid profile has no trials left and ErrProfileNotFound when missing.
	ConsumeTrial(ctx context.Context, userID string) (State, error)
	SetPaid(ctx context.Context, userID string, paid bool) error
	SetTrialCount(ctx context.Context, userID string, count int) error
}

// Guard applies the entitlement policy on top of a Store.
type Guard struct {
	store         Store
	defaultTrials int
	ownerID       string
}

// NewGuard creates a guard. Profiles created for ownerID get unlimited paid
// access; everyone else starts with defaultTrials.
func NewGuard(store Store, defaultTrials int, ownerID string) *Guard {
	if defaultTrials < 0 {
		defaultTrials = DefaultTrials
	}
	return &Guard{store: store, defaultTrials: defaultTrials, ownerID: ownerID}
}

// InitialState returns the state a new profile for userID starts with.
func (g *Guard) InitialState(userID string) State {
	if g.ownerID != "" && userID == g.ownerID {
		return State{TrialCount: UnlimitedTrials, HasPaid: true}
	}
	return State{TrialCount: g.defaultTrials}
}

// EnsureProfile returns the user's state, creating the profile on first contact.
func (g *Guard) EnsureProfile(ctx context.Context, userID string) (State, error) {
	state, err := g.store.GetProfile(ctx, userID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return State{}, fmt.Errorf("failed to get profile: %w", err)
	}
	state, err = g.store.CreateProfile(ctx, userID, g.InitialState(userID))
	if err != nil {
		return State{}, fmt.Errorf("failed to create profile: %w", err)
	}
	log.Info().Str("userId", userID).Int("trialCount", state.TrialCount).Bool("hasPaid", state.HasPaid).Msg("profile created")
	return state, nil
}

// State returns the user's stored state without creating a profile.
func (g *Guard) State(ctx context.Context, userID string) (State, error) {
	return g.store.GetProfile(ctx, userID)
}

// Check loads the user's state and returns ErrExhausted when no analysis may
// start. It performs no writes.
func (g *Guard) Check(ctx context.Context, userID string) (State, error) {
	state, err := g.store.GetProfile(ctx, userID)
	if err != nil {
		return State{}, err
	}
	if !CanProceed(state) {
		return state, ErrExhausted
	}
	return state, nil
}

// Debit consumes one trial for a completed analysis and returns the new state.
func (g *Guard) Debit(ctx context.Context, userID string) (State, error) {
	return g.store.ConsumeTrial(ctx, userID)
}

// Grant marks the user as paid, creating the profile if needed.
func (g *Guard) Grant(ctx context.Context, userID string) error {
	if _, err := g.EnsureProfile(ctx, userID); err != nil {
		return err
	}
	return g.store.SetPaid(ctx, userID, true)
}

// Revoke clears the paid flag.
func (g *Guard) Revoke(ctx context.Context, userID string) error {
	return g.store.SetPaid(ctx, userID, false)
}

// SetTrials overwrites the user's trial count, creating the profile if needed.
func (g *Guard) SetTrials(ctx context.Context, userID string, count int) error {
	if count < 0 && count != UnlimitedTrials {
		return fmt.Errorf("invalid trial count %d", count)
	}
	if _, err := g.EnsureProfile(ctx, userID); err != nil {
		return err
	}
	return g.store.SetTrialCount(ctx, userID, count)
}
