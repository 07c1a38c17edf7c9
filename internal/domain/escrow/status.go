// Package escrow drives the two-party deal lifecycle: a fixed sequence of
// on-chain calls, each followed by a chat-store status post, so both
// parties' clients can render the next required action without polling the
// chain. The deployed contract auto-completes the transfer on funding, so
// the protocol is two steps: create, then fund.
package escrow

import "errors"

// DealStatus is the orchestrator's view of a deal lifecycle.
type DealStatus string

const (
	// StatusSetup means no deal exists on-chain for this room yet.
	StatusSetup DealStatus = "setup"
	// StatusCreated means the deal exists on-chain and awaits funding.
	StatusCreated DealStatus = "created"

	// Terminal states (no further transitions allowed)
	StatusCompleted DealStatus = "completed"
	StatusCancelled DealStatus = "cancelled"
)

// ErrInvalidTransition is returned when a status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid escrow status transition")

// IsTerminal returns true if the status is a terminal state.
func (s DealStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// String returns the string representation of the status.
func (s DealStatus) String() string {
	return string(s)
}

// ValidTransitions defines allowed status transitions. Funding completes the
// transfer in the same transaction, so created moves straight to completed.
var ValidTransitions = map[DealStatus][]DealStatus{
	StatusSetup:   {StatusCreated, StatusCancelled},
	StatusCreated: {StatusCompleted, StatusCancelled},
	// Terminal states have no valid transitions
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransitionTo checks if a transition from current status to target status is valid.
func (s DealStatus) CanTransitionTo(target DealStatus) bool {
	validTargets, ok := ValidTransitions[s]
	if !ok {
		return false
	}
	for _, t := range validTargets {
		if t == target {
			return true
		}
	}
	return false
}

// TransitionTo attempts to transition to the target status and returns error if invalid.
func (s DealStatus) TransitionTo(target DealStatus) (DealStatus, error) {
	if !s.CanTransitionTo(target) {
		return s, ErrInvalidTransition
	}
	return target, nil
}

// ChainDealStatus mirrors the escrow contract's status enum.
type ChainDealStatus uint8

const (
	ChainStatusCreated   ChainDealStatus = 0
	ChainStatusFunded    ChainDealStatus = 1
	ChainStatusConfirmed ChainDealStatus = 2
	ChainStatusCancelled ChainDealStatus = 3
)

// Projection maps the authoritative on-chain status onto the lifecycle the
// chat store records. Funded and Confirmed both project to completed: with
// the auto-completing contract a funded deal has already transferred.
func (c ChainDealStatus) Projection() DealStatus {
	switch c {
	case ChainStatusCreated:
		return StatusCreated
	case ChainStatusFunded, ChainStatusConfirmed:
		return StatusCompleted
	case ChainStatusCancelled:
		return StatusCancelled
	default:
		return StatusSetup
	}
}
