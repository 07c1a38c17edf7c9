package escrow_test

import (
	"testing"

	"ipmarket-server/internal/domain/escrow"
)

func TestDealStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		status   escrow.DealStatus
		expected bool
	}{
		{"setup is not terminal", escrow.StatusSetup, false},
		{"created is not terminal", escrow.StatusCreated, false},
		{"completed is terminal", escrow.StatusCompleted, true},
		{"cancelled is terminal", escrow.StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.expected {
				t.Errorf("DealStatus.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDealStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name  string
		from  escrow.DealStatus
		to    escrow.DealStatus
		canDo bool
	}{
		// Valid transitions from setup
		{"setup to created", escrow.StatusSetup, escrow.StatusCreated, true},
		{"setup to cancelled", escrow.StatusSetup, escrow.StatusCancelled, true},
		{"setup to completed - invalid", escrow.StatusSetup, escrow.StatusCompleted, false},

		// Valid transitions from created (funding auto-completes)
		{"created to completed", escrow.StatusCreated, escrow.StatusCompleted, true},
		{"created to cancelled", escrow.StatusCreated, escrow.StatusCancelled, true},
		{"created to setup - invalid", escrow.StatusCreated, escrow.StatusSetup, false},

		// Terminal states have no valid transitions
		{"completed to anything - invalid", escrow.StatusCompleted, escrow.StatusCancelled, false},
		{"cancelled to anything - invalid", escrow.StatusCancelled, escrow.StatusCreated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.canDo {
				t.Errorf("DealStatus.CanTransitionTo() = %v, want %v", got, tt.canDo)
			}
		})
	}
}

func TestDealStatus_TransitionTo(t *testing.T) {
	s := escrow.StatusSetup
	next, err := s.TransitionTo(escrow.StatusCreated)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if next != escrow.StatusCreated {
		t.Errorf("expected created, got %v", next)
	}

	s = escrow.StatusCompleted
	if _, err = s.TransitionTo(escrow.StatusCancelled); err != escrow.ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestChainDealStatus_Projection(t *testing.T) {
	tests := []struct {
		name     string
		chain    escrow.ChainDealStatus
		expected escrow.DealStatus
	}{
		{"created projects to created", escrow.ChainStatusCreated, escrow.StatusCreated},
		{"funded projects to completed", escrow.ChainStatusFunded, escrow.StatusCompleted},
		{"confirmed projects to completed", escrow.ChainStatusConfirmed, escrow.StatusCompleted},
		{"cancelled projects to cancelled", escrow.ChainStatusCancelled, escrow.StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.chain.Projection(); got != tt.expected {
				t.Errorf("Projection() = %v, want %v", got, tt.expected)
			}
		})
	}
}
