package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_PendingMovesForwardOnly(t *testing.T) {
	assert.True(t, CanTransition(TicketPending, TicketConfirmed))
	assert.True(t, CanTransition(TicketPending, TicketCancelled))
	assert.False(t, CanTransition(TicketPending, TicketAttended))
	assert.False(t, CanTransition(TicketPending, TicketPending))
}

func TestCanTransition_ConfirmedNeverFallsBack(t *testing.T) {
	assert.False(t, CanTransition(TicketConfirmed, TicketPending))
	assert.True(t, CanTransition(TicketConfirmed, TicketCancelled))
	assert.True(t, CanTransition(TicketConfirmed, TicketAttended))
}

func TestCanTransition_TerminalStates(t *testing.T) {
	for _, from := range []TicketStatus{TicketCancelled, TicketAttended} {
		for _, to := range []TicketStatus{TicketPending, TicketConfirmed, TicketCancelled, TicketAttended} {
			assert.False(t, CanTransition(from, to), "%s -> %s must be rejected", from, to)
		}
	}
}

func TestCountsAgainstCapacity(t *testing.T) {
	assert.True(t, TicketPending.CountsAgainstCapacity())
	assert.True(t, TicketConfirmed.CountsAgainstCapacity())
	assert.False(t, TicketCancelled.CountsAgainstCapacity())
	assert.False(t, TicketAttended.CountsAgainstCapacity())
}

func TestMapGatewayStatus(t *testing.T) {
	assert.Equal(t, SubscriptionActive, MapGatewayStatus("active"))
	assert.Equal(t, SubscriptionActive, MapGatewayStatus("trialing"))
	assert.Equal(t, SubscriptionPastDue, MapGatewayStatus("past_due"))
	assert.Equal(t, SubscriptionCanceled, MapGatewayStatus("canceled"))
	// Anything the mapping does not know must never look active.
	assert.Equal(t, SubscriptionExpired, MapGatewayStatus("incomplete"))
	assert.Equal(t, SubscriptionExpired, MapGatewayStatus("paused"))
	assert.Equal(t, SubscriptionExpired, MapGatewayStatus(""))
}

func TestValidTicketStatus(t *testing.T) {
	assert.True(t, ValidTicketStatus(TicketPending))
	assert.True(t, ValidTicketStatus(TicketAttended))
	assert.False(t, ValidTicketStatus("REFUNDED"))
}
