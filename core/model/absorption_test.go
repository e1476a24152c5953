package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOpportunityExpiry(t *testing.T) {
	now := time.Now()
	o := Opportunity{Status: OpportunityPending, ExpiresAt: now.Add(time.Hour)}

	assert.False(t, o.Expired(now))
	assert.True(t, o.Actionable(now))

	// Past the TTL the stored status may still read PENDING; the timestamp
	// decides.
	later := now.Add(2 * time.Hour)
	assert.True(t, o.Expired(later))
	assert.False(t, o.Actionable(later))

	o.Status = OpportunityBothAccepted
	assert.False(t, o.Actionable(now))
}

func TestOpportunitySamePair(t *testing.T) {
	o := Opportunity{Route1ID: "r1", Route2ID: "r2"}
	assert.True(t, o.SamePair("r1", "r2"))
	assert.True(t, o.SamePair("r2", "r1"))
	assert.False(t, o.SamePair("r1", "r3"))
}

func TestTransferReadyToComplete(t *testing.T) {
	assert.False(t, Transfer{Status: TransferPending}.ReadyToComplete())
	assert.True(t, Transfer{Status: TransferQRScanned}.ReadyToComplete())
	assert.True(t, Transfer{Status: TransferChecklistVerified}.ReadyToComplete())
	assert.False(t, Transfer{Status: TransferCompleted}.ReadyToComplete())
}
