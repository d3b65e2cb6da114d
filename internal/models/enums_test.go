package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJourneyStatusRank(t *testing.T) {
	order := []JourneyStatus{
		JourneyNotStarted, JourneyInTransit, JourneyAtSecurity,
		JourneyMetDriver, JourneyEnRouteHotel, JourneyArrivedHotel,
	}
	for i, s := range order {
		assert.Equal(t, i, s.Rank(), s)
		assert.True(t, s.Valid())
	}
	assert.Equal(t, -1, JourneyStatus("teleported").Rank())
}

func TestCheckpointTypeJourneyStatus(t *testing.T) {
	tests := []struct {
		typ  CheckpointType
		want JourneyStatus
	}{
		{CheckpointAirportArrival, JourneyInTransit},
		{CheckpointSecurity, JourneyAtSecurity},
		{CheckpointMeetDriver, JourneyMetDriver},
		{CheckpointEnRoute, JourneyEnRouteHotel},
		{CheckpointHotelArrival, JourneyArrivedHotel},
	}
	for _, tt := range tests {
		got, ok := tt.typ.JourneyStatus()
		assert.True(t, ok)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got.Rank()-1, tt.typ.Sequence())
	}

	_, ok := CheckpointType("baggage").JourneyStatus()
	assert.False(t, ok)
	assert.False(t, CheckpointType("baggage").Valid())
}

func TestMethodValidation(t *testing.T) {
	assert.True(t, CompletionGuestConfirmed.Valid())
	assert.False(t, CompletionMethod("psychic").Valid())
	assert.True(t, VerifyQRCode.Valid())
	assert.False(t, VerificationMethod("retina").Valid())
}
