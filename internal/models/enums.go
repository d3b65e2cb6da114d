package models

// JourneyStatus is the profile-level summary of how far the guest has travelled.
type JourneyStatus string

const (
	JourneyNotStarted   JourneyStatus = "not_started"
	JourneyInTransit    JourneyStatus = "in_transit"
	JourneyAtSecurity   JourneyStatus = "at_security"
	JourneyMetDriver    JourneyStatus = "met_driver"
	JourneyEnRouteHotel JourneyStatus = "en_route_hotel"
	JourneyArrivedHotel JourneyStatus = "arrived_hotel"
)

var journeyRank = map[JourneyStatus]int{
	JourneyNotStarted:   0,
	JourneyInTransit:    1,
	JourneyAtSecurity:   2,
	JourneyMetDriver:    3,
	JourneyEnRouteHotel: 4,
	JourneyArrivedHotel: 5,
}

// Rank is the position of s in the fixed journey ordering, -1 if unknown.
func (s JourneyStatus) Rank() int {
	if r, ok := journeyRank[s]; ok {
		return r
	}
	return -1
}

func (s JourneyStatus) Valid() bool { return s.Rank() >= 0 }

// CheckpointType names a stage of the journey.
type CheckpointType string

const (
	CheckpointAirportArrival CheckpointType = "airport_arrival"
	CheckpointSecurity       CheckpointType = "security"
	CheckpointMeetDriver     CheckpointType = "meet_driver"
	CheckpointEnRoute        CheckpointType = "en_route"
	CheckpointHotelArrival   CheckpointType = "hotel_arrival"
)

// CheckpointTypes lists every stage in journey order.
var CheckpointTypes = []CheckpointType{
	CheckpointAirportArrival,
	CheckpointSecurity,
	CheckpointMeetDriver,
	CheckpointEnRoute,
	CheckpointHotelArrival,
}

// Sequence is the stage position used to order checkpoints, -1 if unknown.
func (t CheckpointType) Sequence() int {
	for i, ct := range CheckpointTypes {
		if ct == t {
			return i
		}
	}
	return -1
}

func (t CheckpointType) Valid() bool { return t.Sequence() >= 0 }

// JourneyStatus is the profile status reached once a checkpoint of this type completes.
func (t CheckpointType) JourneyStatus() (JourneyStatus, bool) {
	switch t {
	case CheckpointAirportArrival:
		return JourneyInTransit, true
	case CheckpointSecurity:
		return JourneyAtSecurity, true
	case CheckpointMeetDriver:
		return JourneyMetDriver, true
	case CheckpointEnRoute:
		return JourneyEnRouteHotel, true
	case CheckpointHotelArrival:
		return JourneyArrivedHotel, true
	}
	return "", false
}

// CheckpointStatus only moves forward: pending -> approaching -> completed.
type CheckpointStatus string

const (
	CheckpointPending     CheckpointStatus = "pending"
	CheckpointApproaching CheckpointStatus = "approaching"
	CheckpointCompleted   CheckpointStatus = "completed"
)

// CompletionMethod records how a checkpoint was completed.
type CompletionMethod string

const (
	CompletionAutoDetected   CompletionMethod = "auto_detected"
	CompletionGuestConfirmed CompletionMethod = "guest_confirmed"
	CompletionManualOverride CompletionMethod = "manual_override"
)

func (m CompletionMethod) Valid() bool {
	switch m {
	case CompletionAutoDetected, CompletionGuestConfirmed, CompletionManualOverride:
		return true
	}
	return false
}

// NotificationStatus is monotonic: sent -> read -> responded.
type NotificationStatus string

const (
	NotificationSent      NotificationStatus = "sent"
	NotificationRead      NotificationStatus = "read"
	NotificationResponded NotificationStatus = "responded"
)

// PushStatus is the outcome of the best-effort device push for a notification.
type PushStatus string

const (
	PushDelivered PushStatus = "delivered"
	PushFailed    PushStatus = "failed"
	PushSkipped   PushStatus = "skipped"
)

// VerificationMethod is how a guest presents the driver's credential.
type VerificationMethod string

const (
	VerifyBarcodeScan       VerificationMethod = "barcode_scan"
	VerifyQRCode            VerificationMethod = "qr_code"
	VerifyManualCode        VerificationMethod = "manual_code"
	VerifyPhotoVerification VerificationMethod = "photo_verification"
)

func (m VerificationMethod) Valid() bool {
	switch m {
	case VerifyBarcodeScan, VerifyQRCode, VerifyManualCode, VerifyPhotoVerification:
		return true
	}
	return false
}

// Location sources recorded on GPSTrackingData rows.
const (
	SourceStream = "stream"
	SourceManual = "manual"
)
