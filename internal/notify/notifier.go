package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	EventTripStarted         = "trip.started"
	EventTripFinished        = "trip.finished"
	EventTripFinishedOffline = "trip.finished_offline"
	EventTripSyncReplayed    = "trip.sync_replayed"
	EventTripRestored        = "trip.restored"
	EventCheckInRejected     = "checkin.rejected"
	EventTrackingFailed      = "tracking.failed"
)

// Event is a structured trip lifecycle notification. The engine emits
// these; presentation layers and downstream consumers subscribe and
// render or react.
type Event struct {
	Type       string            `json:"type"`
	ScheduleID uuid.UUID         `json:"schedule_id,omitempty"`
	DriverID   uuid.UUID         `json:"driver_id,omitempty"`
	At         time.Time         `json:"at"`
	Detail     map[string]string `json:"detail,omitempty"`
}

// Notifier is the notification port. Implementations must not block the
// caller beyond a short publish timeout; trip execution never depends on
// a notification being delivered.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

// LogNotifier writes events to the structured log. It is the default
// sink for deployments without a broker.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Publish(_ context.Context, event Event) {
	entry := n.log.Info().
		Str("event", event.Type).
		Time("at", event.At)
	if event.ScheduleID != uuid.Nil {
		entry = entry.Str("schedule_id", event.ScheduleID.String())
	}
	if event.DriverID != uuid.Nil {
		entry = entry.Str("driver_id", event.DriverID.String())
	}
	for key, value := range event.Detail {
		entry = entry.Str(key, value)
	}
	entry.Msg("trip event")
}
