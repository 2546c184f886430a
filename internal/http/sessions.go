package http

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opsconsole/dispatch/internal/notify"
	"github.com/opsconsole/dispatch/internal/service"
)

// driverSession ties one driver's controller to their device's location
// feed. One active session per driver; the controller enforces one
// active trip within it.
type driverSession struct {
	controller *service.TripController
	feed       *LocationFeed
}

// SessionRegistry hands out the per-driver session, creating it on first
// use.
type SessionRegistry struct {
	store     service.ScheduleStore
	directory service.EmployeeDirectory
	queue     service.OfflineQueue
	notifier  notify.Notifier
	cfg       service.TripControllerConfig
	log       zerolog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*driverSession
}

func NewSessionRegistry(
	store service.ScheduleStore,
	directory service.EmployeeDirectory,
	queue service.OfflineQueue,
	notifier notify.Notifier,
	cfg service.TripControllerConfig,
	log zerolog.Logger,
) *SessionRegistry {
	return &SessionRegistry{
		store:     store,
		directory: directory,
		queue:     queue,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
		sessions:  make(map[uuid.UUID]*driverSession),
	}
}

func (r *SessionRegistry) session(driverID uuid.UUID) *driverSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[driverID]; ok {
		return existing
	}

	feed := NewLocationFeed()
	controller := service.NewTripController(
		r.store,
		r.directory,
		r.queue,
		feed,
		r.notifier,
		r.cfg,
		r.log.With().Str("driver_id", driverID.String()).Logger(),
		driverID,
	)
	created := &driverSession{controller: controller, feed: feed}
	r.sessions[driverID] = created
	return created
}
