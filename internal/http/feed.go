package http

import (
	"sync"

	"github.com/opsconsole/dispatch/internal/model"
	"github.com/opsconsole/dispatch/internal/service"
)

// LocationFeed bridges the device's websocket location stream to the
// trip controller's subscription model. The websocket read loop pushes
// frames in; the controller subscribes and cancels per trip.
type LocationFeed struct {
	mu       sync.Mutex
	onSample func(model.LocationSample)
	onError  func(error)
	denied   error
}

func NewLocationFeed() *LocationFeed {
	return &LocationFeed{}
}

// Subscribe implements service.LocationSource. A feed whose sensor has
// denied permission refuses new subscriptions until the device
// reconnects.
func (f *LocationFeed) Subscribe(onSample func(model.LocationSample), onError func(error)) (service.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied != nil {
		return nil, f.denied
	}
	f.onSample = onSample
	f.onError = onError
	return &feedSubscription{feed: f}, nil
}

// Push delivers one sensor sample to the current subscriber, if any.
func (f *LocationFeed) Push(sample model.LocationSample) {
	f.mu.Lock()
	handler := f.onSample
	f.mu.Unlock()
	if handler != nil {
		handler(sample)
	}
}

// Fail marks the sensor terminally broken (permission revoked) and
// notifies the subscriber.
func (f *LocationFeed) Fail(err error) {
	f.mu.Lock()
	f.denied = err
	handler := f.onError
	f.onSample = nil
	f.onError = nil
	f.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

// Reset clears a previous denial when the device reconnects with a
// working sensor.
func (f *LocationFeed) Reset() {
	f.mu.Lock()
	f.denied = nil
	f.mu.Unlock()
}

type feedSubscription struct {
	feed *LocationFeed
}

// Cancel detaches the subscriber. No callback is delivered after Cancel
// returns.
func (s *feedSubscription) Cancel() {
	s.feed.mu.Lock()
	s.feed.onSample = nil
	s.feed.onError = nil
	s.feed.mu.Unlock()
}
