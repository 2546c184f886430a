package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/opsconsole/dispatch/internal/http/middleware"
	"github.com/opsconsole/dispatch/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// locationFrame is one inbound websocket message from the device. Sensor
// error conditions arrive on the same stream as data frames.
type locationFrame struct {
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	SpeedKmh   *float64 `json:"speed_kmh,omitempty"`
	DeviceTime int64    `json:"device_time"`
	Error      string   `json:"error,omitempty"`
}

// locationStream receives the device's push-based location stream. Each
// frame feeds the driver's feed; a timeout frame is skipped silently, a
// permission denial fails the feed terminally.
func (h *Handler) locationStream(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok || !principal.IsDriver() {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	session := h.sessions.session(principal.UserID)
	// A fresh connection means the device sensor is back.
	session.feed.Reset()

	for {
		var frame locationFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug().Err(err).Msg("location stream closed")
			}
			return
		}

		switch frame.Error {
		case "":
			sample := model.LocationSample{
				Lat:        frame.Lat,
				Lng:        frame.Lng,
				SpeedKmh:   frame.SpeedKmh,
				DeviceTime: time.UnixMilli(frame.DeviceTime).UTC(),
			}
			session.feed.Push(sample)
		case "timeout":
			// Benign: no fix this interval, tracking continues.
		case "permission_denied":
			session.feed.Fail(errors.New("location permission denied"))
		default:
			h.log.Debug().Str("sensor_error", frame.Error).Msg("unrecognized sensor error")
		}
	}
}
