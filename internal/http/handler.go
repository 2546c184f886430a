package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opsconsole/dispatch/internal/http/middleware"
	"github.com/opsconsole/dispatch/internal/model"
	"github.com/opsconsole/dispatch/internal/service"
	"github.com/opsconsole/dispatch/internal/session"
)

type Handler struct {
	schedules    *service.ScheduleService
	validation   *service.ValidationService
	sessions     *SessionRegistry
	sessionStore *session.Store
	log          zerolog.Logger
}

func NewHandler(
	schedules *service.ScheduleService,
	validation *service.ValidationService,
	sessions *SessionRegistry,
	sessionStore *session.Store,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		schedules:    schedules,
		validation:   validation,
		sessions:     sessions,
		sessionStore: sessionStore,
		log:          log,
	}
}

type createScheduleRequest struct {
	RouteID       string   `json:"route_id" binding:"required"`
	ProviderID    string   `json:"provider_id" binding:"required"`
	StationID     string   `json:"station_id" binding:"required"`
	ScheduledDate string   `json:"scheduled_date" binding:"required"`
	DepartureTime string   `json:"departure_time" binding:"required"`
	DriverID      *string  `json:"driver_id"`
	VehicleID     *string  `json:"vehicle_id"`
	Cost          float64  `json:"cost"`
	Passengers    []string `json:"passengers"`
}

func (h *Handler) createSchedule(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.CreateScheduleInput{
		DepartureTime: req.DepartureTime,
		Cost:          req.Cost,
	}

	var err error
	if input.RouteID, err = uuid.Parse(req.RouteID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route_id"})
		return
	}
	if input.ProviderID, err = uuid.Parse(req.ProviderID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid provider_id"})
		return
	}
	if input.StationID, err = uuid.Parse(req.StationID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station_id"})
		return
	}
	if input.ScheduledDate, err = parseDate(req.ScheduledDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_date"})
		return
	}
	if input.DriverID, err = parseOptionalID(req.DriverID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid driver_id"})
		return
	}
	if input.VehicleID, err = parseOptionalID(req.VehicleID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vehicle_id"})
		return
	}
	if input.Passengers, err = parseIDList(req.Passengers); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid passengers"})
		return
	}

	created, err := h.schedules.Create(c.Request.Context(), principal, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type editScheduleRequest struct {
	RouteID       *string  `json:"route_id"`
	ProviderID    *string  `json:"provider_id"`
	ScheduledDate *string  `json:"scheduled_date"`
	DepartureTime *string  `json:"departure_time"`
	DriverID      *string  `json:"driver_id"`
	VehicleID     *string  `json:"vehicle_id"`
	Cost          *float64 `json:"cost"`
	Passengers    []string `json:"passengers"`
}

func (h *Handler) editSchedule(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req editScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upd := model.ScheduleUpdate{
		DepartureTime: req.DepartureTime,
		Cost:          req.Cost,
	}
	var err error
	if upd.RouteID, err = parseOptionalID(req.RouteID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route_id"})
		return
	}
	if upd.ProviderID, err = parseOptionalID(req.ProviderID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid provider_id"})
		return
	}
	if upd.DriverID, err = parseOptionalID(req.DriverID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid driver_id"})
		return
	}
	if upd.VehicleID, err = parseOptionalID(req.VehicleID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vehicle_id"})
		return
	}
	if req.ScheduledDate != nil {
		date, err := parseDate(*req.ScheduledDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_date"})
			return
		}
		upd.ScheduledDate = &date
	}
	if req.Passengers != nil {
		if upd.Passengers, err = parseIDList(req.Passengers); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid passengers"})
			return
		}
	}

	if err := h.schedules.Edit(c.Request.Context(), principal, id, upd); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) cancelSchedule(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.schedules.Cancel(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listSchedules(c *gin.Context) {
	stationID, err := uuid.Parse(c.Query("station_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station_id"})
		return
	}
	from, err := parseDate(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
		return
	}

	schedules, err := h.schedules.ListForDateRange(c.Request.Context(), stationID, from, to)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

func (h *Handler) listMySchedules(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	date := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
			return
		}
		date = parsed
	}

	schedules, err := h.schedules.ListForDriver(c.Request.Context(), principal, date)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

func (h *Handler) scheduleRoster(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	roster, err := h.schedules.Roster(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roster": roster})
}

func (h *Handler) startTrip(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	scheduleID, ok := parseIDParam(c)
	if !ok {
		return
	}

	controller := h.sessions.session(principal.UserID).controller
	execution, err := controller.Start(c.Request.Context(), scheduleID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, execution)
}

type checkInRequest struct {
	EmployeeID string `json:"employee_id" binding:"required"`
	Status     string `json:"status" binding:"required"`
}

func (h *Handler) checkIn(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	employeeID, err := uuid.Parse(req.EmployeeID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee_id"})
		return
	}
	status, err := parseCheckInStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	controller := h.sessions.session(principal.UserID).controller
	if err := controller.CheckIn(c.Request.Context(), employeeID, status); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type scanRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h *Handler) scanCheckIn(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	controller := h.sessions.session(principal.UserID).controller
	employee, err := controller.ScanCheckIn(c.Request.Context(), strings.TrimSpace(req.Code))
	if err != nil {
		if errors.Is(err, service.ErrNotOnManifest) {
			// Informational, not a failure: the scan just didn't match.
			c.JSON(http.StatusOK, gin.H{"matched": false})
			return
		}
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matched": true, "employee": employee})
}

func (h *Handler) finishTrip(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	controller := h.sessions.session(principal.UserID).controller
	result, err := controller.Finish(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) activeTrip(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	controller := h.sessions.session(principal.UserID).controller
	schedule, entries := controller.Active()
	if schedule == nil {
		// Nothing in memory; the remote store may still show an
		// interrupted trip for this driver.
		restored, err := controller.Restore(c.Request.Context())
		if err != nil {
			h.handleError(c, err)
			return
		}
		if restored == nil {
			c.JSON(http.StatusOK, gin.H{"schedule": nil})
			return
		}
		schedule, entries = controller.Active()
	}
	c.JSON(http.StatusOK, gin.H{
		"schedule": schedule,
		"ledger":   entries,
		"location": controller.CurrentLocation(),
	})
}

func (h *Handler) pendingSync(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	controller := h.sessions.session(principal.UserID).controller
	count, err := controller.PendingSyncCount()
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": count})
}

func (h *Handler) replaySync(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	controller := h.sessions.session(principal.UserID).controller
	replayed, remaining, err := controller.Replay(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replayed": replayed, "remaining": remaining})
}

type bulkValidateRequest struct {
	ScheduleIDs []string `json:"schedule_ids" binding:"required"`
}

func (h *Handler) bulkValidate(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req bulkValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ids, err := parseIDList(req.ScheduleIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule_ids"})
		return
	}

	result, err := h.validation.BulkValidate(c.Request.Context(), principal, ids)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) saveSession(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if err := h.sessionStore.Save(principal.UserID, time.Now().UTC()); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) clearSession(c *gin.Context) {
	if err := h.sessionStore.Clear(); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrLocationUnavailable):
		c.JSON(http.StatusFailedDependency, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalID(raw *string) (*uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseIDList(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, item := range raw {
		id, err := uuid.Parse(strings.TrimSpace(item))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseCheckInStatus(raw string) (model.CheckInStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BOARDED":
		return model.CheckInStatusBoarded, nil
	case "NO_SHOW":
		return model.CheckInStatusNoShow, nil
	default:
		return "", service.ErrInvalidInput
	}
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
