package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/opsconsole/dispatch/internal/http/middleware"
	"github.com/opsconsole/dispatch/internal/model"
)

func NewRouter(handler *Handler, authMiddleware gin.HandlerFunc, environment string) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(authMiddleware)

	dispatcher := protected.Group("/")
	dispatcher.Use(middleware.RequireRole(model.RoleDispatcher))
	dispatcher.POST("/schedules", handler.createSchedule)
	dispatcher.PATCH("/schedules/:id", handler.editSchedule)
	dispatcher.POST("/schedules/:id/cancel", handler.cancelSchedule)

	protected.GET("/schedules", handler.listSchedules)
	protected.GET("/schedules/:id/roster", handler.scheduleRoster)

	driver := protected.Group("/")
	driver.Use(middleware.RequireRole(model.RoleDriver))
	driver.GET("/my/schedules", handler.listMySchedules)
	driver.POST("/my/session", handler.saveSession)
	driver.DELETE("/my/session", handler.clearSession)
	driver.POST("/schedules/:id/start", handler.startTrip)
	driver.POST("/trips/checkin", handler.checkIn)
	driver.POST("/trips/scan", handler.scanCheckIn)
	driver.POST("/trips/finish", handler.finishTrip)
	driver.GET("/trips/active", handler.activeTrip)
	driver.GET("/trips/pending-sync", handler.pendingSync)
	driver.POST("/trips/replay", handler.replaySync)
	driver.GET("/trips/ws", handler.locationStream)

	provider := protected.Group("/")
	provider.Use(middleware.RequireRole(model.RoleProvider))
	provider.POST("/validation/bulk", handler.bulkValidate)

	return router
}
