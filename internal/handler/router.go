package handler

import "github.com/gin-gonic/gin"

// Handlers groups the API handlers mounted under the API prefix.
type Handlers struct {
	Enrollments *EnrollmentHandler
	Schedules   *ScheduleHandler
	Classes     *ClassHandler
}

// RegisterRoutes mounts the enrollment engine API on api.
func RegisterRoutes(api *gin.RouterGroup, h Handlers) {
	enrollments := api.Group("/enrollments")
	{
		enrollments.GET("", h.Enrollments.List)
		enrollments.POST("", h.Enrollments.Create)
		enrollments.GET("/:id", h.Enrollments.Get)
		enrollments.GET("/:id/suggestion", h.Enrollments.Suggestion)
		enrollments.PUT("/:id/class", h.Enrollments.Reassign)
		enrollments.POST("/:id/approve", h.Enrollments.Approve)
		enrollments.POST("/:id/reject", h.Enrollments.Reject)
		enrollments.POST("/:id/drop-request", h.Enrollments.RequestDrop)
		enrollments.POST("/:id/drop-approve", h.Enrollments.ApproveDrop)
		enrollments.POST("/:id/drop-reject", h.Enrollments.RejectDrop)
		enrollments.POST("/:id/auto-assign", h.Enrollments.AutoAssign)
		enrollments.POST("/:id/complete", h.Enrollments.Complete)
	}

	sessions := api.Group("/schedule-sessions")
	{
		sessions.POST("", h.Schedules.Create)
		sessions.GET("/availability", h.Schedules.Availability)
		sessions.PUT("/:id", h.Schedules.Update)
		sessions.POST("/:id/cancel", h.Schedules.Cancel)
	}

	classes := api.Group("/classes")
	{
		classes.GET("/:id/schedule-sessions", h.Schedules.ListByClass)
		classes.GET("/:id/roster", h.Classes.Roster)
	}
}
