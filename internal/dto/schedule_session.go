package dto

import "github.com/noah-isme/sma-enrollment-engine/internal/models"

// ScheduleSessionRequest creates or replaces a class session.
// Date is YYYY-MM-DD; times are 24h HH:MM.
type ScheduleSessionRequest struct {
	ClassID   string `json:"classId" validate:"required"`
	TeacherID string `json:"teacherId" validate:"required"`
	RoomID    string `json:"roomId" validate:"required"`
	Date      string `json:"date" validate:"required,isodate"`
	StartTime string `json:"startTime" validate:"required,clock"`
	EndTime   string `json:"endTime" validate:"required,clock"`
	Status    string `json:"status" validate:"omitempty,oneof=SCHEDULED IN_PROGRESS COMPLETED"`
}

// AvailabilityQuery probes whether a room and/or teacher is free for an interval.
type AvailabilityQuery struct {
	RoomID           string `form:"room_id" validate:"required_without=TeacherID"`
	TeacherID        string `form:"teacher_id" validate:"required_without=RoomID"`
	Date             string `form:"date" validate:"required,isodate"`
	StartTime        string `form:"start_time" validate:"required,clock"`
	EndTime          string `form:"end_time" validate:"required,clock"`
	ExcludeSessionID string `form:"exclude_session_id"`
}

// AvailabilityResult reports the outcome per dimension. A dimension that was
// not queried is reported available.
type AvailabilityResult struct {
	RoomAvailable    bool                     `json:"roomAvailable"`
	TeacherAvailable bool                     `json:"teacherAvailable"`
	RoomConflict     *models.ScheduleConflict `json:"roomConflict,omitempty"`
	TeacherConflict  *models.ScheduleConflict `json:"teacherConflict,omitempty"`
}
