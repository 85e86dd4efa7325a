package models

import "time"

// CandidateScore is the ranker's evaluation of one class section.
type CandidateScore struct {
	ClassID      string    `json:"class_id"`
	ClassName    string    `json:"class_name"`
	TeacherID    string    `json:"teacher_id"`
	Headroom     float64   `json:"headroom"`
	TeacherLoad  int       `json:"teacher_load"`
	DaysToStart  int       `json:"days_to_start"`
	StartDate    time.Time `json:"start_date"`
	Score        float64   `json:"score"`
	SeatsLeft    int       `json:"seats_left"`
	CurrentSeats int       `json:"current_seats"`
}

// AssignmentSuggestion is the ranker's top pick for an approved enrollment.
// SuggestedClassID is nil when no candidate exists.
type AssignmentSuggestion struct {
	EnrollmentID     string           `json:"enrollment_id"`
	SuggestedClassID *string          `json:"suggested_class_id"`
	Confidence       float64          `json:"confidence"`
	Reasoning        string           `json:"reasoning"`
	Candidates       []CandidateScore `json:"candidates,omitempty"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// AssignmentPolicyError reports a suggestion that did not clear the acceptance threshold.
type AssignmentPolicyError struct {
	Threshold  float64              `json:"threshold"`
	Suggestion AssignmentSuggestion `json:"suggestion"`
}

// Error implements the error interface.
func (e *AssignmentPolicyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Suggestion.Reasoning
}
