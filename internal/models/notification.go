package models

import "time"

// Notification is an in-app message produced after an enrollment state change.
type Notification struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"user_id"`
	Title             string    `db:"title" json:"title"`
	Message           string    `db:"message" json:"message"`
	RelatedEntityKind string    `db:"related_entity_kind" json:"related_entity_kind"`
	RelatedEntityID   string    `db:"related_entity_id" json:"related_entity_id"`
	Read              bool      `db:"read" json:"read"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
