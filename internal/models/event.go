package models

import "time"

// LeaveEventType identifies a committed leave transition.
type LeaveEventType string

const (
	LeaveEventCreated   LeaveEventType = "leave.created"
	LeaveEventApproved  LeaveEventType = "leave.approved"
	LeaveEventRejected  LeaveEventType = "leave.rejected"
	LeaveEventCancelled LeaveEventType = "leave.cancelled"
	LeaveEventUpdated   LeaveEventType = "leave.updated"
)

// LeaveEvent is the logical event emitted after each committed transition.
type LeaveEvent struct {
	ID         string         `json:"id"`
	Type       LeaveEventType `json:"type"`
	LeaveID    string         `json:"leave_id"`
	UserID     string         `json:"user_id"`
	ActorID    string         `json:"actor_id"`
	Category   LeaveCategory  `json:"category"`
	Status     LeaveStatus    `json:"status"`
	Department string         `json:"department"`
	OccurredAt time.Time      `json:"occurred_at"`
}
