package database

import (
	"time"
)

// Ping represents one successfully dispatched ping event
type Ping struct {
	ID          int64
	GroupName   string
	Author      string
	MemberCount int
	CommentID   string
	PingedAt    time.Time
}
