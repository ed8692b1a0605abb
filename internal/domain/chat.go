package domain

import "time"

// ChatSession is the append-only message log attached 1:1 to a ride.
type ChatSession struct {
	ID        string
	RideID    string
	Messages  []ChatMessage
	CreatedAt time.Time
}

// ChatMessage is one appended message. It is never mutated after append.
type ChatMessage struct {
	ID         string
	RideID     string
	SenderID   string
	SenderName string
	Text       string
	Timestamp  time.Time
}
