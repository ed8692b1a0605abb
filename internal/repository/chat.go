package repository

import (
	"context"

	"cabride/internal/domain"
)

// ChatRepository defines the persistence operations for ride chat logs.
type ChatRepository interface {
	// EnsureSession returns the ride's chat session, creating it if absent.
	EnsureSession(ctx context.Context, rideID string) (*domain.ChatSession, error)

	// Append adds msg to the ride's session, creating the session if absent.
	// The message ID and timestamp are assigned by the caller.
	Append(ctx context.Context, msg *domain.ChatMessage) error

	// History returns the ride's messages in append order with sender names resolved.
	// A ride without a session yields an empty slice.
	History(ctx context.Context, rideID string) ([]domain.ChatMessage, error)
}
