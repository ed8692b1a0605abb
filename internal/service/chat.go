package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"cabride/internal/domain"
	"cabride/internal/repository"
)

// maxChatText bounds one message body.
const maxChatText = 2000

// ChatService appends messages to a ride's chat log and publishes them to the
// ride group.
type ChatService struct {
	chatRepo repository.ChatRepository
	rideRepo repository.RideRepository
	userRepo repository.UserRepository
	notifier *NotificationService
	now      func() time.Time
}

// NewChatService creates a new ChatService.
func NewChatService(
	chatRepo repository.ChatRepository,
	rideRepo repository.RideRepository,
	userRepo repository.UserRepository,
	notifier *NotificationService,
) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
		rideRepo: rideRepo,
		userRepo: userRepo,
		notifier: notifier,
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (s *ChatService) SetClock(now func() time.Time) {
	s.now = now
}

// SendMessageInput contains a chat message from an authenticated participant.
// TempID is the sender's correlation id and is echoed back unchanged.
type SendMessageInput struct {
	RideID   string
	SenderID string
	Text     string
	TempID   string
}

// SendMessage appends the message and publishes the resolved copy with the
// sender's correlation id. The server never deduplicates on the sender's behalf.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*domain.ChatMessage, error) {
	if in.RideID == "" {
		return nil, ErrInvalidRideID
	}
	text := strings.TrimSpace(in.Text)
	if text == "" || len(text) > maxChatText {
		return nil, ErrInvalidInput
	}

	ride, err := s.rideRepo.GetByID(ctx, in.RideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsParticipant(in.SenderID) {
		return nil, ErrForbidden
	}

	sender, err := s.userRepo.GetByID(ctx, in.SenderID)
	if err != nil {
		return nil, err
	}

	msg := &domain.ChatMessage{
		ID:         uuid.New().String(),
		RideID:     ride.ID,
		SenderID:   sender.ID,
		SenderName: sender.Username,
		Text:       text,
		Timestamp:  s.now(),
	}
	if err := s.chatRepo.Append(ctx, msg); err != nil {
		return nil, err
	}

	s.notifier.NotifyChatMessage(ctx, msg, in.TempID)
	return msg, nil
}

// FetchHistory returns the ride's messages in append order to its customer or
// assigned driver.
func (s *ChatService) FetchHistory(ctx context.Context, requesterID, rideID string) ([]domain.ChatMessage, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsParticipant(requesterID) {
		return nil, ErrForbidden
	}

	return s.chatRepo.History(ctx, rideID)
}
