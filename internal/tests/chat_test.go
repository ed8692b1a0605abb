package tests

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cabride/internal/domain"
	"cabride/internal/realtime"
	"cabride/internal/service"
)

func TestChat_EchoesTempIDAndKeepsOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)
	ride := h.acceptedRide(t, "c1", "d1")

	senders := []string{"c1", "d1", "c1", "d1", "c1"}
	for i, sender := range senders {
		h.clock.Advance(time.Second)
		_, err := h.chatService.SendMessage(ctx, service.SendMessageInput{
			RideID:   ride.ID,
			SenderID: sender,
			Text:     fmt.Sprintf("message %d", i),
			TempID:   fmt.Sprintf("tmp-%d", i),
		})
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	published := h.bus.Find(realtime.RideGroup(ride.ID), realtime.EventChatMessage)
	if len(published) != len(senders) {
		t.Fatalf("expected %d chat events, got %d", len(senders), len(published))
	}
	for i, e := range published {
		msg := e.(realtime.ChatMessage)
		if msg.TempID != fmt.Sprintf("tmp-%d", i) {
			t.Errorf("message %d: expected tempId tmp-%d, got %q", i, i, msg.TempID)
		}
		if msg.ID == "" || msg.ID == msg.TempID {
			t.Errorf("message %d: expected a server-assigned id, got %q", i, msg.ID)
		}
		if msg.Sender.ID != senders[i] {
			t.Errorf("message %d: expected sender %s, got %s", i, senders[i], msg.Sender.ID)
		}
	}

	history, err := h.chatService.FetchHistory(ctx, "d1", ride.ID)
	if err != nil {
		t.Fatalf("fetch history: %v", err)
	}
	if len(history) != len(senders) {
		t.Fatalf("expected %d messages, got %d", len(senders), len(history))
	}
	for i, m := range history {
		if m.Text != fmt.Sprintf("message %d", i) {
			t.Errorf("history %d: expected %q, got %q", i, fmt.Sprintf("message %d", i), m.Text)
		}
		if i > 0 && m.Timestamp.Before(history[i-1].Timestamp) {
			t.Errorf("history %d is out of order", i)
		}
	}
	if history[1].SenderName != "driver d1" {
		t.Errorf("expected resolved sender name, got %q", history[1].SenderName)
	}
}

func TestChat_DuplicateSendsAreNotCollapsed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("c1")
	ride := h.requestRide(t, "c1")

	for i := 0; i < 2; i++ {
		if _, err := h.chatService.SendMessage(ctx, service.SendMessageInput{
			RideID: ride.ID, SenderID: "c1", Text: "hello", TempID: "same",
		}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	history, err := h.chatService.FetchHistory(ctx, "c1", ride.ID)
	if err != nil {
		t.Fatalf("fetch history: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected both sends to be stored, got %d", len(history))
	}
}

func TestChat_RejectsNonParticipant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("c1")
	h.addCustomer("c2")
	h.addDriver("d1", domain.VehicleSedan)
	ride := h.requestRide(t, "c1")

	// An unassigned driver is not a participant either.
	for _, id := range []string{"c2", "d1"} {
		_, err := h.chatService.SendMessage(ctx, service.SendMessageInput{RideID: ride.ID, SenderID: id, Text: "hi"})
		if !errors.Is(err, service.ErrForbidden) {
			t.Errorf("send as %s: expected ErrForbidden, got %v", id, err)
		}
		if _, err := h.chatService.FetchHistory(ctx, id, ride.ID); !errors.Is(err, service.ErrForbidden) {
			t.Errorf("history as %s: expected ErrForbidden, got %v", id, err)
		}
	}
}

func TestChat_RejectsBlankText(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("c1")
	ride := h.requestRide(t, "c1")

	_, err := h.chatService.SendMessage(context.Background(), service.SendMessageInput{
		RideID: ride.ID, SenderID: "c1", Text: "   ",
	})
	if !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestChat_EmptyHistory(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("c1")
	ride := h.requestRide(t, "c1")

	history, err := h.chatService.FetchHistory(context.Background(), "c1", ride.ID)
	if err != nil {
		t.Fatalf("fetch history: %v", err)
	}
	if history == nil || len(history) != 0 {
		t.Errorf("expected an empty non-nil history, got %v", history)
	}
}
