package tests

import (
	"context"
	"testing"

	"cabride/internal/auth"
	"cabride/internal/domain"
	"cabride/internal/logging"
	"cabride/internal/realtime"
	"cabride/internal/service"
)

// drainTypes returns the event types queued for s without blocking.
func drainTypes(s *realtime.Session) []realtime.EventType {
	var out []realtime.EventType
	for {
		select {
		case msg := <-s.Messages():
			out = append(out, msg.Type)
		default:
			return out
		}
	}
}

func hasType(types []realtime.EventType, want realtime.EventType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

func TestRideRoom_AcceptRemovesOtherDrivers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	hub := realtime.NewHub(logging.Discard())
	h.bus.Hub = hub

	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)
	h.addDriver("d2", domain.VehicleSedan)
	ride := h.requestRide(t, "c1")

	// Any driver may look at an open ride and join its room.
	if _, err := h.rideService.GetRide(ctx, auth.Principal{UserID: "d2", IsDriver: true, Role: domain.RoleDriver}, ride.ID); err != nil {
		t.Fatalf("open ride should be visible to d2: %v", err)
	}
	room := realtime.RideGroup(ride.ID)
	customer := hub.Subscribe("c1", room)
	winner := hub.Subscribe("d1", room)
	loser := hub.Subscribe("d2", room)
	defer hub.Unregister(customer)
	defer hub.Unregister(winner)
	defer hub.Unregister(loser)

	if _, err := h.rideService.AcceptRide(ctx, "d1", ride.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got := hub.GroupSize(room); got != 2 {
		t.Fatalf("room size after accept = %d, want 2", got)
	}

	if _, err := h.chatService.SendMessage(ctx, service.SendMessageInput{
		RideID:   ride.ID,
		SenderID: "c1",
		Text:     "my flat is 4B",
		TempID:   "x",
	}); err != nil {
		t.Fatalf("send message: %v", err)
	}

	if !hasType(drainTypes(winner), realtime.EventChatMessage) {
		t.Error("assigned driver did not receive the chat message")
	}
	if !hasType(drainTypes(customer), realtime.EventChatMessage) {
		t.Error("customer did not receive the chat message")
	}
	if types := drainTypes(loser); hasType(types, realtime.EventChatMessage) {
		t.Errorf("driver who lost the race received chat: %v", types)
	}
}

func TestRideRoom_CancelOpenRideEmptiesDriverMembers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	hub := realtime.NewHub(logging.Discard())
	h.bus.Hub = hub

	h.addCustomer("c1")
	h.addDriver("d2", domain.VehicleSedan)
	ride := h.requestRide(t, "c1")

	room := realtime.RideGroup(ride.ID)
	watcher := hub.Subscribe("d2", room)
	defer hub.Unregister(watcher)

	if _, err := h.rideService.CancelRide(ctx, "c1", ride.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := hub.GroupSize(room); got != 0 {
		t.Errorf("room size after cancel = %d, want 0", got)
	}
	if got := h.bus.Restricted(); len(got) != 1 || got[0] != room {
		t.Errorf("restricted groups = %v, want [%s]", got, room)
	}
}
