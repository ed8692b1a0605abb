package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cabride/internal/auth"
	"cabride/internal/domain"
	"cabride/internal/middleware"
	"cabride/internal/observability"
	"cabride/internal/realtime"
	"cabride/internal/service"
)

// Inbound socket message types.
const (
	msgJoinRideRoom        = "joinRideRoom"
	msgSendMessage         = "sendMessage"
	msgRequestInitialRides = "requestInitialRides"
	msgUpdateLocation      = "updateLocation"
)

// inboundMessage is one client frame: {"type": ..., "payload": ...}.
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinRideRoomPayload struct {
	RideID string `json:"rideId"`
}

type sendMessagePayload struct {
	RideID string `json:"rideId"`
	Text   string `json:"text"`
	TempID string `json:"tempId"`
}

// RealtimeHandler upgrades authenticated clients to websocket sessions on the hub.
type RealtimeHandler struct {
	hub            *realtime.Hub
	verifier       middleware.TokenVerifier
	accountService *service.AccountService
	rideService    *service.RideService
	driverService  *service.DriverService
	chatService    *service.ChatService
	pushInterval   time.Duration
	upgrader       websocket.Upgrader
	logger         *slog.Logger
}

// RealtimeDeps groups the collaborators of RealtimeHandler.
type RealtimeDeps struct {
	Hub            *realtime.Hub
	Verifier       middleware.TokenVerifier
	AccountService *service.AccountService
	RideService    *service.RideService
	DriverService  *service.DriverService
	ChatService    *service.ChatService
	PushInterval   time.Duration
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRealtimeHandler creates a new RealtimeHandler.
func NewRealtimeHandler(deps RealtimeDeps) *RealtimeHandler {
	return &RealtimeHandler{
		hub:            deps.Hub,
		verifier:       deps.Verifier,
		accountService: deps.AccountService,
		rideService:    deps.RideService,
		driverService:  deps.DriverService,
		chatService:    deps.ChatService,
		pushInterval:   deps.PushInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(deps.AllowedOrigins),
		},
		logger: deps.Logger,
	}
}

// Serve handles GET /ws?token=...
func (h *RealtimeHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	p, err := h.verifier.Verify(token)
	if err != nil {
		respondError(c, service.ErrUnauthorized)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.accountService.CheckActive(ctx, p.UserID); err != nil {
		respondError(c, err)
		return
	}

	groups := []string{realtime.UserGroup(p.UserID)}
	var driver *domain.Driver
	if p.IsDriver {
		driver, err = h.driverService.Get(ctx, p.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		groups = append(groups, realtime.DriverGroup(p.UserID), realtime.DriversGroup)
		if driver.VehicleType != "" {
			groups = append(groups, realtime.VehicleGroup(driver.VehicleType))
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.WarnContext(ctx, "websocket upgrade failed", "error", err)
		return
	}

	session := realtime.NewSession(uuid.New().String(), p.UserID, p.IsDriver, conn)
	h.hub.Register(session, groups...)
	if p.IsDriver {
		observability.DriversOnline.Inc()
		defer observability.DriversOnline.Dec()
	}
	h.logger.InfoContext(ctx, "realtime session opened", "session_id", session.ID, "user_id", p.UserID, "driver", p.IsDriver)

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := session.WritePump(ctx); err != nil && ctx.Err() == nil {
			h.logger.DebugContext(ctx, "write pump stopped", "session_id", session.ID, "error", err)
		}
		// A dead writer ends the session; closing the conn unblocks the reader.
		cancel()
	}()

	var fix *locationFix
	if p.IsDriver {
		fix = &locationFix{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.pushLocations(ctx, session, fix)
		}()
	}

	h.readLoop(ctx, session, p, fix)

	cancel()
	h.hub.Unregister(session)
	wg.Wait()
	h.logger.InfoContext(ctx, "realtime session closed", "session_id", session.ID, "user_id", p.UserID)
}

func (h *RealtimeHandler) readLoop(ctx context.Context, s *realtime.Session, p auth.Principal, fix *locationFix) {
	s.PrepareRead()
	for {
		data, err := s.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.DebugContext(ctx, "websocket read failed", "session_id", s.ID, "error", err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.hub.Send(s, realtime.Error{Message: "malformed message"})
			continue
		}
		if err := h.dispatch(ctx, s, p, fix, msg); err != nil {
			h.hub.Send(s, realtime.Error{Message: socketErrorMessage(err), Request: msg.Type})
		}
	}
}

func (h *RealtimeHandler) dispatch(ctx context.Context, s *realtime.Session, p auth.Principal, fix *locationFix, msg inboundMessage) error {
	switch msg.Type {
	case msgJoinRideRoom:
		var payload joinRideRoomPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return service.ErrInvalidInput
		}
		if _, err := h.rideService.GetRide(ctx, p, payload.RideID); err != nil {
			return err
		}
		group := realtime.RideGroup(payload.RideID)
		h.hub.Join(s, group)
		// An accept may have restricted the room between the check and the join.
		if _, err := h.rideService.GetRide(ctx, p, payload.RideID); err != nil {
			h.hub.Leave(s, group)
			return err
		}
		return nil

	case msgSendMessage:
		var payload sendMessagePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return service.ErrInvalidInput
		}
		_, err := h.chatService.SendMessage(ctx, service.SendMessageInput{
			RideID:   payload.RideID,
			SenderID: p.UserID,
			Text:     payload.Text,
			TempID:   payload.TempID,
		})
		return err

	case msgRequestInitialRides:
		if !p.IsDriver {
			return service.ErrForbidden
		}
		driver, err := h.driverService.Get(ctx, p.UserID)
		if err != nil {
			return err
		}
		rides, err := h.driverService.InitialRides(ctx, driver.VehicleType)
		if err != nil {
			return err
		}
		summaries := make([]realtime.RideSummary, 0, len(rides))
		for _, r := range rides {
			summaries = append(summaries, realtime.SummarizeRide(r))
		}
		h.hub.Send(s, realtime.InitialRides{Rides: summaries})
		return nil

	case msgUpdateLocation:
		if !p.IsDriver || fix == nil {
			return service.ErrForbidden
		}
		var loc domain.Location
		if err := json.Unmarshal(msg.Payload, &loc); err != nil {
			return service.ErrInvalidInput
		}
		if err := h.driverService.UpdateLocation(ctx, p.UserID, loc); err != nil {
			return err
		}
		fix.set(loc)
		return nil

	default:
		return service.ErrInvalidInput
	}
}

// pushLocations broadcasts the driver's latest fix each interval while it
// changes. It stops when the connection's context ends.
func (h *RealtimeHandler) pushLocations(ctx context.Context, s *realtime.Session, fix *locationFix) {
	ticker := time.NewTicker(h.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if loc, ok := fix.take(); ok {
				h.hub.Broadcast(realtime.DriverLocationUpdate{DriverID: s.UserID, Location: loc}, s)
			}
		}
	}
}

// locationFix holds a driver's most recent unpublished location.
type locationFix struct {
	mu      sync.Mutex
	loc     domain.Location
	pending bool
}

func (f *locationFix) set(loc domain.Location) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loc == loc && !f.pending {
		return
	}
	f.loc = loc
	f.pending = true
}

func (f *locationFix) take() (domain.Location, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.pending {
		return domain.Location{}, false
	}
	f.pending = false
	return f.loc, true
}

func socketErrorMessage(err error) string {
	if mapErrorToHTTPStatus(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
