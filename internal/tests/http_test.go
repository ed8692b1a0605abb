package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"cabride/internal/auth"
	"cabride/internal/domain"
	"cabride/internal/handler"
	"cabride/internal/middleware"
	"cabride/internal/service"
)

func newRideRouter(t *testing.T, h *harness) (*gin.Engine, *auth.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	receipts := service.NewReceiptService(h.rides, h.drivers, service.Payee{UPIID: "cabride@upi", Name: "CabRide"})
	rides := handler.NewRideHandler(h.rideService, receipts)

	router := gin.New()
	api := router.Group("/v1", middleware.Auth(issuer))
	api.POST("/rides", rides.CreateRide)
	api.GET("/rides/:id", rides.GetRide)
	api.POST("/rides/:id/accept", middleware.RequireDriver(), rides.AcceptRide)
	api.POST("/rides/:id/status", rides.UpdateStatus)
	return router, issuer
}

func tokenFor(t *testing.T, issuer *auth.TokenIssuer, h *harness, userID string) string {
	t.Helper()
	token, err := issuer.Issue(h.users.GetUser(userID))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func do(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHTTP_RideFlowStatusCodes(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)
	h.addDriver("d2", domain.VehicleSedan)
	router, issuer := newRideRouter(t, h)

	customer := tokenFor(t, issuer, h, "c1")
	d1 := tokenFor(t, issuer, h, "d1")
	d2 := tokenFor(t, issuer, h, "d2")

	if w := do(router, http.MethodPost, "/v1/rides", "", `{}`); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", w.Code)
	}

	body := `{"pickup":{"address":"MG Road","lat":12.97,"lng":77.59},` +
		`"dropoff":{"address":"Airport","lat":13.19,"lng":77.70},"vehicle_type":"Sedan","fare":1}`
	w := do(router, http.MethodPost, "/v1/rides", customer, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created handler.RideResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode ride: %v", err)
	}
	if created.Fare != 10*h.policy.FarePerKm[domain.VehicleSedan] {
		t.Errorf("expected server-priced fare, got %v", created.Fare)
	}

	if w := do(router, http.MethodPost, "/v1/rides/"+created.ID+"/accept", customer, ""); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a customer accepting, got %d", w.Code)
	}
	if w := do(router, http.MethodPost, "/v1/rides/"+created.ID+"/accept", d1, ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for the first driver, got %d: %s", w.Code, w.Body.String())
	}
	if w := do(router, http.MethodPost, "/v1/rides/"+created.ID+"/accept", d2, ""); w.Code != http.StatusConflict {
		t.Errorf("expected 409 for the second driver, got %d", w.Code)
	}

	w = do(router, http.MethodPost, "/v1/rides/"+created.ID+"/status", d1, `{"status":"started"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 starting before otp verification, got %d", w.Code)
	}

	var driverView, customerView handler.RideResponse
	w = do(router, http.MethodGet, "/v1/rides/"+created.ID, d1, "")
	_ = json.Unmarshal(w.Body.Bytes(), &driverView)
	w = do(router, http.MethodGet, "/v1/rides/"+created.ID, customer, "")
	_ = json.Unmarshal(w.Body.Bytes(), &customerView)
	if driverView.OTP != "" {
		t.Error("expected otp to be hidden from the driver")
	}
	if customerView.OTP != testOTP {
		t.Errorf("expected customer to see otp %s, got %q", testOTP, customerView.OTP)
	}

	if w := do(router, http.MethodGet, "/v1/rides/missing", customer, ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown ride, got %d", w.Code)
	}
}
