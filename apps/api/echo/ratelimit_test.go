package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestLimiterStore(t *testing.T) {
	store := newLimiterStore(0.001, 0)
	if store.burst != 1 {
		t.Errorf("newLimiterStore() burst = %v; want 1", store.burst)
	}

	if lim := store.get("a"); !lim.Allow() {
		t.Error("first Allow() = false; want true")
	}
	if lim := store.get("a"); lim.Allow() {
		t.Error("second Allow() = true; want false")
	}
	if lim := store.get("b"); !lim.Allow() {
		t.Error("Allow() on another key = false; want true")
	}

	store.entries["a"].lastSeen = time.Now().Add(-2 * store.idleTTL)
	store.cleanup()
	if _, ok := store.entries["a"]; ok {
		t.Error("cleanup() kept an idle key")
	}
	if _, ok := store.entries["b"]; !ok {
		t.Error("cleanup() dropped an active key")
	}
}

func TestDeviceTokenKey(t *testing.T) {
	e := echo.New()
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"token", "/api/rfid?device_token=abc&card_uid=1", "device:abc"},
		{"no token", "/api/rfid?card_uid=1", "ip:192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			ctx := e.NewContext(req, httptest.NewRecorder())
			if got := deviceTokenKey(ctx); got != tt.want {
				t.Errorf("deviceTokenKey() = %v; want %v", got, tt.want)
			}
		})
	}
}
