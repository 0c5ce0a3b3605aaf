package tests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/user"
	"github.com/vericlock/vericlock/testutil"
)

func dialLive(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/live?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func readEvent(t *testing.T, conn *websocket.Conn) core.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt core.Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("ReadJSON() failed: %v", err)
	}
	return evt
}

func Test_liveApi(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.repos.User, "Admin", "admin", "admin@test.cd", pwd, []string{user.RoleAdmin}, true)
	amina := testutil.CreateStudent(t, env.repos.User, "Amina", "amina@test.cd", "A1B2C3D4", "5th")
	bobo := testutil.CreateStudent(t, env.repos.User, "Bobo", "bobo@test.cd", "B1B2C3D4", "3rd")

	srv := httptest.NewServer(env.app)
	defer srv.Close()

	runHTTPTests(t, env, []httpTest{
		{
			name: "missing token", path: "/v1/live",
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
	})

	t.Run("invalid token", func(t *testing.T) {
		_, resp, err := dialLive(t, srv, "not-a-jwt")
		if err == nil {
			t.Fatal("Dial() succeeded with an invalid token")
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Dial() response = %v; want status %v", resp, http.StatusUnauthorized)
		}
	})

	ts := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	scanEvt := core.Event{Type: core.EventScan, RFIDUID: "0A0B0C0D", DeviceID: "desk", Department: "Office", Timestamp: ts}
	bobosEvt := core.Event{Type: core.EventAttendance, UserID: bobo.ID, UserName: "Bobo", RFIDUID: "B1B2C3D4", DeviceID: "gate", Timestamp: ts}
	aminasEvt := core.Event{Type: core.EventAttendance, UserID: amina.ID, UserName: "Amina", RFIDUID: "A1B2C3D4", DeviceID: "gate", Timestamp: ts}

	adminConn, _, err := dialLive(t, srv, getToken(t, env.conf, admin))
	if err != nil {
		t.Fatalf("Dial(admin) failed: %v", err)
	}
	studentConn, _, err := dialLive(t, srv, getToken(t, env.conf, amina))
	if err != nil {
		t.Fatalf("Dial(student) failed: %v", err)
	}

	ctx := context.Background()
	for _, evt := range []core.Event{scanEvt, bobosEvt, aminasEvt} {
		if err = env.bus.Publish(ctx, evt); err != nil {
			t.Fatalf("Publish() failed: %v", err)
		}
	}

	t.Run("admin sees everything", func(t *testing.T) {
		for _, want := range []core.Event{scanEvt, bobosEvt, aminasEvt} {
			got := readEvent(t, adminConn)
			got.Timestamp = got.Timestamp.UTC()
			if got != want {
				t.Errorf("admin event = %+v; want %+v", got, want)
			}
		}
	})

	t.Run("student sees own attendance", func(t *testing.T) {
		got := readEvent(t, studentConn)
		got.Timestamp = got.Timestamp.UTC()
		if got != aminasEvt {
			t.Errorf("student event = %+v; want %+v", got, aminasEvt)
		}
	})
}
