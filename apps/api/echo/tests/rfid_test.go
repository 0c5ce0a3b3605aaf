package tests

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	. "github.com/vericlock/vericlock/apps/api/echo"
	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/attendance"
	"github.com/vericlock/vericlock/core/device"
	"github.com/vericlock/vericlock/core/rfid"
	"github.com/vericlock/vericlock/core/user"
	"github.com/vericlock/vericlock/testutil"
)

func scanPath(cardUID, deviceToken string) string {
	q := make(url.Values)
	if cardUID != "" {
		q.Set("card_uid", cardUID)
	}
	if deviceToken != "" {
		q.Set("device_token", deviceToken)
	}
	return "/api/rfid?" + q.Encode()
}

func nextEvent(t *testing.T, events <-chan core.Event) (core.Event, bool) {
	t.Helper()
	select {
	case evt := <-events:
		return evt, true
	case <-time.After(100 * time.Millisecond):
		return core.Event{}, false
	}
}

func Test_rfidApi_scan(t *testing.T) {
	env := setup(t)
	amina := testutil.CreateStudent(t, env.repos.User, "Amina", "amina@test.cd", "A1B2C3D4", "5th")
	gate := testutil.CreateDevice(t, env.repos.Device, "Gate", "Physics", "gate-token", device.ModeAttendance)
	desk := testutil.CreateDevice(t, env.repos.Device, "Desk", "Office", "desk-token", device.ModeEnrollment)
	testutil.CreateDevice(t, env.repos.Device, "Odd", "Office", "odd-token", "Maintenance")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := env.bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantText  string
		wantEvent *core.Event
	}{
		{
			name: "missing both", path: scanPath("", ""),
			wantCode: http.StatusBadRequest,
			wantText: "Bad Request: Missing required query parameter(s): card_uid, device_token.",
		},
		{
			name: "missing token", path: scanPath("A1B2C3D4", ""),
			wantCode: http.StatusBadRequest,
			wantText: "Bad Request: Missing required query parameter(s): device_token.",
		},
		{
			name: "missing card", path: scanPath("", "gate-token"),
			wantCode: http.StatusBadRequest,
			wantText: "Bad Request: Missing required query parameter(s): card_uid.",
		},
		{
			name: "unknown device", path: scanPath("A1B2C3D4", "nope"),
			wantCode: http.StatusUnauthorized, wantText: "Device not found or token is invalid.",
		},
		{
			name: "attendance, unknown card", path: scanPath("FFFFFFFF", "gate-token"),
			wantCode: http.StatusNotFound, wantText: "Not registerd!",
		},
		{
			name: "attendance, registered card", path: scanPath("a1b2c3d4", "gate-token"),
			wantCode: http.StatusOK, wantText: "login Amina",
			wantEvent: &core.Event{Type: core.EventAttendance, UserID: amina.ID, UserName: "Amina", RFIDUID: "A1B2C3D4", DeviceID: gate.ID, Department: "Physics"},
		},
		{
			name: "enrollment, registered card", path: scanPath("A1B2C3D4", "desk-token"),
			wantCode: http.StatusOK, wantText: "Available",
		},
		{
			name: "enrollment, new card", path: scanPath(" 0a0b0c0d ", "desk-token"),
			wantCode: http.StatusOK, wantText: "Successful",
			wantEvent: &core.Event{Type: core.EventScan, RFIDUID: "0A0B0C0D", DeviceID: desk.ID, Department: "Office"},
		},
		{
			name: "unknown mode", path: scanPath("A1B2C3D4", "odd-token"),
			wantCode: http.StatusMethodNotAllowed, wantText: "Not Allowed!",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, tt.path)
			env.do(req, rec)
			if rec.Code != tt.wantCode {
				t.Errorf("scan() code = %v; want %v", rec.Code, tt.wantCode)
			}
			if got := rec.Body.String(); got != tt.wantText {
				t.Errorf("scan() text = %q; want %q", got, tt.wantText)
			}

			evt, ok := nextEvent(t, events)
			if tt.wantEvent == nil {
				if ok {
					t.Errorf("scan() published %+v; want no event", evt)
				}
				return
			}
			if !ok {
				t.Fatalf("scan() published nothing; want %+v", *tt.wantEvent)
			}
			evt.Timestamp = time.Time{}
			if evt != *tt.wantEvent {
				t.Errorf("scan() published %+v; want %+v", evt, *tt.wantEvent)
			}
		})
	}

	t.Run("attendance recorded", func(t *testing.T) {
		logs, err := env.repos.Attendance.QueryLogs(context.Background(), &attendance.QueryFilter{}, nil)
		if err != nil {
			t.Fatalf("QueryLogs() failed: %v", err)
		}
		if len(logs) != 1 {
			t.Fatalf("QueryLogs() len = %v; want 1", len(logs))
		}
		log := logs[0]
		if log.UserID != amina.ID || log.DeviceID != gate.ID || log.Department != "Physics" || log.Status != attendance.StatusPresent {
			t.Errorf("QueryLogs() = %+v; want a Present log of Amina at the Physics gate", log)
		}
	})

	t.Run("last seen", func(t *testing.T) {
		dvc, err := env.repos.Device.GetDevice(context.Background(), device.GetFilter{ID: gate.ID})
		if err != nil {
			t.Fatalf("GetDevice() failed: %v", err)
		}
		if !dvc.LastSeen.Valid || time.Since(dvc.LastSeen.Time) > time.Minute {
			t.Errorf("GetDevice() last_seen = %v; want about now", dvc.LastSeen)
		}
	})

	t.Run("pending scan", func(t *testing.T) {
		uid, err := env.mailbox.Get(context.Background())
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if uid != "0A0B0C0D" {
			t.Errorf("Get() = %q; want %q", uid, "0A0B0C0D")
		}
	})
}

func Test_rfidApi_poll(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.repos.User, "Admin", "admin", "admin@test.cd", pwd, []string{user.RoleAdmin}, true)
	student := testutil.CreateStudent(t, env.repos.User, "Amina", "amina@test.cd", "A1B2C3D4", "5th")
	adminToken := getToken(t, env.conf, admin)

	poll := func(action, uid string) []byte {
		return marshalObj(t, rfid.Poll{Action: action, UID: uid})
	}
	uid := "0A0B0C0D"

	runHTTPTests(t, env, []httpTest{
		{
			name: "anonymous", method: http.MethodPost, path: "/v1/rfid", body: poll(rfid.ActionGetUID, ""),
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
		{
			name: "student", method: http.MethodPost, path: "/v1/rfid", body: poll(rfid.ActionGetUID, ""),
			token:    getToken(t, env.conf, student),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "invalid action", method: http.MethodPost, path: "/v1/rfid", body: poll("dance", ""), token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "Invalid action"}),
		},
		{
			name: "nothing pending", method: http.MethodPost, path: "/v1/rfid", body: poll(rfid.ActionGetUID, ""), token: adminToken,
			wantData: []byte(`{"uid":null}`),
		},
	})

	// a card shows up on an enrollment reader
	testutil.CreateDevice(t, env.repos.Device, "Desk", "Office", "desk-token", device.ModeEnrollment)
	req, rec := newRequest(http.MethodGet, scanPath(uid, "desk-token"))
	env.do(req, rec)
	if rec.Code != http.StatusOK {
		t.Fatalf("scan() code = %v; want %v (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	runHTTPTests(t, env, []httpTest{
		{
			name: "pending", method: http.MethodPost, path: "/v1/rfid", body: poll(rfid.ActionGetUID, ""), token: adminToken,
			wantData: marshalObj(t, PollUIDResponse{UID: &uid}),
		},
		{
			name: "still pending", method: http.MethodPost, path: "/v1/rfid", body: poll(rfid.ActionGetUID, ""), token: adminToken,
			wantData: marshalObj(t, PollUIDResponse{UID: &uid}),
		},
		{
			name: "clear another uid", method: http.MethodPost, path: "/v1/rfid", body: poll(rfid.ActionClearUID, "FFFFFFFF"), token: adminToken,
			wantData: marshalObj(t, PollClearResponse{Success: true}),
		},
		{
			name: "kept", method: http.MethodPost, path: "/v1/rfid", body: poll(rfid.ActionGetUID, ""), token: adminToken,
			wantData: marshalObj(t, PollUIDResponse{UID: &uid}),
		},
		{
			name: "clear", method: http.MethodPost, path: "/v1/rfid", body: poll(rfid.ActionClearUID, "0a0b0c0d"), token: adminToken,
			wantData: marshalObj(t, PollClearResponse{Success: true}),
		},
		{
			name: "cleared", method: http.MethodPost, path: "/v1/rfid", body: poll(rfid.ActionGetUID, ""), token: adminToken,
			wantData: []byte(`{"uid":null}`),
		},
	})
}

func Test_rfidApi_rateLimit(t *testing.T) {
	env := setup(t, func(conf *core.Config) {
		conf.RFID.RateLimit = 0.001
		conf.RFID.RateBurst = 2
	})
	testutil.CreateDevice(t, env.repos.Device, "Gate", "Physics", "gate-token", device.ModeAttendance)
	testutil.CreateDevice(t, env.repos.Device, "Lab", "Chemistry", "lab-token", device.ModeAttendance)

	codes := func(token string, n int) []int {
		var got []int
		for i := 0; i < n; i++ {
			req, rec := newRequest(http.MethodGet, scanPath("FFFFFFFF", token))
			env.do(req, rec)
			got = append(got, rec.Code)
		}
		return got
	}

	got := codes("gate-token", 3)
	want := []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("gate scans codes = %v; want %v", got, want)
			break
		}
	}

	// buckets are per device
	if got := codes("lab-token", 1); got[0] != http.StatusNotFound {
		t.Errorf("lab scan code = %v; want %v", got[0], http.StatusNotFound)
	}

	// the JSON API is not limited
	req, rec := newRequest(http.MethodGet, "/")
	env.do(req, rec)
	if rec.Code != http.StatusOK {
		t.Errorf("home() code = %v; want %v", rec.Code, http.StatusOK)
	}
}
