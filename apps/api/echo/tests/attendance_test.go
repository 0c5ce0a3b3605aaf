package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/vericlock/vericlock/core/attendance"
	"github.com/vericlock/vericlock/core/device"
	"github.com/vericlock/vericlock/core/user"
	"github.com/vericlock/vericlock/testutil"
)

func logIDs(t *testing.T, body []byte) []string {
	t.Helper()
	var logs []attendance.Log
	if err := json.Unmarshal(body, &logs); err != nil {
		t.Fatalf("json.Unmarshal(%s) failed: %v", body, err)
	}
	ids := make([]string, 0, len(logs))
	for _, log := range logs {
		ids = append(ids, log.ID)
	}
	return ids
}

func fixNow(t *testing.T, now time.Time) {
	t.Helper()
	attendance.NowFunc = func() time.Time { return now }
	device.NowFunc = func() time.Time { return now }
	user.NowFunc = func() time.Time { return now }
	t.Cleanup(func() {
		attendance.NowFunc = time.Now
		device.NowFunc = time.Now
		user.NowFunc = time.Now
	})
}

func Test_attendanceApi(t *testing.T) {
	fixNow(t, time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC))

	env := setup(t)
	admin := testutil.CreateUser(t, env.repos.User, "Admin", "admin", "admin@test.cd", pwd, []string{user.RoleAdmin}, true)
	amina := testutil.CreateStudent(t, env.repos.User, "Amina", "amina@test.cd", "A1B2C3D4", "5th")
	bobo := testutil.CreateStudent(t, env.repos.User, "Bobo", "bobo@test.cd", "B1B2C3D4", "3rd")
	gate := testutil.CreateDevice(t, env.repos.Device, "Gate", "Physics", "gate-token", device.ModeAttendance)
	lab := testutil.CreateDevice(t, env.repos.Device, "Lab", "Chemistry", "lab-token", device.ModeAttendance)

	day := func(d, h int) time.Time { return time.Date(2024, 3, d, h, 0, 0, 0, time.UTC) }
	log1 := testutil.CreateLog(t, env.repos.Attendance, amina, gate, day(11, 9))
	log2 := testutil.CreateLog(t, env.repos.Attendance, bobo, lab, day(12, 10))
	log3 := testutil.CreateLog(t, env.repos.Attendance, amina, lab, day(13, 8))
	log4 := testutil.CreateLog(t, env.repos.Attendance, bobo, gate, day(13, 11))

	adminToken := getToken(t, env.conf, admin)
	studentToken := getToken(t, env.conf, amina)

	runHTTPTests(t, env, []httpTest{
		{
			name: "anonymous", path: "/v1/attendance",
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
		{
			name: "student", path: "/v1/attendance", token: studentToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "invalid from", path: "/v1/attendance?from=monday", token: adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"from": "must be a date (YYYY-MM-DD) or a RFC3339 timestamp"}),
		},
	})

	t.Run("query", func(t *testing.T) {
		path := func(params ...string) string {
			q := make(url.Values)
			for i := 0; i+1 < len(params); i += 2 {
				q.Set(params[i], params[i+1])
			}
			return "/v1/attendance?" + q.Encode()
		}
		tests := []struct {
			name    string
			path    string
			wantIDs []string
		}{
			{"all, newest first", path(), []string{log4.ID, log3.ID, log2.ID, log1.ID}},
			{"oldest first", path("ordering", "timestamp"), []string{log1.ID, log2.ID, log3.ID, log4.ID}},
			{"single day", path("from", "2024-03-12", "to", "2024-03-12"), []string{log2.ID}},
			{"from day", path("from", "2024-03-13"), []string{log4.ID, log3.ID}},
			{"rfc3339 bounds", path("from", "2024-03-12T00:00:00Z", "to", "2024-03-12T00:00:00Z"), []string{log2.ID}},
			{"by user", path("user_id", amina.ID), []string{log3.ID, log1.ID}},
			{"by device", path("device_id", lab.ID), []string{log3.ID, log2.ID}},
			{"by department", path("department", "Physics"), []string{log4.ID, log1.ID}},
			{"by semester", path("semester", "3rd"), []string{log4.ID, log2.ID}},
			{"search name", path("search", "bob"), []string{log4.ID, log2.ID}},
			{"search uid", path("search", "a1b2"), []string{log3.ID, log1.ID}},
			{"limit", path("limit", "1"), []string{log4.ID}},
			{"nothing", path("search", "zzz"), []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req, rec := newAuthRequest(http.MethodGet, tt.path, adminToken)
				env.do(req, rec)
				if rec.Code != http.StatusOK {
					t.Fatalf("query() code = %v; want %v (%s)", rec.Code, http.StatusOK, rec.Body.String())
				}
				if got := logIDs(t, rec.Body.Bytes()); !equalStrings(got, tt.wantIDs) {
					t.Errorf("query() ids = %v; want %v", got, tt.wantIDs)
				}
			})
		}
	})

	t.Run("week", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/week", adminToken)
		env.do(req, rec)
		if rec.Code != http.StatusOK {
			t.Fatalf("week() code = %v; want %v (%s)", rec.Code, http.StatusOK, rec.Body.String())
		}
		var chart attendance.WeekChart
		decode(t, rec, &chart)
		if chart.Total != 4 || len(chart.Days) != 7 {
			t.Fatalf("week() = %+v; want 7 days & 4 scans", chart)
		}
		wantCounts := []int{1, 1, 2, 0, 0, 0, 0}
		for i, d := range chart.Days {
			if d.Count != wantCounts[i] {
				t.Errorf("week() %s %s count = %v; want %v", d.Day, d.Date, d.Count, wantCounts[i])
			}
		}
		if chart.Days[0].Day != "Mon" || chart.Days[0].Date != "2024-03-11" {
			t.Errorf("week() first day = %+v; want Mon 2024-03-11", chart.Days[0])
		}
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/attendance?id="+log1.ID+"&id="+log2.ID, adminToken)
		env.do(req, rec)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("destroyMultiple() code = %v; want %v (%s)", rec.Code, http.StatusNoContent, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/attendance", adminToken)
		env.do(req, rec)
		want := []string{log4.ID, log3.ID}
		if got := logIDs(t, rec.Body.Bytes()); !equalStrings(got, want) {
			t.Errorf("query() after delete ids = %v; want %v", got, want)
		}
	})
}

func Test_dashboardApi(t *testing.T) {
	now := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)
	fixNow(t, now)

	env := setup(t)
	admin := testutil.CreateUser(t, env.repos.User, "Admin", "admin", "admin@test.cd", pwd, []string{user.RoleAdmin}, true)
	amina := testutil.CreateStudent(t, env.repos.User, "Amina", "amina@test.cd", "A1B2C3D4", "5th", now.Add(-2*time.Hour))
	bobo := testutil.CreateStudent(t, env.repos.User, "Bobo", "bobo@test.cd", "B1B2C3D4", "3rd", now.Add(-time.Hour))
	gate := testutil.CreateDevice(t, env.repos.Device, "Gate", "Physics", "gate-token", device.ModeAttendance)
	lab := testutil.CreateDevice(t, env.repos.Device, "Lab", "Chemistry", "lab-token", device.ModeAttendance)

	if err := env.repos.Device.TouchDevice(context.Background(), gate.ID, now.Add(-time.Minute)); err != nil {
		t.Fatalf("TouchDevice() failed: %v", err)
	}
	testutil.CreateLog(t, env.repos.Attendance, amina, gate, now.AddDate(0, 0, -1))
	testutil.CreateLog(t, env.repos.Attendance, amina, gate, now.Add(-3*time.Hour))
	testutil.CreateLog(t, env.repos.Attendance, bobo, lab, now.Add(-time.Hour))

	runHTTPTests(t, env, []httpTest{
		{
			name: "student", path: "/v1/dashboard", token: getToken(t, env.conf, amina),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
	})

	req, rec := newAuthRequest(http.MethodGet, "/v1/dashboard", getToken(t, env.conf, admin))
	env.do(req, rec)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary() code = %v; want %v (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var summary attendance.AdminSummary
	decode(t, rec, &summary)

	if summary.Users != 2 || summary.Devices != 2 || summary.TodayScans != 2 {
		t.Errorf("summary() users, devices, today = %v, %v, %v; want 2, 2, 2",
			summary.Users, summary.Devices, summary.TodayScans)
	}

	online := make(map[string]bool, len(summary.DeviceList))
	for _, st := range summary.DeviceList {
		online[st.ID] = st.Online
	}
	if len(online) != 2 || !online[gate.ID] || online[lab.ID] {
		t.Errorf("summary() device_list online = %v; want gate online & lab offline", online)
	}

	var recent []string
	for _, usr := range summary.RecentUsers {
		recent = append(recent, usr.ID)
	}
	if want := []string{bobo.ID, amina.ID}; !equalStrings(recent, want) {
		t.Errorf("summary() recent_users = %v; want %v", recent, want)
	}
}

func Test_dashboardApi_empty(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.repos.User, "Admin", "admin", "admin@test.cd", pwd, []string{user.RoleAdmin}, true)

	runHTTPTests(t, env, []httpTest{
		{
			name: "no data", path: "/v1/dashboard", token: getToken(t, env.conf, admin),
			wantData: marshalObj(t, attendance.AdminSummary{
				DeviceList:  []device.Status{},
				RecentUsers: []user.User{},
			}),
		},
	})
}
