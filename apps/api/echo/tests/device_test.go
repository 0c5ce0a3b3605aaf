package tests

import (
	"context"
	"net/http"
	"regexp"
	"testing"

	"github.com/pkg/errors"

	"github.com/vericlock/vericlock/core/device"
	"github.com/vericlock/vericlock/core/user"
	"github.com/vericlock/vericlock/testutil"
)

var tokenRegex = regexp.MustCompile(`^[0-9a-f]{32}$`)

func Test_deviceApi(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.repos.User, "Admin", "admin", "admin@test.cd", pwd, []string{user.RoleAdmin}, true)
	student := testutil.CreateStudent(t, env.repos.User, "Amina", "amina@test.cd", "A1B2C3D4", "5th")
	gate := testutil.CreateDevice(t, env.repos.Device, "Gate", "Physics", "gate-token", device.ModeAttendance)
	lab := testutil.CreateDevice(t, env.repos.Device, "Lab", "Chemistry", "lab-token", device.ModeEnrollment)

	adminToken := getToken(t, env.conf, admin)
	studentToken := getToken(t, env.conf, student)

	tests := []httpTest{
		{
			name: "anonymous", path: "/v1/devices",
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
		{
			name: "student", path: "/v1/devices", token: studentToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "query by name", path: "/v1/devices?ordering=name", token: adminToken,
			wantData: marshalList(t, gate, lab),
		},
		{
			name: "query by name desc", path: "/v1/devices?ordering=-name", token: adminToken,
			wantData: marshalList(t, lab, gate),
		},
		{
			name: "retrieve", path: "/v1/devices/" + gate.ID, token: adminToken,
			wantData: marshalObj(t, gate),
		},
		{
			name: "retrieve unknown", path: "/v1/devices/nope", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "create missing fields", method: http.MethodPost, path: "/v1/devices", token: adminToken,
			body:     marshalObj(t, device.NewDevice{}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"name": "this field is required", "department": "this field is required"}),
		},
		{
			name: "create invalid mode", method: http.MethodPost, path: "/v1/devices", token: adminToken,
			body:     marshalObj(t, device.NewDevice{Name: "Door", Department: "Maths", Mode: "Party"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"mode": "mode must be one of Enrollment or Attendance"}),
		},
		{
			name: "update invalid mode", method: http.MethodPut, path: "/v1/devices/" + lab.ID, token: adminToken,
			body:     marshalObj(t, device.UpdateDevice{Mode: "Party"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"mode": "mode must be one of Enrollment or Attendance"}),
		},
	}
	runHTTPTests(t, env, tests)

	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/devices", adminToken,
			marshalObj(t, device.NewDevice{Name: "  Door ", Department: "Maths"}))
		env.do(req, rec)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create() code = %v; want %v (%s)", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var dvc device.Device
		decode(t, rec, &dvc)
		if dvc.ID == "" || dvc.Name != "Door" || dvc.Department != "Maths" || dvc.Mode != device.ModeAttendance {
			t.Errorf("create() = %+v; want a Door in Maths, in attendance mode", dvc)
		}
		if !tokenRegex.MatchString(dvc.Token) {
			t.Errorf("create() token = %q; want 32 hex chars", dvc.Token)
		}
		if dvc.LastSeen.Valid {
			t.Errorf("create() last_seen = %v; want null", dvc.LastSeen.Time)
		}
	})

	t.Run("update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/devices/"+lab.ID, adminToken,
			marshalObj(t, device.UpdateDevice{Mode: device.ModeAttendance}))
		env.do(req, rec)
		if rec.Code != http.StatusOK {
			t.Fatalf("update() code = %v; want %v (%s)", rec.Code, http.StatusOK, rec.Body.String())
		}
		var dvc device.Device
		decode(t, rec, &dvc)
		want := lab
		want.Mode = device.ModeAttendance
		if dvc.Name != want.Name || dvc.Department != want.Department || dvc.Mode != want.Mode || dvc.Token != want.Token {
			t.Errorf("update() = %+v; want %+v", dvc, want)
		}
	})

	t.Run("regenerate token", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/devices/"+gate.ID+"/token", adminToken)
		env.do(req, rec)
		if rec.Code != http.StatusOK {
			t.Fatalf("regenerateToken() code = %v; want %v (%s)", rec.Code, http.StatusOK, rec.Body.String())
		}
		var dvc device.Device
		decode(t, rec, &dvc)
		if dvc.Token == gate.Token || !tokenRegex.MatchString(dvc.Token) {
			t.Errorf("regenerateToken() token = %q; want a fresh token", dvc.Token)
		}
		_, err := env.repos.Device.GetDevice(context.Background(), device.GetFilter{Token: gate.Token})
		if errors.Cause(err) != device.ErrNotFound {
			t.Errorf("GetDevice(old token) err = %v; want %v", err, device.ErrNotFound)
		}
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/devices/"+gate.ID, adminToken)
		env.do(req, rec)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("destroy() code = %v; want %v (%s)", rec.Code, http.StatusNoContent, rec.Body.String())
		}
		req, rec = newAuthRequest(http.MethodGet, "/v1/devices/"+gate.ID, adminToken)
		env.do(req, rec)
		if rec.Code != http.StatusNotFound {
			t.Errorf("retrieve() after delete code = %v; want %v", rec.Code, http.StatusNotFound)
		}
	})
}
