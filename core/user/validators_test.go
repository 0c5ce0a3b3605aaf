package user

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/vericlock/vericlock/core"
)

type nopLogger struct{ t *testing.T }

func (l nopLogger) Debug(string, ...interface{}) {}
func (l nopLogger) Info(string, ...interface{})  {}
func (l nopLogger) Warn(string, ...interface{})  {}
func (l nopLogger) Error(msg string, _ ...interface{}) {
	l.t.Errorf("unexpected error log: %s", msg)
}
func (l nopLogger) Fatal(msg string, _ ...interface{}) {
	l.t.Fatalf("unexpected fatal log: %s", msg)
}

func newValidator(t *testing.T) *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	LoadCommonPasswords(nopLogger{t})
	return validate
}

func fieldErrors(err error) map[string]string {
	errs := make(map[string]string)
	if vErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range vErrs {
			errs[e.Field()] = e.Tag()
		}
	}
	return errs
}

func TestNewUser_Validate(t *testing.T) {
	validate := newValidator(t)

	tests := []struct {
		name    string
		nu      NewUser
		wantErr map[string]string
	}{
		{
			name:    "no username nor email",
			nu:      NewUser{Name: "Jane", Password: "K!w1-fr8sh", PasswordConfirm: "K!w1-fr8sh"},
			wantErr: map[string]string{"username": usernameOrEmailTag, "email": usernameOrEmailTag},
		},
		{
			name:    "invalid username",
			nu:      NewUser{Name: "Jane", Username: "ja ne!", Password: "K!w1-fr8sh", PasswordConfirm: "K!w1-fr8sh"},
			wantErr: map[string]string{"username": "alphanum_"},
		},
		{
			name:    "unknown role",
			nu:      NewUser{Name: "Jane", Username: "jane", Password: "K!w1-fr8sh", PasswordConfirm: "K!w1-fr8sh", Roles: []string{"teacher:"}},
			wantErr: map[string]string{"roles": allRolesTag},
		},
		{
			name:    "password too short",
			nu:      NewUser{Name: "Jane", Username: "jane", Password: "K!w1", PasswordConfirm: "K!w1"},
			wantErr: map[string]string{"password": pwdMinLenTag},
		},
		{
			name:    "password with whitespace",
			nu:      NewUser{Name: "Jane", Username: "jane", Password: "K!w1 fr8sh", PasswordConfirm: "K!w1 fr8sh"},
			wantErr: map[string]string{"password": pwdNoSpaceTag},
		},
		{
			name:    "password all numeric",
			nu:      NewUser{Name: "Jane", Username: "jane", Password: "98127364", PasswordConfirm: "98127364"},
			wantErr: map[string]string{"password": pwdNotAllNumTag},
		},
		{
			name:    "password not complex",
			nu:      NewUser{Name: "Jane", Username: "jane", Password: "kiwifresh1", PasswordConfirm: "kiwifresh1"},
			wantErr: map[string]string{"password": pwdComplexityTag},
		},
		{
			name:    "password similar to email",
			nu:      NewUser{Name: "Jane", Email: "jane.doe@test.cd", Password: "Jane.Doe@test1", PasswordConfirm: "Jane.Doe@test1"},
			wantErr: map[string]string{"password": pwdAttrSimTag},
		},
		{
			name:    "password too common",
			nu:      NewUser{Name: "Jane", Username: "jane", Password: "P@$$w0rd", PasswordConfirm: "P@$$w0rd"},
			wantErr: map[string]string{"password": pwdNoCommonTag},
		},
		{
			name:    "password confirm mismatch",
			nu:      NewUser{Name: "Jane", Username: "jane", Password: "K!w1-fr8sh", PasswordConfirm: "K!w1-fr8sh2"},
			wantErr: map[string]string{"password_confirm": "eqfield"},
		},
		{
			name: "valid",
			nu:   NewUser{Name: " Jane ", Username: " JANE_01 ", Email: "Jane@Test.cd", Password: "K!w1-fr8sh", PasswordConfirm: "K!w1-fr8sh", Roles: []string{RoleAdmin}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(validate)
			got := fieldErrors(err)
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				if tt.nu.Username != "jane_01" || tt.nu.Email != "jane@test.cd" || tt.nu.Name != "Jane" {
					t.Errorf("Validate() did not clean fields: %+v", tt.nu)
				}
				return
			}
			for fld, tag := range tt.wantErr {
				if got[fld] != tag {
					t.Errorf("Validate() error[%s] = %q, want %q (all: %v)", fld, got[fld], tag, got)
				}
			}
		})
	}
}

func TestNewStudent_Validate(t *testing.T) {
	validate := newValidator(t)

	ns := NewStudent{Name: " Amina ", RFIDUID: " a1b2c3d4 ", RollNo: "CS-042", Semester: "5th", Batch: "2023"}
	if err := ns.Validate(validate); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}
	if ns.RFIDUID != "A1B2C3D4" || ns.Name != "Amina" {
		t.Errorf("Validate() did not clean fields: %+v", ns)
	}

	bad := NewStudent{RFIDUID: "??", Email: "lol"}
	got := fieldErrors(bad.Validate(validate))
	want := map[string]string{
		"name":     "required",
		"rfid_uid": "rfiduid",
		"roll_no":  "required",
		"semester": "required",
		"batch":    "required",
		"email":    "email",
	}
	for fld, tag := range want {
		if got[fld] != tag {
			t.Errorf("Validate() error[%s] = %q, want %q", fld, got[fld], tag)
		}
	}
}

func TestUpdateUser_Validate(t *testing.T) {
	validate := newValidator(t)
	orig := User{ID: "1", Name: "Amina", Email: "amina@test.cd", RFIDUID: "A1B2C3D4", RollNo: "CS-042", Semester: "5th", Batch: "2023"}

	uu := UpdateUser{Semester: "6th", RFIDUID: "a1b2c3d4"}
	if err := uu.Validate(orig, validate); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}
	if uu.Name != orig.Name || uu.Email != orig.Email || uu.RollNo != orig.RollNo || uu.Semester != "6th" {
		t.Errorf("Validate() did not keep original fields: %+v", uu)
	}

	uu = UpdateUser{RFIDUID: "FFFF0000"}
	err := uu.Validate(orig, validate)
	vErr, ok := err.(*core.ValidationError)
	if !ok || vErr.Err != ErrRFIDImmutable {
		t.Errorf("Validate() error = %v, want %v", err, ErrRFIDImmutable)
	}
}
