package device

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/vericlock/vericlock/core"
)

// Modes
const (
	ModeEnrollment = "Enrollment"
	ModeAttendance = "Attendance"
)

var Modes = []string{ModeEnrollment, ModeAttendance}

type Device struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	Token      string    `json:"token"`
	Mode       string    `json:"mode"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	LastSeen   null.Time `json:"last_seen"`  // UTC
}

// IsOnline reports whether the device reached the API within threshold.
func (d Device) IsOnline(now time.Time, threshold time.Duration) bool {
	return d.LastSeen.Valid && now.Sub(d.LastSeen.Time) < threshold
}

// Status is a Device along with its online flag, as shown on dashboards.
type Status struct {
	Device
	Online bool `json:"online"`
}

// NewDevice contains information needed to register a reader.
type NewDevice struct {
	Name       string `json:"name" validate:"required"`
	Department string `json:"department" validate:"required"`
	Mode       string `json:"mode" validate:"omitempty,devicemode"`
}

func (nd *NewDevice) Validate(validate *validator.Validate) error {
	nd.Name = core.CleanString(nd.Name)
	nd.Department = core.CleanString(nd.Department)
	if nd.Mode == "" {
		nd.Mode = ModeAttendance
	}
	return validate.Struct(nd)
}

// UpdateDevice defines what may be changed on a Device. Empty fields are left unchanged.
type UpdateDevice struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	Mode       string `json:"mode" validate:"omitempty,devicemode"`
}

func (ud *UpdateDevice) Validate(orig Device, validate *validator.Validate) error {
	if ud.Name = core.CleanString(ud.Name); ud.Name == "" {
		ud.Name = orig.Name
	}
	if ud.Department = core.CleanString(ud.Department); ud.Department == "" {
		ud.Department = orig.Department
	}
	if ud.Mode == "" {
		ud.Mode = orig.Mode
	}
	return validate.Struct(ud)
}
