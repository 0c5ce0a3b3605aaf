package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/vericlock/vericlock/core"
)

// Roles
const (
	// Admin
	RoleAdmin      = "admin:"
	RoleAdminOwner = "admin:owner"

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner}
	StudentRoles = []string{RoleStudent}
	AllRoles     = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner: 30,
		RoleAdmin:      21,

		// Students: 10 - 1
		RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 3)
	all = append(all, AdminRoles...)
	all = append(all, StudentRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Username           string    `json:"username"`
	Email              string    `json:"email"`
	IsActive           bool      `json:"is_active"`
	Roles              []string  `json:"roles"`
	PasswordHash       []byte    `json:"-"`
	RFIDUID            string    `json:"rfid_uid"`
	RollNo             string    `json:"roll_no"`
	Semester           string    `json:"semester"`
	Batch              string    `json:"batch"`
	CanAccessResources bool      `json:"can_access_resources"`
	ValidityDate       null.Time `json:"validity_date"` // UTC
	CreatedAt          time.Time `json:"created_at"`    // UTC; registration time for students
	UpdatedAt          time.Time `json:"updated_at"`    // UTC
	LastLogin          null.Time `json:"last_login"`    // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) HasPassword() bool {
	return len(u.PasswordHash) > 0
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsStudent() bool {
	return u.RoleStartsWith(RoleStudent)
}

// IsExpired reports whether the account validity date has passed.
func (u *User) IsExpired(now time.Time) bool {
	return u.ValidityDate.Valid && now.After(u.ValidityDate.Time)
}

// NewUser contains information needed to create a new User with a password.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=4,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// NewStudent contains information needed to register a student card.
type NewStudent struct {
	Name               string    `json:"name" validate:"required"`
	RFIDUID            string    `json:"rfid_uid" validate:"required,rfiduid"`
	RollNo             string    `json:"roll_no" validate:"required"`
	Semester           string    `json:"semester" validate:"required"`
	Batch              string    `json:"batch" validate:"required"`
	Email              string    `json:"email" validate:"omitempty,email"`
	CanAccessResources bool      `json:"can_access_resources"`
	ValidityDate       null.Time `json:"validity_date"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.RFIDUID = NormalizeRFID(ns.RFIDUID)
	ns.RollNo = core.CleanString(ns.RollNo)
	ns.Semester = core.CleanString(ns.Semester)
	ns.Batch = core.CleanString(ns.Batch)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	return validate.Struct(ns)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty fields are left unchanged.
type UpdateUser struct {
	Name               string    `json:"name"`
	Username           string    `json:"username" validate:"omitempty,min=4,alphanum_"`
	Email              string    `json:"email" validate:"omitempty,email"`
	IsActive           *bool     `json:"is_active"`
	Roles              []string  `json:"roles" validate:"omitempty,allroles"`
	Password           string    `json:"password" validate:"omitempty"`
	PasswordConfirm    string    `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
	RFIDUID            string    `json:"rfid_uid"`
	RollNo             string    `json:"roll_no"`
	Semester           string    `json:"semester"`
	Batch              string    `json:"batch"`
	CanAccessResources *bool     `json:"can_access_resources"`
	ValidityDate       null.Time `json:"validity_date"`
}

// IsPrivileged reports whether the update touches fields only admins may change.
func (uu *UpdateUser) IsPrivileged() bool {
	return uu.IsActive != nil || uu.Roles != nil || uu.CanAccessResources != nil || uu.ValidityDate.Valid ||
		uu.Username != "" || uu.Email != "" || uu.RollNo != "" || uu.Semester != "" || uu.Batch != ""
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate) error {
	keep := func(val, orig string, lower bool) string {
		if val = core.CleanString(val, lower); val != "" {
			return val
		}
		return orig
	}
	uu.Name = keep(uu.Name, origUsr.Name, false)
	uu.Username = keep(uu.Username, origUsr.Username, true)
	uu.Email = keep(uu.Email, origUsr.Email, true)
	uu.RollNo = keep(uu.RollNo, origUsr.RollNo, false)
	uu.Semester = keep(uu.Semester, origUsr.Semester, false)
	uu.Batch = keep(uu.Batch, origUsr.Batch, false)

	if uid := NormalizeRFID(uu.RFIDUID); uid != "" && uid != origUsr.RFIDUID {
		return core.NewValidationError(ErrRFIDImmutable, core.FieldError{Field: "rfid_uid", Error: ErrRFIDImmutable.Error()})
	}
	return validate.Struct(uu)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type StudentLogin struct {
	Email   string `json:"email" validate:"required,email"`
	RFIDUID string `json:"rfid_uid" validate:"required"`
}

func (sl *StudentLogin) Validate(validate *validator.Validate) error {
	sl.Email = core.CleanString(sl.Email, true /* lower */)
	sl.RFIDUID = NormalizeRFID(sl.RFIDUID)
	return validate.Struct(sl)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	Semester    string    `query:"semester"`
	Batch       string    `query:"batch"`
	CreatedFrom time.Time `query:"-"` // bound from created_from
	CreatedTo   time.Time `query:"-"` // bound from created_to
	Limit       int       `query:"limit"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.Semester == "" && qf.Batch == "" &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Semester = core.CleanString(qf.Semester)
	qf.Batch = core.CleanString(qf.Batch)
	if qf.Limit < 0 {
		qf.Limit = 0
	}
}

// GetFilter selects a single user; the first non-empty field wins.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	RFIDUID         string
	UsernameOrEmail []string // [username, email]
}

// NormalizeRFID trims and upper-cases a card UID as sent by the readers.
func NormalizeRFID(uid string) string {
	return strings.ToUpper(core.CleanString(uid))
}

type (
	passwordResetData struct {
		Name  string
		UID   string
		Token string
	}

	welcomeData struct {
		Name     string
		RollNo   string
		Semester string
		Batch    string
		RFIDUID  string
	}
)
