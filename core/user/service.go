package user

import (
	"context"
	"crypto/subtle"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/vericlock/vericlock/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound         = errors.New("user not found")
	ErrEmailExists      = errors.New("a user with this email already exists")
	ErrUsernameExists   = errors.New("a user with this username already exists")
	ErrRFIDExists       = errors.New("a user is already registered with this RFID UID")
	ErrRFIDImmutable    = errors.New("RFID UID cannot be changed")
	ErrStudentNotFound  = errors.New("no student found with this email")
	ErrIncorrectRFID    = errors.New("incorrect RFID UID")
	ErrAccountExpired   = errors.New("account expired")
	ErrInvalidResetLink = errors.New("invalid value")
)

type (
	Repository interface {
		// CheckUniqueness returns one of ErrUsernameExists, ErrEmailExists or ErrRFIDExists
		// when another user (not in excludedUsers) holds one of the provided non-empty values.
		CheckUniqueness(ctx context.Context, username, email, rfidUID string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username, User.Email or User.RollNo.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		CountUsers(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (int, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
		// DeactivateExpiredUsers deactivates active users whose validity date is before now.
		DeactivateExpiredUsers(ctx context.Context, now time.Time, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email, rfidUID string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		RegisterStudent(ctx context.Context, ns NewStudent) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Count(ctx context.Context, filter *QueryFilter) (int, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByRFID(ctx context.Context, uid string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) (int, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		AuthenticateStudent(ctx context.Context, email, rfidUID string) (User, error)
		DeactivateExpired(ctx context.Context) (int, error)
	}

	service struct {
		db      core.DB
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		db:      db,
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func now() time.Time {
	return NowFunc().UTC().Truncate(time.Millisecond)
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email, rfidUID string, exclUsers ...User) error {
	return svc.checkUniqueness(ctx, uname, email, rfidUID, exclUsers)
}

func (svc *service) checkUniqueness(ctx context.Context, uname, email, rfidUID string, exclUsers []User, exec ...core.DBExecutor) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, rfidUID, exclUsers, exec...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		case ErrRFIDExists:
			field = "rfid_uid"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email, "", nil); err != nil {
		return User{}, err
	}

	tstamp := now()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) RegisterStudent(ctx context.Context, ns NewStudent) (User, error) {
	tstamp := now()
	usr := User{
		Name:               ns.Name,
		Email:              ns.Email,
		IsActive:           true,
		Roles:              []string{RoleStudent},
		RFIDUID:            ns.RFIDUID,
		RollNo:             ns.RollNo,
		Semester:           ns.Semester,
		Batch:              ns.Batch,
		CanAccessResources: ns.CanAccessResources,
		CreatedAt:          tstamp,
		UpdatedAt:          tstamp,
	}
	if ns.ValidityDate.Valid {
		usr.ValidityDate = null.TimeFrom(ns.ValidityDate.Time.UTC().Truncate(time.Millisecond))
	}

	err := core.WithTx(ctx, svc.db, func(exec core.DBExecutor) error {
		if err := svc.checkUniqueness(ctx, "", usr.Email, usr.RFIDUID, nil, exec); err != nil {
			return err
		}
		var err error
		usr, err = svc.repo.CreateUser(ctx, usr, exec)
		return err
	})
	if err != nil {
		return User{}, err
	}

	if usr.Email != "" {
		svc.sendWelcomeMail(usr)
	}
	return usr, nil
}

func (svc *service) sendWelcomeMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to VeriClock",
		TemplateName: "welcome",
		TemplateData: welcomeData{
			Name:     usr.Name,
			RollNo:   usr.RollNo,
			Semester: usr.Semester,
			Batch:    usr.Batch,
			RFIDUID:  usr.RFIDUID,
		},
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	return svc.repo.CountUsers(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByRFID(ctx context.Context, uid string) (User, error) {
	uid = NormalizeRFID(uid)
	if uid == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{RFIDUID: uid})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{Email: email})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	if uname == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{uname}})
}

// Update applies uu to usr. uu must have been validated against usr.
func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	if err := svc.checkUniqueness(ctx, uu.Username, uu.Email, "", []User{usr}); err != nil {
		return User{}, err
	}

	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	usr.RollNo = uu.RollNo
	usr.Semester = uu.Semester
	usr.Batch = uu.Batch
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.CanAccessResources != nil {
		usr.CanAccessResources = *uu.CanAccessResources
	}
	if uu.ValidityDate.Valid {
		usr.ValidityDate = null.TimeFrom(uu.ValidityDate.Time.UTC().Truncate(time.Millisecond))
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = null.TimeFrom(now())
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return svc.repo.DeleteUsersByID(ctx, ids)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive || !usr.HasPassword() {
		return ErrNotFound
	}
	token, err := MakeToken(usr, svc.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "making token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: passwordResetData{
			Name:  usr.Name,
			UID:   EncodeUID(usr),
			Token: token,
		},
	})
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalidErr := func(field string) error {
		return core.NewValidationError(ErrInvalidResetLink, core.FieldError{Field: field, Error: ErrInvalidResetLink.Error()})
	}

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalidErr("uid")
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidErr("uid")
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = verifyToken(usr, data.Token, svc.conf.SecretKey, svc.conf.PasswordResetTimeoutDelta); err != nil {
		return invalidErr("token")
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = now()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

// AuthenticateStudent checks a student's email and card UID.
func (svc *service) AuthenticateStudent(ctx context.Context, email, rfidUID string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrStudentNotFound
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if !usr.IsStudent() || usr.IsAdmin() {
		return User{}, ErrStudentNotFound
	}
	if subtle.ConstantTimeCompare([]byte(usr.RFIDUID), []byte(NormalizeRFID(rfidUID))) == 0 {
		return User{}, ErrIncorrectRFID
	}
	if usr.IsExpired(NowFunc()) {
		return User{}, ErrAccountExpired
	}
	return usr, nil
}

func (svc *service) DeactivateExpired(ctx context.Context) (int, error) {
	return svc.repo.DeactivateExpiredUsers(ctx, now())
}
