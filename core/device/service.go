package device

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/vericlock/vericlock/core"
)

var (
	NowFunc = time.Now // mockable

	tokenSize = 16 // bytes, hex encoded

	// errors
	ErrNotFound = errors.New("device not found")
)

type (
	Repository interface {
		CreateDevice(ctx context.Context, dvc Device, exec ...core.DBExecutor) (Device, error)
		QueryDevices(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Device, error)
		CountDevices(ctx context.Context, exec ...core.DBExecutor) (int, error)
		GetDevice(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Device, error)
		UpdateDevice(ctx context.Context, dvc Device, exec ...core.DBExecutor) (Device, error)
		// TouchDevice sets LastSeen without loading the device.
		TouchDevice(ctx context.Context, id string, lastSeen time.Time, exec ...core.DBExecutor) error
		DeleteDevice(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, nd NewDevice) (Device, error)
		Query(ctx context.Context, ordering []core.DBOrdering) ([]Device, error)
		Statuses(ctx context.Context) ([]Status, error)
		Count(ctx context.Context) (int, error)
		GetByID(ctx context.Context, id string) (Device, error)
		GetByToken(ctx context.Context, token string) (Device, error)
		Update(ctx context.Context, dvc Device, ud UpdateDevice) (Device, error)
		RegenerateToken(ctx context.Context, dvc Device) (Device, error)
		Touch(ctx context.Context, dvc Device) (Device, error)
		Delete(ctx context.Context, id string) error
	}

	// GetFilter selects a single device; the first non-empty field wins.
	GetFilter struct {
		ID    string
		Token string
	}

	service struct {
		repo            Repository
		onlineThreshold time.Duration
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, conf *core.Config) Service {
	return &service{
		repo:            repo,
		onlineThreshold: conf.RFID.OnlineThreshold,
	}
}

func now() time.Time {
	return NowFunc().UTC().Truncate(time.Millisecond)
}

func newToken() (string, error) {
	token, err := core.RandomToken(tokenSize)
	return token, errors.Wrap(err, "generating device token")
}

func (svc *service) Create(ctx context.Context, nd NewDevice) (Device, error) {
	token, err := newToken()
	if err != nil {
		return Device{}, err
	}
	mode := nd.Mode
	if mode == "" {
		mode = ModeAttendance
	}
	return svc.repo.CreateDevice(ctx, Device{
		Name:       nd.Name,
		Department: nd.Department,
		Token:      token,
		Mode:       mode,
		CreatedAt:  now(),
	})
}

func (svc *service) Query(ctx context.Context, ordering []core.DBOrdering) ([]Device, error) {
	return svc.repo.QueryDevices(ctx, ordering)
}

// Statuses returns every device with its online flag, newest first.
func (svc *service) Statuses(ctx context.Context) ([]Status, error) {
	devices, err := svc.repo.QueryDevices(ctx, []core.DBOrdering{{Field: "created_at"}})
	if err != nil {
		return nil, errors.Wrap(err, "querying devices")
	}
	tstamp := NowFunc()
	statuses := make([]Status, 0, len(devices))
	for _, dvc := range devices {
		statuses = append(statuses, Status{Device: dvc, Online: dvc.IsOnline(tstamp, svc.onlineThreshold)})
	}
	return statuses, nil
}

func (svc *service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountDevices(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (Device, error) {
	return svc.repo.GetDevice(ctx, GetFilter{ID: id})
}

func (svc *service) GetByToken(ctx context.Context, token string) (Device, error) {
	if token = core.CleanString(token); token == "" {
		return Device{}, ErrNotFound
	}
	return svc.repo.GetDevice(ctx, GetFilter{Token: token})
}

// Update applies ud to dvc. ud must have been validated against dvc.
func (svc *service) Update(ctx context.Context, dvc Device, ud UpdateDevice) (Device, error) {
	dvc.Name = ud.Name
	dvc.Department = ud.Department
	dvc.Mode = ud.Mode
	return svc.repo.UpdateDevice(ctx, dvc)
}

// RegenerateToken issues a new token; the previous one stops working immediately.
func (svc *service) RegenerateToken(ctx context.Context, dvc Device) (Device, error) {
	token, err := newToken()
	if err != nil {
		return Device{}, err
	}
	dvc.Token = token
	return svc.repo.UpdateDevice(ctx, dvc)
}

func (svc *service) Touch(ctx context.Context, dvc Device) (Device, error) {
	tstamp := now()
	if err := svc.repo.TouchDevice(ctx, dvc.ID, tstamp); err != nil {
		return Device{}, errors.Wrap(err, "touching device")
	}
	dvc.LastSeen = null.TimeFrom(tstamp)
	return dvc, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteDevice(ctx, id)
}
