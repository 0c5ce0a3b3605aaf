package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/device"
)

const deviceColumns = "id, name, department, token, mode, created_at, last_seen"

var deviceOrderings = map[string]bool{
	"name": true, "department": true, "mode": true, "created_at": true, "last_seen": true,
}

type deviceRow struct {
	ID         string     `db:"id"`
	Name       string     `db:"name"`
	Department string     `db:"department"`
	Token      string     `db:"token"`
	Mode       string     `db:"mode"`
	CreatedAt  int64      `db:"created_at"`
	LastSeen   null.Int64 `db:"last_seen"`
}

func toDeviceRow(dvc device.Device) deviceRow {
	return deviceRow{
		ID:         dvc.ID,
		Name:       dvc.Name,
		Department: dvc.Department,
		Token:      dvc.Token,
		Mode:       dvc.Mode,
		CreatedAt:  toMillis(dvc.CreatedAt),
		LastSeen:   nullMillis(dvc.LastSeen),
	}
}

func (row deviceRow) device() device.Device {
	return device.Device{
		ID:         row.ID,
		Name:       row.Name,
		Department: row.Department,
		Token:      row.Token,
		Mode:       row.Mode,
		CreatedAt:  fromMillis(row.CreatedAt),
		LastSeen:   nullTime(row.LastSeen),
	}
}

type deviceRepository struct {
	baseRepository
}

var _ device.Repository = (*deviceRepository)(nil) // interface compliance check

func NewDeviceRepository(exec core.DBExecutor) *deviceRepository {
	return &deviceRepository{baseRepository{exec: exec}}
}

func (repo deviceRepository) CreateDevice(ctx context.Context, dvc device.Device, exec ...core.DBExecutor) (device.Device, error) {
	dvc.ID = uuid.New().String()
	q := "INSERT INTO devices (" + deviceColumns + ") VALUES (:id, :name, :department, :token, :mode, :created_at, :last_seen)"
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, toDeviceRow(dvc)); err != nil {
		return device.Device{}, errors.Wrap(err, "inserting device")
	}
	return dvc, nil
}

func (repo deviceRepository) QueryDevices(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]device.Device, error) {
	exe := repo.getExec(exec)
	q := "SELECT " + deviceColumns + " FROM devices" + orderBy(ordering, deviceOrderings, "created_at DESC")
	var rows []deviceRow
	if err := sqlx.SelectContext(ctx, exe, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying devices")
	}
	devices := make([]device.Device, 0, len(rows))
	for _, row := range rows {
		devices = append(devices, row.device())
	}
	return devices, nil
}

func (repo deviceRepository) CountDevices(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var cnt int
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &cnt, "SELECT COUNT(*) FROM devices"); err != nil {
		return 0, errors.Wrap(err, "counting devices")
	}
	return cnt, nil
}

func (repo deviceRepository) GetDevice(ctx context.Context, filter device.GetFilter, exec ...core.DBExecutor) (device.Device, error) {
	where := new(whereClause)
	switch {
	case filter.ID != "":
		where.add("id = ?", filter.ID)
	case filter.Token != "":
		where.add("token = ?", filter.Token)
	default:
		return device.Device{}, device.ErrNotFound
	}

	exe := repo.getExec(exec)
	var row deviceRow
	q := exe.Rebind("SELECT " + deviceColumns + " FROM devices" + where.String() + " LIMIT 1")
	if err := sqlx.GetContext(ctx, exe, &row, q, where.args...); err != nil {
		return device.Device{}, trapNoRowsErr(err, device.ErrNotFound, "finding device")
	}
	return row.device(), nil
}

func (repo deviceRepository) UpdateDevice(ctx context.Context, dvc device.Device, exec ...core.DBExecutor) (device.Device, error) {
	q := "UPDATE devices SET name = :name, department = :department, token = :token, mode = :mode, " +
		"created_at = :created_at, last_seen = :last_seen WHERE id = :id"
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, toDeviceRow(dvc))
	if err != nil {
		return device.Device{}, errors.Wrap(err, "updating device")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return device.Device{}, device.ErrNotFound
	}
	return dvc, nil
}

func (repo deviceRepository) TouchDevice(ctx context.Context, id string, lastSeen time.Time, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("UPDATE devices SET last_seen = ? WHERE id = ?"), toMillis(lastSeen), id)
	if err != nil {
		return errors.Wrap(err, "touching device")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return device.ErrNotFound
	}
	return nil
}

func (repo deviceRepository) DeleteDevice(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM devices WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting device")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return device.ErrNotFound
	}
	return nil
}
