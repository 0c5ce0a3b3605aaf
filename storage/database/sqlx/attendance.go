package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/attendance"
)

const logColumns = "id, user_id, user_name, roll_no, semester, rfid_uid, device_id, department, status, timestamp"

var logOrderings = map[string]bool{
	"timestamp": true, "user_name": true, "roll_no": true, "semester": true, "department": true,
}

type logRow struct {
	ID         string `db:"id"`
	UserID     string `db:"user_id"`
	UserName   string `db:"user_name"`
	RollNo     string `db:"roll_no"`
	Semester   string `db:"semester"`
	RFIDUID    string `db:"rfid_uid"`
	DeviceID   string `db:"device_id"`
	Department string `db:"department"`
	Status     string `db:"status"`
	Timestamp  int64  `db:"timestamp"`
}

func toLogRow(log attendance.Log) logRow {
	return logRow{
		ID:         log.ID,
		UserID:     log.UserID,
		UserName:   log.UserName,
		RollNo:     log.RollNo,
		Semester:   log.Semester,
		RFIDUID:    log.RFIDUID,
		DeviceID:   log.DeviceID,
		Department: log.Department,
		Status:     log.Status,
		Timestamp:  toMillis(log.Timestamp),
	}
}

func (row logRow) log() attendance.Log {
	return attendance.Log{
		ID:         row.ID,
		UserID:     row.UserID,
		UserName:   row.UserName,
		RollNo:     row.RollNo,
		Semester:   row.Semester,
		RFIDUID:    row.RFIDUID,
		DeviceID:   row.DeviceID,
		Department: row.Department,
		Status:     row.Status,
		Timestamp:  fromMillis(row.Timestamp),
	}
}

type attendanceRepository struct {
	baseRepository
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(exec core.DBExecutor) *attendanceRepository {
	return &attendanceRepository{baseRepository{exec: exec}}
}

func (repo attendanceRepository) CreateLog(ctx context.Context, log attendance.Log, exec ...core.DBExecutor) (attendance.Log, error) {
	log.ID = uuid.New().String()
	q := "INSERT INTO attendance_logs (" + logColumns + ") VALUES (:id, :user_id, :user_name, :roll_no, :semester, " +
		":rfid_uid, :device_id, :department, :status, :timestamp)"
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, toLogRow(log)); err != nil {
		return attendance.Log{}, errors.Wrap(err, "inserting attendance log")
	}
	return log, nil
}

func (repo attendanceRepository) filter(filter *attendance.QueryFilter) *whereClause {
	where := new(whereClause)
	if filter == nil {
		return where
	}
	if filter.Search != "" {
		where.likeAny(filter.Search, "user_name", "roll_no", "rfid_uid")
	}
	if filter.UserID != "" {
		where.add("user_id = ?", filter.UserID)
	}
	if filter.DeviceID != "" {
		where.add("device_id = ?", filter.DeviceID)
	}
	if filter.Semester != "" {
		where.add("semester = ?", filter.Semester)
	}
	if filter.Department != "" {
		where.add("department = ?", filter.Department)
	}
	if !filter.Since.IsZero() {
		where.add("timestamp >= ?", toMillis(filter.Since))
	}
	if !filter.Until.IsZero() {
		where.add("timestamp < ?", toMillis(filter.Until))
	}
	return where
}

func (repo attendanceRepository) QueryLogs(ctx context.Context, filter *attendance.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]attendance.Log, error) {
	where := repo.filter(filter)
	q := "SELECT " + logColumns + " FROM attendance_logs" + where.String() + orderBy(ordering, logOrderings, "timestamp DESC")
	if filter != nil {
		q += limit(filter.Limit)
	}

	exe := repo.getExec(exec)
	var rows []logRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance logs")
	}
	logs := make([]attendance.Log, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, row.log())
	}
	return logs, nil
}

func (repo attendanceRepository) CountLogs(ctx context.Context, filter *attendance.QueryFilter, exec ...core.DBExecutor) (int, error) {
	where := repo.filter(filter)
	exe := repo.getExec(exec)
	var cnt int
	if err := sqlx.GetContext(ctx, exe, &cnt, exe.Rebind("SELECT COUNT(*) FROM attendance_logs"+where.String()), where.args...); err != nil {
		return 0, errors.Wrap(err, "counting attendance logs")
	}
	return cnt, nil
}

func (repo attendanceRepository) DeleteLogsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	cnt, err := execIn(ctx, repo.getExec(exec), "DELETE FROM attendance_logs WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting attendance logs")
	}
	return cnt, nil
}
