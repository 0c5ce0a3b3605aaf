// Package sqlxrepos implements the domain repositories on top of jmoiron/sqlx.
// Queries are written with "?" placeholders and rebound for the driver in use,
// so that the same SQL runs on Postgres & SQLite. Timestamps are stored as unix milliseconds.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/attendance"
	"github.com/vericlock/vericlock/core/device"
	"github.com/vericlock/vericlock/core/user"
)

type baseRepository struct {
	exec core.DBExecutor
}

func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps sql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// whereClause accumulates AND-ed conditions along with their arguments.
type whereClause struct {
	conds []string
	args  []interface{}
}

func (w *whereClause) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// likeAny adds a case-insensitive "contains" match on any of the columns.
func (w *whereClause) likeAny(search string, cols ...string) {
	val := "%" + strings.ToLower(search) + "%"
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		parts = append(parts, "LOWER("+col+") LIKE ?")
		w.args = append(w.args, val)
	}
	w.conds = append(w.conds, "("+strings.Join(parts, " OR ")+")")
}

// orderBy renders an ORDER BY clause, ignoring fields not in allowed.
func orderBy(ordering []core.DBOrdering, allowed map[string]bool, fallback string) string {
	list := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			list = append(list, ord.String())
		}
	}
	if len(list) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(list, ", ")
}

func limit(n int) string {
	if n > 0 {
		return " LIMIT " + strconv.Itoa(n)
	}
	return ""
}

// selectIn runs a query containing an "IN (?)" clause expanded from a slice argument.
func selectIn(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	q, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, exec, dest, exec.Rebind(q), inArgs...)
}

// execIn runs a statement containing an "IN (?)" clause and returns the number of affected rows.
func execIn(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int, error) {
	q, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return 0, err
	}
	res, err := exec.ExecContext(ctx, exec.Rebind(q), inArgs...)
	if err != nil {
		return 0, err
	}
	cnt, err := res.RowsAffected()
	return int(cnt), err
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t null.Time) null.Int64 {
	if !t.Valid {
		return null.Int64{}
	}
	return null.Int64From(toMillis(t.Time))
}

func nullTime(ms null.Int64) null.Time {
	if !ms.Valid {
		return null.Time{}
	}
	return null.TimeFrom(fromMillis(ms.Int64))
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

// Repositories bundles the repositories sharing one database handle.
type Repositories struct {
	User       user.Repository
	Device     device.Repository
	Attendance attendance.Repository
}

func NewRepositories(exec core.DBExecutor) Repositories {
	return Repositories{
		User:       NewUserRepository(exec),
		Device:     NewDeviceRepository(exec),
		Attendance: NewAttendanceRepository(exec),
	}
}
