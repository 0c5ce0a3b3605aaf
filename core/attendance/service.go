package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/device"
	"github.com/vericlock/vericlock/core/user"
)

var (
	NowFunc = time.Now // mockable

	recentUsersLimit = 5
)

type (
	Repository interface {
		CreateLog(ctx context.Context, log Log, exec ...core.DBExecutor) (Log, error)
		// QueryLogs applies AND operation on available QueryFilter fields, using Since & Until as time bounds.
		// QueryFilter.Search does a case-insensitive match on one of Log.UserName, Log.RollNo or Log.RFIDUID.
		QueryLogs(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Log, error)
		CountLogs(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (int, error)
		DeleteLogsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		// Record appends a Present log for usr scanned at dvc.
		Record(ctx context.Context, usr user.User, dvc device.Device) (Log, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Log, error)
		Count(ctx context.Context, filter *QueryFilter) (int, error)
		Delete(ctx context.Context, ids ...string) (int, error)
		Calendar(ctx context.Context, usr user.User, month, day time.Time) (Calendar, error)
		Streak(ctx context.Context, usr user.User) (Streak, error)
		Week(ctx context.Context) (WeekChart, error)
		AdminSummary(ctx context.Context) (AdminSummary, error)
	}

	service struct {
		repo   Repository
		usrSvc user.Service
		dvcSvc device.Service
		loc    *time.Location
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, dvcSvc device.Service, conf *core.Config) Service {
	return &service{
		repo:   repo,
		usrSvc: usrSvc,
		dvcSvc: dvcSvc,
		loc:    conf.Location(),
	}
}

func now() time.Time {
	return NowFunc().UTC().Truncate(time.Millisecond)
}

func (svc *service) Record(ctx context.Context, usr user.User, dvc device.Device) (Log, error) {
	log, err := svc.repo.CreateLog(ctx, Log{
		UserID:     usr.ID,
		UserName:   usr.Name,
		RollNo:     usr.RollNo,
		Semester:   usr.Semester,
		RFIDUID:    usr.RFIDUID,
		DeviceID:   dvc.ID,
		Department: dvc.Department,
		Status:     StatusPresent,
		Timestamp:  now(),
	})
	return log, errors.Wrap(err, "recording attendance")
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Log, error) {
	if filter == nil {
		filter = &QueryFilter{}
	}
	filter.Clean(svc.loc)
	if ordering == nil {
		ordering = []core.DBOrdering{{Field: "timestamp"}}
	}
	return svc.repo.QueryLogs(ctx, filter, ordering)
}

func (svc *service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	if filter == nil {
		filter = &QueryFilter{}
	}
	filter.Clean(svc.loc)
	return svc.repo.CountLogs(ctx, filter)
}

func (svc *service) Delete(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return svc.repo.DeleteLogsByID(ctx, ids)
}

// userLogs returns every log of usr within [since, until).
func (svc *service) userLogs(ctx context.Context, usr user.User, since, until time.Time) ([]Log, error) {
	logs, err := svc.repo.QueryLogs(ctx, &QueryFilter{UserID: usr.ID, Since: since, Until: until}, nil)
	return logs, errors.Wrap(err, "querying user logs")
}

func (svc *service) Calendar(ctx context.Context, usr user.User, month, day time.Time) (Calendar, error) {
	tstamp := NowFunc()
	if month.IsZero() {
		month = tstamp
	}
	if day.IsZero() {
		day = tstamp
	}
	monthStart, monthEnd := monthBounds(month, svc.loc)
	dayStart := core.StartOfDay(day, svc.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	since, until := monthStart, monthEnd
	if dayStart.Before(since) {
		since = dayStart
	}
	if dayEnd.After(until) {
		until = dayEnd
	}
	logs, err := svc.userLogs(ctx, usr, since, until)
	if err != nil {
		return Calendar{}, err
	}
	return Calendar{
		MonthSummary: Month(logs, month, tstamp, svc.loc),
		Day:          dayStart.Format(dateLayout),
		DayScans:     DayScans(logs, day, svc.loc),
	}, nil
}

func (svc *service) Streak(ctx context.Context, usr user.User) (Streak, error) {
	logs, err := svc.userLogs(ctx, usr, time.Time{}, time.Time{})
	if err != nil {
		return Streak{}, err
	}
	return Streaks(logs, NowFunc(), svc.loc), nil
}

func (svc *service) Week(ctx context.Context) (WeekChart, error) {
	tstamp := NowFunc()
	monday := startOfWeek(tstamp, svc.loc)
	logs, err := svc.repo.QueryLogs(ctx, &QueryFilter{Since: monday, Until: monday.AddDate(0, 0, 7)}, nil)
	if err != nil {
		return WeekChart{}, errors.Wrap(err, "querying week logs")
	}
	return Week(logs, tstamp, svc.loc), nil
}

func (svc *service) AdminSummary(ctx context.Context) (AdminSummary, error) {
	var (
		summary AdminSummary
		err     error
	)
	students := &user.QueryFilter{Roles: user.StudentRoles}
	if summary.Users, err = svc.usrSvc.Count(ctx, students); err != nil {
		return summary, errors.Wrap(err, "counting users")
	}
	if summary.Devices, err = svc.dvcSvc.Count(ctx); err != nil {
		return summary, errors.Wrap(err, "counting devices")
	}

	today := core.StartOfDay(NowFunc(), svc.loc)
	if summary.TodayScans, err = svc.repo.CountLogs(ctx, &QueryFilter{Since: today, Until: today.AddDate(0, 0, 1)}); err != nil {
		return summary, errors.Wrap(err, "counting today scans")
	}
	if summary.DeviceList, err = svc.dvcSvc.Statuses(ctx); err != nil {
		return summary, errors.Wrap(err, "querying device statuses")
	}

	recent := &user.QueryFilter{Roles: user.StudentRoles, Limit: recentUsersLimit}
	if summary.RecentUsers, err = svc.usrSvc.Query(ctx, recent, []core.DBOrdering{{Field: "created_at"}}); err != nil {
		return summary, errors.Wrap(err, "querying recent users")
	}
	return summary, nil
}
