package attendance

import (
	"time"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/device"
	"github.com/vericlock/vericlock/core/user"
)

const StatusPresent = "Present"

// Log is a single attendance scan. User and device details are copied at scan time.
type Log struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	RollNo     string    `json:"roll_no"`
	Semester   string    `json:"semester"`
	RFIDUID    string    `json:"rfid_uid"`
	DeviceID   string    `json:"device_id"`
	Department string    `json:"department"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"` // UTC
}

type QueryFilter struct {
	From       time.Time `query:"-"` // first day, inclusive
	To         time.Time `query:"-"` // last day, inclusive
	UserID     string    `query:"user_id"`
	DeviceID   string    `query:"device_id"`
	Semester   string    `query:"semester"`
	Department string    `query:"department"`
	Search     string    `query:"search"` // user name, roll no or RFID UID
	Limit      int       `query:"limit"`

	// exact bounds used by repositories, derived from From & To by Clean
	Since time.Time `query:"-"`
	Until time.Time `query:"-"` // exclusive
}

// Clean trims the filter and turns the From & To days into timestamp bounds in loc.
func (qf *QueryFilter) Clean(loc *time.Location) {
	qf.UserID = core.CleanString(qf.UserID)
	qf.DeviceID = core.CleanString(qf.DeviceID)
	qf.Semester = core.CleanString(qf.Semester)
	qf.Department = core.CleanString(qf.Department)
	qf.Search = core.CleanString(qf.Search)
	if qf.Limit < 0 {
		qf.Limit = 0
	}
	if !qf.From.IsZero() {
		qf.Since = core.StartOfDay(qf.From, loc)
	}
	if !qf.To.IsZero() {
		qf.Until = core.StartOfDay(qf.To, loc).AddDate(0, 0, 1)
	}
}

type (
	// MonthSummary is the attendance of one user over a calendar month.
	MonthSummary struct {
		Month             string   `json:"month"` // YYYY-MM
		PresentDays       int      `json:"present_days"`
		AbsentDays        int      `json:"absent_days"`
		PresentPercentage float64  `json:"present_percentage"`
		AttendedDates     []string `json:"attended_dates"` // YYYY-MM-DD
	}

	// Calendar is the month summary along with the scans of a selected day.
	Calendar struct {
		MonthSummary
		Day      string `json:"day"` // YYYY-MM-DD
		DayScans int    `json:"day_scans"`
	}

	WeekDay struct {
		Day      string `json:"day"`  // Mon, Tue, ...
		Date     string `json:"date"` // YYYY-MM-DD
		Attended bool   `json:"attended"`
	}

	// Streak counts consecutive attended weekdays; weekends never break a streak.
	Streak struct {
		Current int       `json:"current"`
		Record  int       `json:"record"`
		Week    []WeekDay `json:"week"` // Monday to today
	}

	WeekDayCount struct {
		Day   string `json:"day"`
		Date  string `json:"date"`
		Count int    `json:"count"`
	}

	// WeekChart counts scans per day of the current week, Monday to Sunday.
	WeekChart struct {
		Days  []WeekDayCount `json:"days"`
		Total int            `json:"total"`
	}

	// AdminSummary feeds the admin dashboard.
	AdminSummary struct {
		Users       int             `json:"users"`
		Devices     int             `json:"devices"`
		TodayScans  int             `json:"today_scans"`
		DeviceList  []device.Status `json:"device_list"`
		RecentUsers []user.User     `json:"recent_users"`
	}
)
