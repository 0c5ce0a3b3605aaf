// Package testutil holds helpers shared by the tests of the different packages.
package testutil

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/attendance"
	"github.com/vericlock/vericlock/core/device"
	"github.com/vericlock/vericlock/core/user"
	"github.com/vericlock/vericlock/storage/database"
)

// OpenDB opens a migrated in-memory SQLite database. Meant for TestMain.
func OpenDB() *sqlx.DB {
	conf := core.NewTestConfig()
	db, err := database.Open(conf)
	if err != nil {
		log.Fatalf("database.Open(): %v", err)
	}
	if err = database.Migrate(db, conf.Database.Engine); err != nil {
		log.Fatalf("database.Migrate(): %v", err)
	}
	return db
}

// PrepareDB opens a migrated in-memory SQLite database, closed at the end of the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db := OpenDB()
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC().Truncate(time.Millisecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(t *testing.T, repo user.Repository, name, email, rfidUID, semester string, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC().Truncate(time.Millisecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr, err := repo.CreateUser(context.Background(), user.User{
		Name:      name,
		Email:     email,
		IsActive:  true,
		Roles:     []string{user.RoleStudent},
		RFIDUID:   rfidUID,
		RollNo:    "R-" + rfidUID,
		Semester:  semester,
		Batch:     "2024",
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return usr
}

func CreateDevice(t *testing.T, repo device.Repository, name, department, token, mode string) device.Device {
	t.Helper()
	dvc, err := repo.CreateDevice(context.Background(), device.Device{
		Name:       name,
		Department: department,
		Token:      token,
		Mode:       mode,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	})
	if err != nil {
		t.Fatalf("CreateDevice() failed: %v", err)
	}
	return dvc
}

func CreateLog(t *testing.T, repo attendance.Repository, usr user.User, dvc device.Device, tstamp time.Time) attendance.Log {
	t.Helper()
	attLog, err := repo.CreateLog(context.Background(), attendance.Log{
		UserID:     usr.ID,
		UserName:   usr.Name,
		RollNo:     usr.RollNo,
		Semester:   usr.Semester,
		RFIDUID:    usr.RFIDUID,
		DeviceID:   dvc.ID,
		Department: dvc.Department,
		Status:     attendance.StatusPresent,
		Timestamp:  tstamp.UTC(),
	})
	if err != nil {
		t.Fatalf("CreateLog() failed: %v", err)
	}
	return attLog
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// NopLogger discards everything.
func NopLogger() core.Logger { return nopLogger{} }
