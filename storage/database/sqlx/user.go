package sqlxrepos

import (
	"context"
	"database/sql/driver"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/user"
)

const userColumns = "id, name, username, email, is_active, roles, password_hash, rfid_uid, roll_no, semester, batch, " +
	"can_access_resources, validity_date, created_at, updated_at, last_login"

var userOrderings = map[string]bool{
	"name": true, "username": true, "email": true, "roll_no": true, "semester": true, "batch": true,
	"created_at": true, "updated_at": true, "last_login": true,
}

// roleList is stored as ",role1,role2," so that roles can be matched by prefix with LIKE.
type roleList []string

func (rl roleList) Value() (driver.Value, error) {
	if len(rl) == 0 {
		return "", nil
	}
	return "," + strings.Join(rl, ",") + ",", nil
}

func (rl *roleList) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case nil:
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return errors.Errorf("cannot scan %T into roles", src)
	}
	*rl = nil
	for _, role := range strings.Split(s, ",") {
		if role != "" {
			*rl = append(*rl, role)
		}
	}
	return nil
}

type userRow struct {
	ID                 string      `db:"id"`
	Name               string      `db:"name"`
	Username           null.String `db:"username"`
	Email              null.String `db:"email"`
	IsActive           bool        `db:"is_active"`
	Roles              roleList    `db:"roles"`
	PasswordHash       []byte      `db:"password_hash"`
	RFIDUID            null.String `db:"rfid_uid"`
	RollNo             string      `db:"roll_no"`
	Semester           string      `db:"semester"`
	Batch              string      `db:"batch"`
	CanAccessResources bool        `db:"can_access_resources"`
	ValidityDate       null.Int64  `db:"validity_date"`
	CreatedAt          int64       `db:"created_at"`
	UpdatedAt          int64       `db:"updated_at"`
	LastLogin          null.Int64  `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:                 usr.ID,
		Name:               usr.Name,
		Username:           nullString(usr.Username),
		Email:              nullString(usr.Email),
		IsActive:           usr.IsActive,
		Roles:              usr.Roles,
		PasswordHash:       usr.PasswordHash,
		RFIDUID:            nullString(usr.RFIDUID),
		RollNo:             usr.RollNo,
		Semester:           usr.Semester,
		Batch:              usr.Batch,
		CanAccessResources: usr.CanAccessResources,
		ValidityDate:       nullMillis(usr.ValidityDate),
		CreatedAt:          toMillis(usr.CreatedAt),
		UpdatedAt:          toMillis(usr.UpdatedAt),
		LastLogin:          nullMillis(usr.LastLogin),
	}
}

func (row userRow) user() user.User {
	return user.User{
		ID:                 row.ID,
		Name:               row.Name,
		Username:           row.Username.String,
		Email:              row.Email.String,
		IsActive:           row.IsActive,
		Roles:              row.Roles,
		PasswordHash:       row.PasswordHash,
		RFIDUID:            row.RFIDUID.String,
		RollNo:             row.RollNo,
		Semester:           row.Semester,
		Batch:              row.Batch,
		CanAccessResources: row.CanAccessResources,
		ValidityDate:       nullTime(row.ValidityDate),
		CreatedAt:          fromMillis(row.CreatedAt),
		UpdatedAt:          fromMillis(row.UpdatedAt),
		LastLogin:          nullTime(row.LastLogin),
	}
}

type userRepository struct {
	baseRepository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{baseRepository{exec: exec}}
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email, rfidUID string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	var (
		conds []string
		args  []interface{}
	)
	for col, val := range map[string]string{"username": username, "email": email, "rfid_uid": rfidUID} {
		if val != "" {
			conds = append(conds, col+" = ?")
			args = append(args, val)
		}
	}
	if len(conds) == 0 {
		return nil
	}

	q := "SELECT " + userColumns + " FROM users WHERE (" + strings.Join(conds, " OR ") + ")"
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q += " AND id NOT IN (?)"
		args = append(args, ids)
	}

	var rows []userRow
	if err := selectIn(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if username != "" && row.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	for _, row := range rows {
		if email != "" && row.Email.String == email {
			return user.ErrEmailExists
		}
	}
	if len(rows) > 0 {
		return user.ErrRFIDExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	q := "INSERT INTO users (" + userColumns + ") VALUES (:id, :name, :username, :email, :is_active, :roles, " +
		":password_hash, :rfid_uid, :roll_no, :semester, :batch, :can_access_resources, :validity_date, " +
		":created_at, :updated_at, :last_login)"
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, toUserRow(usr)); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) filter(filter *user.QueryFilter) *whereClause {
	where := new(whereClause)
	if filter == nil {
		return where
	}

	// users with Name, Username, Email or RollNo matching the search keyword
	if filter.Search != "" {
		where.likeAny(filter.Search, "name", "username", "email", "roll_no")
	}
	// users with any role that starts with any of the provided roles
	if len(filter.Roles) > 0 {
		parts := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			parts = append(parts, "roles LIKE ?")
			where.args = append(where.args, "%,"+role+"%")
		}
		where.conds = append(where.conds, "("+strings.Join(parts, " OR ")+")")
	}
	if filter.IsActive != nil {
		where.add("is_active = ?", *filter.IsActive)
	}
	if filter.Semester != "" {
		where.add("semester = ?", filter.Semester)
	}
	if filter.Batch != "" {
		where.add("batch = ?", filter.Batch)
	}
	if !filter.CreatedFrom.IsZero() {
		where.add("created_at >= ?", toMillis(filter.CreatedFrom))
	}
	if !filter.CreatedTo.IsZero() {
		where.add("created_at <= ?", toMillis(filter.CreatedTo))
	}
	return where
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	where := repo.filter(filter)
	q := "SELECT " + userColumns + " FROM users" + where.String() + orderBy(ordering, userOrderings, "created_at DESC")
	if filter != nil {
		q += limit(filter.Limit)
	}

	exe := repo.getExec(exec)
	var rows []userRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo userRepository) CountUsers(ctx context.Context, filter *user.QueryFilter, exec ...core.DBExecutor) (int, error) {
	where := repo.filter(filter)
	exe := repo.getExec(exec)
	var cnt int
	if err := sqlx.GetContext(ctx, exe, &cnt, exe.Rebind("SELECT COUNT(*) FROM users"+where.String()), where.args...); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return cnt, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	where := new(whereClause)
	switch {
	case filter.ID != "":
		where.add("id = ?", filter.ID)
	case filter.Username != "":
		where.add("username = ?", filter.Username)
	case filter.Email != "":
		where.add("email = ?", filter.Email)
	case filter.RFIDUID != "":
		where.add("rfid_uid = ?", filter.RFIDUID)
	case filter.UsernameOrEmail != nil:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		if email == "" && uname == "" {
			return user.User{}, user.ErrNotFound
		}
		where.add("(username = ? OR email = ?)", uname, email)
	default:
		return user.User{}, user.ErrNotFound
	}

	exe := repo.getExec(exec)
	var row userRow
	q := exe.Rebind("SELECT " + userColumns + " FROM users" + where.String() + " LIMIT 1")
	if err := sqlx.GetContext(ctx, exe, &row, q, where.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.user(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	q := "UPDATE users SET name = :name, username = :username, email = :email, is_active = :is_active, roles = :roles, " +
		"password_hash = :password_hash, rfid_uid = :rfid_uid, roll_no = :roll_no, semester = :semester, batch = :batch, " +
		"can_access_resources = :can_access_resources, validity_date = :validity_date, created_at = :created_at, " +
		"updated_at = :updated_at, last_login = :last_login WHERE id = :id"
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, toUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	cnt, err := execIn(ctx, repo.getExec(exec), "DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return cnt, nil
}

func (repo userRepository) DeactivateExpiredUsers(ctx context.Context, now time.Time, exec ...core.DBExecutor) (int, error) {
	exe := repo.getExec(exec)
	q := "UPDATE users SET is_active = ?, updated_at = ? " +
		"WHERE is_active = ? AND roles LIKE ? AND validity_date IS NOT NULL AND validity_date < ?"
	res, err := exe.ExecContext(ctx, exe.Rebind(q), false, toMillis(now), true, "%,"+user.RoleStudent+"%", toMillis(now))
	if err != nil {
		return 0, errors.Wrap(err, "deactivating expired users")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "deactivating expired users")
}
