package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

const userColumns = "id, username, email, is_staff, is_superuser, is_active, date_joined, last_login"

func scanUser(row rowScanner) (*User, error) {
	var (
		u         User
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.IsStaff, &u.IsSuperuser, &u.IsActive, &u.DateJoined, &lastLogin); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

// CreateUser inserts a new user and fills in its ID and join date.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	return s.createUser(ctx, s.db, u)
}

func (s *Store) createUser(ctx context.Context, q querier, u *User) error {
	if u.DateJoined.IsZero() {
		u.DateJoined = s.now()
	}
	err := q.QueryRowContext(ctx, s.rebind(`
		INSERT INTO users (username, email, is_staff, is_superuser, is_active, date_joined, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		u.Username, u.Email, u.IsStaff, u.IsSuperuser, u.IsActive, u.DateJoined, u.LastLogin,
	).Scan(&u.ID)
	return errors.Wrap(err, "inserting user")
}

// GetUser returns the user with the given ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.getUserWhere(ctx, Eq("id", id))
}

// GetUserByEmail returns the user with the given email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUserWhere(ctx, Eq("email", email))
}

// GetUserByUsername returns the user with the given username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.getUserWhere(ctx, Eq("username", username))
}

func (s *Store) getUserWhere(ctx context.Context, p Predicate) (*User, error) {
	clause, args := where([]Predicate{p})
	u, err := scanUser(s.db.QueryRowContext(ctx, s.rebind("SELECT "+userColumns+" FROM users"+clause), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, errors.Wrap(err, "querying user")
}

// UsersByIDs returns the users with the given IDs, keyed by ID.
// Unknown IDs are absent from the result.
func (s *Store) UsersByIDs(ctx context.Context, ids []int64) (map[int64]*User, error) {
	users, err := s.listUsers(ctx, s.db, []Predicate{In("id", ids)}, Page{})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// CountUsers returns the number of users matching f.
func (s *Store) CountUsers(ctx context.Context, f UserFilter) (int, error) {
	return s.count(ctx, s.db, "users", f.predicates())
}

// ListUsers returns users matching f ordered by ID.
func (s *Store) ListUsers(ctx context.Context, f UserFilter, page Page) ([]*User, error) {
	return s.listUsers(ctx, s.db, f.predicates(), page)
}

func (s *Store) listUsers(ctx context.Context, q querier, preds []Predicate, page Page) ([]*User, error) {
	clause, args := where(preds)
	limit, limitArgs := page.clause()
	rows, err := q.QueryContext(ctx, s.rebind("SELECT "+userColumns+" FROM users"+clause+" ORDER BY id"+limit), append(args, limitArgs...)...)
	if err != nil {
		return nil, errors.Wrap(err, "listing users")
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning user")
		}
		users = append(users, u)
	}
	return users, errors.Wrap(rows.Err(), "iterating users")
}

// TouchLastLogin records a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE users SET last_login = ? WHERE id = ?"), at, id)
	if err != nil {
		return errors.Wrap(err, "updating last login")
	}
	return requireAffected(res)
}

func (s *Store) count(ctx context.Context, q querier, table string, preds []Predicate) (int, error) {
	clause, args := where(preds)
	var n int
	err := q.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM "+table+clause), args...).Scan(&n)
	return n, errors.Wrapf(err, "counting %s", table)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
