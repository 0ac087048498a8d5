package store

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/pkg/errors"
)

const socialColumns = "id, user_id, provider, uid, extra_data, created_at, updated_at"

func scanSocialAccount(row rowScanner) (*SocialAccount, error) {
	var a SocialAccount
	if err := row.Scan(&a.ID, &a.UserID, &a.Provider, &a.UID, &a.ExtraData, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetSocialAccount returns the account linked to (provider, uid).
func (s *Store) GetSocialAccount(ctx context.Context, provider, uid string) (*SocialAccount, error) {
	a, err := scanSocialAccount(s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+socialColumns+" FROM social_accounts WHERE provider = ? AND uid = ?"), provider, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, errors.Wrap(err, "querying social account")
}

// RegisterSocialUser creates a user, its profile and the linked social
// account in one transaction. A nil profile creates an empty one. The
// username is made unique by appending a numeric suffix when the preferred
// one is taken.
func (s *Store) RegisterSocialUser(ctx context.Context, u *User, p *Profile, a *SocialAccount) error {
	if p == nil {
		p = &Profile{}
	}
	return s.Transaction(ctx, func(tx *sql.Tx) error {
		username, err := s.uniqueUsername(ctx, tx, u.Username)
		if err != nil {
			return err
		}
		u.Username = username

		if err := s.createUser(ctx, tx, u); err != nil {
			return err
		}

		p.UserID = u.ID
		if err := s.createProfile(ctx, tx, p); err != nil {
			return err
		}

		a.UserID = u.ID
		return s.createSocialAccount(ctx, tx, a)
	})
}

// CreateSocialAccount links a provider account to an existing user.
func (s *Store) CreateSocialAccount(ctx context.Context, a *SocialAccount) error {
	return s.createSocialAccount(ctx, s.db, a)
}

func (s *Store) createSocialAccount(ctx context.Context, q querier, a *SocialAccount) error {
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.ExtraData == "" {
		a.ExtraData = "{}"
	}
	err := q.QueryRowContext(ctx, s.rebind(`
		INSERT INTO social_accounts (user_id, provider, uid, extra_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`),
		a.UserID, a.Provider, a.UID, a.ExtraData, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	return errors.Wrap(err, "inserting social account")
}

func (s *Store) uniqueUsername(ctx context.Context, q querier, base string) (string, error) {
	if base == "" {
		base = "user"
	}
	candidate := base
	for i := 1; ; i++ {
		n, err := s.count(ctx, q, "users", []Predicate{Eq("username", candidate)})
		if err != nil {
			return "", err
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(i)
	}
}

// UpdateSocialAccountData replaces the stored provider payload.
func (s *Store) UpdateSocialAccountData(ctx context.Context, a *SocialAccount) error {
	a.UpdatedAt = s.now()
	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE social_accounts SET extra_data = ?, updated_at = ? WHERE id = ?"),
		a.ExtraData, a.UpdatedAt, a.ID)
	if err != nil {
		return errors.Wrap(err, "updating social account")
	}
	return requireAffected(res)
}
