package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

const profileColumns = "id, user_id, profile_name, profile_image, google_image_url, self_introduction, github_username, twitter_username, website_url, created_at, updated_at"

// ErrProfileExists is returned when a user already has a profile.
var ErrProfileExists = errors.New("profile already exists")

func scanProfile(row rowScanner) (*Profile, error) {
	var (
		p     Profile
		image sql.NullString
	)
	err := row.Scan(&p.ID, &p.UserID, &p.ProfileName, &image, &p.GoogleImageURL, &p.SelfIntroduction,
		&p.GitHubUsername, &p.TwitterUsername, &p.WebsiteURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ProfileImage = stringPtr(image)
	return &p, nil
}

// CreateProfile inserts a profile for p.UserID. It returns ErrProfileExists
// when that user already has one.
func (s *Store) CreateProfile(ctx context.Context, p *Profile) error {
	return s.Transaction(ctx, func(tx *sql.Tx) error {
		n, err := s.count(ctx, tx, "profiles", []Predicate{Eq("user_id", p.UserID)})
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrProfileExists
		}
		return s.createProfile(ctx, tx, p)
	})
}

func (s *Store) createProfile(ctx context.Context, q querier, p *Profile) error {
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	err := q.QueryRowContext(ctx, s.rebind(`
		INSERT INTO profiles (user_id, profile_name, profile_image, google_image_url, self_introduction,
			github_username, twitter_username, website_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		p.UserID, p.ProfileName, nullString(p.ProfileImage), p.GoogleImageURL, p.SelfIntroduction,
		p.GitHubUsername, p.TwitterUsername, p.WebsiteURL, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	return errors.Wrap(err, "inserting profile")
}

// GetProfile returns the profile with the given ID.
func (s *Store) GetProfile(ctx context.Context, id int64) (*Profile, error) {
	return s.getProfileWhere(ctx, Eq("id", id))
}

// GetProfileByUser returns the profile owned by the given user.
func (s *Store) GetProfileByUser(ctx context.Context, userID int64) (*Profile, error) {
	return s.getProfileWhere(ctx, Eq("user_id", userID))
}

func (s *Store) getProfileWhere(ctx context.Context, p Predicate) (*Profile, error) {
	clause, args := where([]Predicate{p})
	prof, err := scanProfile(s.db.QueryRowContext(ctx, s.rebind("SELECT "+profileColumns+" FROM profiles"+clause), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return prof, errors.Wrap(err, "querying profile")
}

// CountProfiles returns the number of profiles matching f.
func (s *Store) CountProfiles(ctx context.Context, f ProfileFilter) (int, error) {
	return s.count(ctx, s.db, "profiles", f.predicates())
}

// ListProfiles returns profiles matching f ordered by ID.
func (s *Store) ListProfiles(ctx context.Context, f ProfileFilter, page Page) ([]*Profile, error) {
	clause, args := where(f.predicates())
	limit, limitArgs := page.clause()
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT "+profileColumns+" FROM profiles"+clause+" ORDER BY id"+limit), append(args, limitArgs...)...)
	if err != nil {
		return nil, errors.Wrap(err, "listing profiles")
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning profile")
		}
		profiles = append(profiles, p)
	}
	return profiles, errors.Wrap(rows.Err(), "iterating profiles")
}

// UpdateProfile writes every column of p. When replaceFollowing is set the
// profile's following set becomes exactly the given user IDs, in the same transaction.
func (s *Store) UpdateProfile(ctx context.Context, p *Profile, following []int64, replaceFollowing bool) error {
	p.UpdatedAt = s.now()

	return s.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE profiles SET profile_name = ?, profile_image = ?, google_image_url = ?,
				self_introduction = ?, github_username = ?, twitter_username = ?, website_url = ?, updated_at = ?
			WHERE id = ?`),
			p.ProfileName, nullString(p.ProfileImage), p.GoogleImageURL, p.SelfIntroduction,
			p.GitHubUsername, p.TwitterUsername, p.WebsiteURL, p.UpdatedAt, p.ID,
		)
		if err != nil {
			return errors.Wrap(err, "updating profile")
		}
		if err := requireAffected(res); err != nil {
			return err
		}

		if !replaceFollowing {
			return nil
		}

		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM profile_following WHERE profile_id = ?"), p.ID); err != nil {
			return errors.Wrap(err, "clearing following set")
		}
		seen := make(map[int64]bool, len(following))
		for _, userID := range following {
			if seen[userID] {
				continue
			}
			seen[userID] = true
			if _, err := tx.ExecContext(ctx, s.rebind("INSERT INTO profile_following (profile_id, user_id) VALUES (?, ?)"), p.ID, userID); err != nil {
				return errors.Wrap(err, "adding followed user")
			}
		}
		return nil
	})
}

// CountFollowing returns how many users the profile follows.
func (s *Store) CountFollowing(ctx context.Context, profileID int64) (int, error) {
	return s.count(ctx, s.db, "profile_following", []Predicate{Eq("profile_id", profileID)})
}

// CountFollowers returns how many profiles follow the given user.
func (s *Store) CountFollowers(ctx context.Context, userID int64) (int, error) {
	return s.count(ctx, s.db, "profile_following", []Predicate{Eq("user_id", userID)})
}

// ListFollowing returns the users the profile follows, ordered by user ID.
func (s *Store) ListFollowing(ctx context.Context, profileID int64, page Page) ([]*User, error) {
	return s.listUsers(ctx, s.db, []Predicate{{
		SQL:  "id IN (SELECT user_id FROM profile_following WHERE profile_id = ?)",
		Args: []any{profileID},
	}}, page)
}
