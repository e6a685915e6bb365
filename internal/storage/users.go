package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SaveUser inserts or updates a user and their policy interests.
func (s *Store) SaveUser(u User) error {
	interests, err := json.Marshal(u.PolicyInterests)
	if err != nil {
		return fmt.Errorf("encoding interests: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO users (id, email, state, policy_interests, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email, state = excluded.state,
			policy_interests = excluded.policy_interests`,
		u.ID, u.Email, u.State, string(interests), formatTime(time.Now()),
	)
	return err
}

// GetUser returns one user by id.
func (s *Store) GetUser(id string) (User, error) {
	var (
		u         User
		interests string
		created   string
	)
	err := s.db.QueryRow(`
		SELECT id, email, state, policy_interests, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.State, &interests, &created)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	if err := json.Unmarshal([]byte(interests), &u.PolicyInterests); err != nil {
		return User{}, fmt.Errorf("decoding interests: %w", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return User{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return u, nil
}

// SaveAgencyFollow inserts or updates a user's agency follow.
func (s *Store) SaveAgencyFollow(f AgencyFollow) error {
	_, err := s.db.Exec(`
		INSERT INTO agency_follows (user_id, agency_id, agency_slug, enabled, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, agency_id) DO UPDATE SET enabled = excluded.enabled,
			agency_slug = excluded.agency_slug`,
		f.UserID, f.AgencyID, f.AgencySlug, boolToInt(f.Enabled), formatTime(time.Now()),
	)
	return err
}

// ListUserPreferences loads every user together with parsed interests and
// enabled agency-follow ids in a single aggregate query. This is the input
// to the notification fan-out.
func (s *Store) ListUserPreferences() ([]UserPreferences, error) {
	rows, err := s.db.Query(`
		SELECT u.id, u.state, u.policy_interests,
			COALESCE(GROUP_CONCAT(f.agency_id), ''),
			COALESCE(GROUP_CONCAT(f.agency_slug), '')
		FROM users u
		LEFT JOIN agency_follows f ON f.user_id = u.id AND f.enabled = 1
		GROUP BY u.id
		ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefs []UserPreferences
	for rows.Next() {
		var (
			p         UserPreferences
			interests string
			ids       string
			slugs     string
		)
		if err := rows.Scan(&p.UserID, &p.State, &interests, &ids, &slugs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(interests), &p.PolicyInterests); err != nil {
			return nil, fmt.Errorf("decoding interests for user %s: %w", p.UserID, err)
		}
		if p.FollowedAgencyIDs, err = parseIDList(ids); err != nil {
			return nil, fmt.Errorf("parsing follow ids for user %s: %w", p.UserID, err)
		}
		for _, slug := range strings.Split(slugs, ",") {
			if slug = strings.TrimSpace(slug); slug != "" {
				p.FollowedAgencySlugs = append(p.FollowedAgencySlugs, slug)
			}
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// GetUserPreferences loads one user's aggregate preferences. Returns
// ErrNotFound for unknown users.
func (s *Store) GetUserPreferences(userID string) (UserPreferences, error) {
	var (
		p         UserPreferences
		interests string
		ids       string
		slugs     string
	)
	err := s.db.QueryRow(`
		SELECT u.id, u.state, u.policy_interests,
			COALESCE(GROUP_CONCAT(f.agency_id), ''),
			COALESCE(GROUP_CONCAT(f.agency_slug), '')
		FROM users u
		LEFT JOIN agency_follows f ON f.user_id = u.id AND f.enabled = 1
		WHERE u.id = ?
		GROUP BY u.id`, userID,
	).Scan(&p.UserID, &p.State, &interests, &ids, &slugs)
	if err == sql.ErrNoRows {
		return UserPreferences{}, ErrNotFound
	}
	if err != nil {
		return UserPreferences{}, err
	}
	if err := json.Unmarshal([]byte(interests), &p.PolicyInterests); err != nil {
		return UserPreferences{}, fmt.Errorf("decoding interests: %w", err)
	}
	if p.FollowedAgencyIDs, err = parseIDList(ids); err != nil {
		return UserPreferences{}, fmt.Errorf("parsing follow ids: %w", err)
	}
	for _, slug := range strings.Split(slugs, ",") {
		if slug = strings.TrimSpace(slug); slug != "" {
			p.FollowedAgencySlugs = append(p.FollowedAgencySlugs, slug)
		}
	}
	return p, nil
}

func parseIDList(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
