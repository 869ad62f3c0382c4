package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle so the vector store can share it.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        uid TEXT PRIMARY KEY,
        username TEXT UNIQUE NOT NULL,
        email TEXT NOT NULL,
        photo_url TEXT NOT NULL DEFAULT '',
        profile_json TEXT NOT NULL DEFAULT '{}',
        is_pro BOOLEAN NOT NULL DEFAULT FALSE,
        project_limit INTEGER NOT NULL,
        profile_char_limit INTEGER NOT NULL,
        project_char_limit INTEGER NOT NULL,
        profile_chars_used INTEGER NOT NULL DEFAULT 0,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS project_usage (
        uid TEXT NOT NULL,
        project_id TEXT NOT NULL,
        chars_used INTEGER NOT NULL DEFAULT 0,
        PRIMARY KEY (uid, project_id),
        FOREIGN KEY (uid) REFERENCES users (uid)
    );

    CREATE TABLE IF NOT EXISTS projects (
        id TEXT PRIMARY KEY, -- UUID
        owner_id TEXT NOT NULL,
        name TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        system_prompt TEXT NOT NULL DEFAULT '',
        is_public BOOLEAN NOT NULL DEFAULT FALSE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (owner_id) REFERENCES users (uid)
    );

    CREATE TABLE IF NOT EXISTS content_items (
        id TEXT PRIMARY KEY, -- UUID
        uid TEXT NOT NULL,
        project_id TEXT NOT NULL DEFAULT '', -- empty for profile scope
        kind TEXT NOT NULL CHECK (kind IN ('conversation', 'file')),
        text TEXT NOT NULL,
        char_count INTEGER NOT NULL,
        filename TEXT NOT NULL DEFAULT '',
        mime_type TEXT NOT NULL DEFAULT '',
        is_writing_sample BOOLEAN NOT NULL DEFAULT FALSE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (uid) REFERENCES users (uid)
    );
    CREATE INDEX IF NOT EXISTS idx_content_items_scope ON content_items (uid, project_id, kind);

    CREATE TABLE IF NOT EXISTS auth_codes (
        code TEXT PRIMARY KEY,
        uid TEXT NOT NULL,
        redirect_uri TEXT NOT NULL,
        challenge TEXT NOT NULL,
        challenge_method TEXT NOT NULL,
        token TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

// GetUser returns the user with the given uid, or nil if absent. The
// per-project usage map is loaded alongside the row.
func (s *SQLiteStore) GetUser(uid string) (*User, error) {
	return s.getUserWhere("uid = ?", uid)
}

// GetUserByUsername returns the user with the given username, or nil.
func (s *SQLiteStore) GetUserByUsername(username string) (*User, error) {
	return s.getUserWhere("username = ?", username)
}

func (s *SQLiteStore) getUserWhere(where string, arg any) (*User, error) {
	var user User
	var profileJSON string
	query := `SELECT uid, username, email, photo_url, profile_json, is_pro,
        project_limit, profile_char_limit, project_char_limit, profile_chars_used,
        created_at, updated_at FROM users WHERE ` + where
	err := s.db.QueryRow(query, arg).Scan(
		&user.UID, &user.Username, &user.Email, &user.PhotoURL, &profileJSON,
		&user.IsPro, &user.ProjectLimit, &user.ProfileCharacterLimit,
		&user.ProjectCharacterLimit, &user.ProfileCharactersUsed,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if profileJSON != "" {
		if err := json.Unmarshal([]byte(profileJSON), &user.Profile); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile for user %s: %w", user.UID, err)
		}
	}

	usage, err := s.projectUsageMap(user.UID)
	if err != nil {
		return nil, err
	}
	user.ProjectCharactersUsed = usage
	return &user, nil
}

func (s *SQLiteStore) projectUsageMap(uid string) (map[string]int64, error) {
	rows, err := s.db.Query("SELECT project_id, chars_used FROM project_usage WHERE uid = ?", uid)
	if err != nil {
		return nil, fmt.Errorf("failed to query project usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[string]int64)
	for rows.Next() {
		var projectID string
		var used int64
		if err := rows.Scan(&projectID, &used); err != nil {
			return nil, fmt.Errorf("failed to scan project usage row: %w", err)
		}
		usage[projectID] = used
	}
	return usage, rows.Err()
}

// CreateUser inserts a new user with free-tier limits. The username is
// derived from the email local part; on collision a uid-derived suffix is
// appended so the UNIQUE constraint holds.
func (s *SQLiteStore) CreateUser(uid, email, photoURL string, projectLimit, profileCharLimit, projectCharLimit int64) (*User, error) {
	username := usernameFromEmail(email)
	candidates := []string{username, username + "-" + shortID(uid)}

	var insertErr error
	for _, candidate := range candidates {
		_, insertErr = s.db.Exec(`INSERT INTO users
            (uid, username, email, photo_url, project_limit, profile_char_limit, project_char_limit)
            VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uid, candidate, email, photoURL, projectLimit, profileCharLimit, projectCharLimit)
		if insertErr == nil {
			return s.GetUser(uid)
		}
		if !strings.Contains(insertErr.Error(), "UNIQUE constraint failed: users.username") {
			break
		}
	}
	return nil, fmt.Errorf("failed to insert user: %w", insertErr)
}

func usernameFromEmail(email string) string {
	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}
	return strings.ToLower(local)
}

func shortID(uid string) string {
	if len(uid) > 6 {
		return uid[:6]
	}
	if uid == "" {
		return uuid.NewString()[:6]
	}
	return uid
}

// UpdateProfile replaces the structured profile fields for a user.
func (s *SQLiteStore) UpdateProfile(uid string, profile Profile) error {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	res, err := s.db.Exec("UPDATE users SET profile_json = ?, updated_at = ? WHERE uid = ?",
		string(profileJSON), time.Now(), uid)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("user not found, profile not updated")
	}
	return nil
}

// UpgradeTier raises the user's limits and flags. Counters are never reset.
func (s *SQLiteStore) UpgradeTier(uid string, projectLimit, profileCharLimit, projectCharLimit int64) error {
	res, err := s.db.Exec(`UPDATE users SET is_pro = TRUE, project_limit = ?,
        profile_char_limit = ?, project_char_limit = ?, updated_at = ? WHERE uid = ?`,
		projectLimit, profileCharLimit, projectCharLimit, time.Now(), uid)
	if err != nil {
		return fmt.Errorf("failed to upgrade tier: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("user not found, tier not upgraded")
	}
	return nil
}

// Quota counter methods. Increments are conditional single statements so two
// racing writers can never jointly push a counter past its limit.

// ProfileUsage returns the current counter and limit for a user's profile scope.
func (s *SQLiteStore) ProfileUsage(uid string) (used, limit int64, err error) {
	err = s.db.QueryRow("SELECT profile_chars_used, profile_char_limit FROM users WHERE uid = ?", uid).
		Scan(&used, &limit)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, fmt.Errorf("user %s not found", uid)
		}
		return 0, 0, fmt.Errorf("failed to query profile usage: %w", err)
	}
	return used, limit, nil
}

// AddProfileUsage atomically adds delta iff the result stays within the
// limit. Returns false when the increment was rejected.
func (s *SQLiteStore) AddProfileUsage(uid string, delta int64) (bool, error) {
	res, err := s.db.Exec(`UPDATE users SET profile_chars_used = profile_chars_used + ?
        WHERE uid = ? AND profile_chars_used + ? <= profile_char_limit`,
		delta, uid, delta)
	if err != nil {
		return false, fmt.Errorf("failed to add profile usage: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// ReleaseProfileUsage atomically subtracts delta, floored at zero.
func (s *SQLiteStore) ReleaseProfileUsage(uid string, delta int64) error {
	_, err := s.db.Exec(`UPDATE users SET profile_chars_used = MAX(profile_chars_used - ?, 0)
        WHERE uid = ?`, delta, uid)
	if err != nil {
		return fmt.Errorf("failed to release profile usage: %w", err)
	}
	return nil
}

// ProjectUsage returns the counter for one project entry (zero when no entry
// exists yet) and the owner's per-project limit.
func (s *SQLiteStore) ProjectUsage(uid, projectID string) (used, limit int64, err error) {
	err = s.db.QueryRow("SELECT project_char_limit FROM users WHERE uid = ?", uid).Scan(&limit)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, fmt.Errorf("user %s not found", uid)
		}
		return 0, 0, fmt.Errorf("failed to query project limit: %w", err)
	}
	err = s.db.QueryRow("SELECT chars_used FROM project_usage WHERE uid = ? AND project_id = ?",
		uid, projectID).Scan(&used)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, limit, nil
		}
		return 0, 0, fmt.Errorf("failed to query project usage: %w", err)
	}
	return used, limit, nil
}

// AddProjectUsage atomically adds delta to a project entry iff the result
// stays within the owner's per-project limit.
func (s *SQLiteStore) AddProjectUsage(uid, projectID string, delta int64) (bool, error) {
	_, err := s.db.Exec("INSERT OR IGNORE INTO project_usage (uid, project_id, chars_used) VALUES (?, ?, 0)",
		uid, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to ensure project usage row: %w", err)
	}
	res, err := s.db.Exec(`UPDATE project_usage SET chars_used = chars_used + ?
        WHERE uid = ? AND project_id = ?
        AND chars_used + ? <= (SELECT project_char_limit FROM users WHERE uid = ?)`,
		delta, uid, projectID, delta, uid)
	if err != nil {
		return false, fmt.Errorf("failed to add project usage: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// ReleaseProjectUsage atomically subtracts delta from a project entry,
// floored at zero.
func (s *SQLiteStore) ReleaseProjectUsage(uid, projectID string, delta int64) error {
	_, err := s.db.Exec(`UPDATE project_usage SET chars_used = MAX(chars_used - ?, 0)
        WHERE uid = ? AND project_id = ?`, delta, uid, projectID)
	if err != nil {
		return fmt.Errorf("failed to release project usage: %w", err)
	}
	return nil
}

// DeleteProjectUsage removes a project's quota entry entirely (cascade path;
// the entry is deleted, never decremented below zero).
func (s *SQLiteStore) DeleteProjectUsage(uid, projectID string) error {
	_, err := s.db.Exec("DELETE FROM project_usage WHERE uid = ? AND project_id = ?", uid, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project usage: %w", err)
	}
	return nil
}

// Project methods

func (s *SQLiteStore) CreateProject(ownerID, name, description, systemPrompt string, isPublic bool) (*Project, error) {
	project := &Project{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Name:         name,
		Description:  description,
		SystemPrompt: systemPrompt,
		IsPublic:     isPublic,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	_, err := s.db.Exec(`INSERT INTO projects (id, owner_id, name, description, system_prompt, is_public, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		project.ID, project.OwnerID, project.Name, project.Description,
		project.SystemPrompt, project.IsPublic, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}
	return project, nil
}

func (s *SQLiteStore) GetProject(projectID string) (*Project, error) {
	var project Project
	err := s.db.QueryRow(`SELECT id, owner_id, name, description, system_prompt, is_public, created_at, updated_at
        FROM projects WHERE id = ?`, projectID).Scan(
		&project.ID, &project.OwnerID, &project.Name, &project.Description,
		&project.SystemPrompt, &project.IsPublic, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

func (s *SQLiteStore) ListProjects(ownerID string) ([]Project, error) {
	rows, err := s.db.Query(`SELECT id, owner_id, name, description, system_prompt, is_public, created_at, updated_at
        FROM projects WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var project Project
		if err := rows.Scan(&project.ID, &project.OwnerID, &project.Name, &project.Description,
			&project.SystemPrompt, &project.IsPublic, &project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) CountProjects(ownerID string) (int64, error) {
	var count int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM projects WHERE owner_id = ?", ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) UpdateProject(project *Project) error {
	res, err := s.db.Exec(`UPDATE projects SET name = ?, description = ?, system_prompt = ?, is_public = ?, updated_at = ?
        WHERE id = ?`,
		project.Name, project.Description, project.SystemPrompt, project.IsPublic, time.Now(), project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("project not found, not updated")
	}
	return nil
}

func (s *SQLiteStore) DeleteProject(projectID string) error {
	_, err := s.db.Exec("DELETE FROM projects WHERE id = ?", projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// ContentItem methods

func (s *SQLiteStore) CreateItem(item *ContentItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := s.db.Exec(`INSERT INTO content_items
        (id, uid, project_id, kind, text, char_count, filename, mime_type, is_writing_sample, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.UID, item.ProjectID, item.Kind, item.Text, item.CharacterCount,
		item.Filename, item.MimeType, item.IsWritingSample, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert content item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetItem(itemID string) (*ContentItem, error) {
	var item ContentItem
	err := s.db.QueryRow(`SELECT id, uid, project_id, kind, text, char_count, filename, mime_type, is_writing_sample, created_at, updated_at
        FROM content_items WHERE id = ?`, itemID).Scan(
		&item.ID, &item.UID, &item.ProjectID, &item.Kind, &item.Text, &item.CharacterCount,
		&item.Filename, &item.MimeType, &item.IsWritingSample, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return &item, nil
}

// ListItems returns items for one scope and kind, newest first.
func (s *SQLiteStore) ListItems(uid, projectID, kind string) ([]ContentItem, error) {
	rows, err := s.db.Query(`SELECT id, uid, project_id, kind, text, char_count, filename, mime_type, is_writing_sample, created_at, updated_at
        FROM content_items WHERE uid = ? AND project_id = ? AND kind = ? ORDER BY created_at DESC`,
		uid, projectID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query content items: %w", err)
	}
	defer rows.Close()

	var items []ContentItem
	for rows.Next() {
		var item ContentItem
		if err := rows.Scan(&item.ID, &item.UID, &item.ProjectID, &item.Kind, &item.Text,
			&item.CharacterCount, &item.Filename, &item.MimeType, &item.IsWritingSample,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan content item row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListProjectItems returns every item under a project regardless of kind.
func (s *SQLiteStore) ListProjectItems(projectID string) ([]ContentItem, error) {
	rows, err := s.db.Query(`SELECT id, uid, project_id, kind, text, char_count, filename, mime_type, is_writing_sample, created_at, updated_at
        FROM content_items WHERE project_id = ? ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query project items: %w", err)
	}
	defer rows.Close()

	var items []ContentItem
	for rows.Next() {
		var item ContentItem
		if err := rows.Scan(&item.ID, &item.UID, &item.ProjectID, &item.Kind, &item.Text,
			&item.CharacterCount, &item.Filename, &item.MimeType, &item.IsWritingSample,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project item row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) DeleteItem(itemID string) error {
	_, err := s.db.Exec("DELETE FROM content_items WHERE id = ?", itemID)
	if err != nil {
		return fmt.Errorf("failed to delete content item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteProjectItems(projectID string) error {
	_, err := s.db.Exec("DELETE FROM content_items WHERE project_id = ?", projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project items: %w", err)
	}
	return nil
}

// AuthCode methods

func (s *SQLiteStore) SaveAuthCode(code *AuthCode) error {
	_, err := s.db.Exec(`INSERT INTO auth_codes (code, uid, redirect_uri, challenge, challenge_method, token, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		code.Code, code.UID, code.RedirectURI, code.Challenge, code.ChallengeMethod, code.Token, code.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert auth code: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAuthCode(code string) (*AuthCode, error) {
	var ac AuthCode
	err := s.db.QueryRow(`SELECT code, uid, redirect_uri, challenge, challenge_method, token, created_at
        FROM auth_codes WHERE code = ?`, code).Scan(
		&ac.Code, &ac.UID, &ac.RedirectURI, &ac.Challenge, &ac.ChallengeMethod, &ac.Token, &ac.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get auth code: %w", err)
	}
	return &ac, nil
}

func (s *SQLiteStore) DeleteAuthCode(code string) error {
	_, err := s.db.Exec("DELETE FROM auth_codes WHERE code = ?", code)
	if err != nil {
		return fmt.Errorf("failed to delete auth code: %w", err)
	}
	return nil
}

// DeleteExpiredAuthCodes removes codes created before the cutoff and returns
// how many were purged.
func (s *SQLiteStore) DeleteExpiredAuthCodes(before time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM auth_codes WHERE created_at < ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired auth codes: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
