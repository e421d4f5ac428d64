package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/raine/telegram-skinwise-bot/internal/entitlement"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// StoredAnalysis is a persisted analysis result. Payload is the decrypted
// JSON document; it is encrypted at rest.
type StoredAnalysis struct {
	ID        string
	UserID    string
	Payload   []byte
	CreatedAt time.Time
}

// SQLiteStore persists user profiles and analysis history. It implements
// entitlement.Store.
type SQLiteStore struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.RWMutex
}

var _ entitlement.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dbPath. The encryptionKey
// is used to encrypt stored analyses.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		log.Debug().Err(err).Str("dbPath", dbPath).Msg("could not restrict database permissions")
	}

	store := &SQLiteStore{
		db:            db,
		encryptionKey: encryptionKey,
	}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	profilesQuery := `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		trial_count INTEGER NOT NULL,
		has_paid INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(profilesQuery); err != nil {
		return fmt.Errorf("failed to create profiles table: %w", err)
	}

	analysesQuery := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		encrypted_payload TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(analysesQuery); err != nil {
		return fmt.Errorf("failed to create analyses table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_analyses_user ON analyses(user_id, created_at)"); err != nil {
		return fmt.Errorf("failed to create analyses index: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetProfile returns entitlement.ErrProfileNotFound when the user is unknown.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (entitlement.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProfile(ctx, userID)
}

func (s *SQLiteStore) getProfile(ctx context.Context, userID string) (entitlement.State, error) {
	var state entitlement.State
	err := s.db.QueryRowContext(ctx,
		"SELECT trial_count, has_paid FROM profiles WHERE user_id = ?",
		userID,
	).Scan(&state.TrialCount, &state.HasPaid)
	if errors.Is(err, sql.ErrNoRows) {
		return entitlement.State{}, entitlement.ErrProfileNotFound
	}
	if err != nil {
		return entitlement.State{}, fmt.Errorf("failed to query profile: %w", err)
	}
	return state, nil
}

// CreateProfile inserts the profile unless it already exists and returns the
// stored state.
func (s *SQLiteStore) CreateProfile(ctx context.Context, userID string, initial entitlement.State) (entitlement.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, trial_count, has_paid, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, userID, initial.TrialCount, initial.HasPaid, now, now)
	if err != nil {
		return entitlement.State{}, fmt.Errorf("failed to create profile: %w", err)
	}
	return s.getProfile(ctx, userID)
}

// ConsumeTrial decrements an unpaid, limited profile in a single conditional
// update so concurrent analyses can never overspend.
func (s *SQLiteStore) ConsumeTrial(ctx context.Context, userID string) (entitlement.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var state entitlement.State
	err := s.db.QueryRowContext(ctx, `
		UPDATE profiles
		SET trial_count = trial_count - 1, updated_at = ?
		WHERE user_id = ? AND has_paid = 0 AND trial_count > 0
		RETURNING trial_count, has_paid
	`, time.Now(), userID).Scan(&state.TrialCount, &state.HasPaid)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return entitlement.State{}, fmt.Errorf("failed to consume trial: %w", err)
	}

	// No row was updated: the profile is missing, paid, unlimited or exhausted.
	state, err = s.getProfile(ctx, userID)
	if err != nil {
		return entitlement.State{}, err
	}
	if !entitlement.CanProceed(state) {
		return state, entitlement.ErrExhausted
	}
	return state, nil
}

// SetPaid sets the paid flag of an existing profile.
func (s *SQLiteStore) SetPaid(ctx context.Context, userID string, paid bool) error {
	return s.updateProfile(ctx, "has_paid", paid, userID)
}

// SetTrialCount overwrites the trial count of an existing profile.
func (s *SQLiteStore) SetTrialCount(ctx context.Context, userID string, count int) error {
	return s.updateProfile(ctx, "trial_count", count, userID)
}

func (s *SQLiteStore) updateProfile(ctx context.Context, column string, value any, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE profiles SET %s = ?, updated_at = ? WHERE user_id = ?", column),
		value, time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update profile %s: %w", column, err)
	}
	if n == 0 {
		return entitlement.ErrProfileNotFound
	}
	return nil
}

// SaveAnalysis stores an analysis with its payload encrypted.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, a StoredAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encrypted, err := Encrypt(a.Payload, s.encryptionKey, analysisAD(a.UserID, a.ID))
	if err != nil {
		return fmt.Errorf("failed to encrypt analysis: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, user_id, encrypted_payload, created_at)
		VALUES (?, ?, ?, ?)
	`, a.ID, a.UserID, encrypted, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// GetAnalysis returns nil, nil when the user has no analysis with that ID.
func (s *SQLiteStore) GetAnalysis(ctx context.Context, userID, id string) (*StoredAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var encrypted string
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT encrypted_payload, created_at FROM analyses WHERE id = ? AND user_id = ?",
		id, userID,
	).Scan(&encrypted, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}

	payload, err := Decrypt(encrypted, s.encryptionKey, analysisAD(userID, id))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt analysis: %w", err)
	}
	return &StoredAnalysis{ID: id, UserID: userID, Payload: payload, CreatedAt: createdAt}, nil
}

// ListAnalyses returns the user's most recent analyses, newest first.
func (s *SQLiteStore) ListAnalyses(ctx context.Context, userID string, limit int) ([]StoredAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, encrypted_payload, created_at FROM analyses
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var analyses []StoredAnalysis
	for rows.Next() {
		var a StoredAnalysis
		var encrypted string
		if err := rows.Scan(&a.ID, &encrypted, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		payload, err := Decrypt(encrypted, s.encryptionKey, analysisAD(userID, a.ID))
		if err != nil {
			log.Warn().Err(err).Str("analysisId", a.ID).Msg("skipping undecryptable analysis")
			continue
		}
		a.UserID = userID
		a.Payload = payload
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analyses: %w", err)
	}
	return analyses, nil
}
