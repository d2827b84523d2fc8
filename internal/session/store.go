package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// Store loads and saves sessions by connection id. Load returns a fresh
// session (system message only) when none is stored. A single session's
// load/save is never interleaved: each connection owns its session and
// processes one turn at a time.
type Store interface {
	Load(id string) (*Session, error)
	Save(id string, sess *Session) error
	Delete(id string) error
}

// RAMStore keeps sessions in process memory. Used when no database path
// is configured, and by tests.
type RAMStore struct {
	systemPrompt string
	ttl          time.Duration

	mu       sync.Mutex
	sessions map[string]*ramEntry
}

type ramEntry struct {
	sess    *Session
	expires time.Time
}

// NewRAMStore creates an in-memory session store.
func NewRAMStore(systemPrompt string, ttl time.Duration) *RAMStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RAMStore{
		systemPrompt: systemPrompt,
		ttl:          ttl,
		sessions:     make(map[string]*ramEntry),
	}
}

// Load returns the stored session for id, or a fresh one.
func (s *RAMStore) Load(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok || time.Now().After(e.expires) {
		delete(s.sessions, id)
		return New(s.systemPrompt, NewMapMemory()), nil
	}
	return e.sess, nil
}

// Save stores the session and refreshes its expiry.
func (s *RAMStore) Save(id string, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &ramEntry{sess: sess, expires: time.Now().Add(s.ttl)}
	return nil
}

// Delete removes the session for id.
func (s *RAMStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// SQLiteStore persists sessions in SQLite with a fixed TTL refreshed on
// every save. Session memory lives in a sibling table under the same
// session id with a mirrored TTL, excluded from the main blob.
type SQLiteStore struct {
	db           *sql.DB
	systemPrompt string
	ttl          time.Duration
}

// NewSQLiteStore opens (creating if needed) the session database.
func NewSQLiteStore(dbPath, systemPrompt string, ttl time.Duration) (*SQLiteStore, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{db: db, systemPrompt: systemPrompt, ttl: ttl}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

// migrate creates the database schema.
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		blob TEXT NOT NULL,
		expires_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_memory (
		session_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		PRIMARY KEY (session_id, key)
	);
	CREATE INDEX IF NOT EXISTS idx_session_memory_expiry ON session_memory(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// purgeExpired lazily removes expired rows.
func (s *SQLiteStore) purgeExpired() {
	now := time.Now()
	_, _ = s.db.Exec(`DELETE FROM sessions WHERE expires_at < ?`, now)
	_, _ = s.db.Exec(`DELETE FROM session_memory WHERE expires_at < ?`, now)
}

// Load returns the stored session for id, or a fresh one. The memory
// store handle is attached here and never serialized into the blob.
func (s *SQLiteStore) Load(id string) (*Session, error) {
	s.purgeExpired()

	memory := &sqliteMemory{db: s.db, sessionID: id, ttl: s.ttl}

	var blob string
	err := s.db.QueryRow(`SELECT blob FROM sessions WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return New(s.systemPrompt, memory), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(blob), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sess.Data == nil {
		sess.Data = NewData(memory)
	} else {
		sess.Data.Memory = memory
		if sess.Data.Todos == nil {
			sess.Data.Todos = NewData(memory).Todos
		}
	}
	return &sess, nil
}

// Save stores the session and refreshes both the session TTL and the
// mirrored memory TTL.
func (s *SQLiteStore) Save(id string, sess *Session) error {
	blob, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	expires := time.Now().Add(s.ttl)
	_, err = s.db.Exec(`
		INSERT INTO sessions (id, blob, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET blob = excluded.blob, expires_at = excluded.expires_at
	`, id, string(blob), expires)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	_, err = s.db.Exec(`UPDATE session_memory SET expires_at = ? WHERE session_id = ?`, expires, id)
	if err != nil {
		return fmt.Errorf("refresh memory ttl: %w", err)
	}
	return nil
}

// Delete removes the session and its memory rows.
func (s *SQLiteStore) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM session_memory WHERE session_id = ?`, id)
	return err
}

// sqliteMemory is the SQLite-backed MemoryStore for one session.
type sqliteMemory struct {
	db        *sql.DB
	sessionID string
	ttl       time.Duration
}

func (m *sqliteMemory) Get(key string) (string, bool, error) {
	var value string
	err := m.db.QueryRow(`
		SELECT value FROM session_memory WHERE session_id = ? AND key = ?
	`, m.sessionID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("memory get: %w", err)
	}
	return value, true, nil
}

func (m *sqliteMemory) Set(key, value string) error {
	expires := time.Now().Add(m.ttl)
	_, err := m.db.Exec(`
		INSERT INTO session_memory (session_id, key, value, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, m.sessionID, key, value, expires)
	if err != nil {
		return fmt.Errorf("memory set: %w", err)
	}
	return nil
}

func (m *sqliteMemory) Delete(key string) (bool, error) {
	res, err := m.db.Exec(`
		DELETE FROM session_memory WHERE session_id = ? AND key = ?
	`, m.sessionID, key)
	if err != nil {
		return false, fmt.Errorf("memory delete: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (m *sqliteMemory) Keys() ([]string, error) {
	rows, err := m.db.Query(`
		SELECT key FROM session_memory WHERE session_id = ? ORDER BY key
	`, m.sessionID)
	if err != nil {
		return nil, fmt.Errorf("memory keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *sqliteMemory) Exists(key string) (bool, error) {
	var one int
	err := m.db.QueryRow(`
		SELECT 1 FROM session_memory WHERE session_id = ? AND key = ?
	`, m.sessionID, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("memory exists: %w", err)
	}
	return true, nil
}
