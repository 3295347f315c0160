// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/walletlink/internal/store"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// Compile-time interface check.
var _ store.SessionStore = (*SessionStore)(nil)

// SessionStore implements store.SessionStore backed by SQLite.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore opens (or creates) a SQLite database at dbPath and
// initialises the sessions and session_accounts tables.
func NewSessionStore(dbPath string) (*SessionStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite db: %w", err)
	}

	return &SessionStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
	id                   TEXT PRIMARY KEY,
	version              INTEGER NOT NULL,
	topic                TEXT NOT NULL,
	peer_name            TEXT NOT NULL DEFAULT '',
	peer_description     TEXT NOT NULL DEFAULT '',
	peer_url             TEXT NOT NULL DEFAULT '',
	peer_icons           TEXT NOT NULL DEFAULT '[]',
	chain_id             TEXT NOT NULL DEFAULT '',
	fallback_browser     TEXT NOT NULL DEFAULT '',
	is_subscribed        INTEGER NOT NULL DEFAULT 0,
	is_connected         INTEGER NOT NULL DEFAULT 0,
	created_at           INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);

CREATE TABLE IF NOT EXISTS session_accounts (
	session_id  TEXT NOT NULL,
	address     TEXT NOT NULL,
	position    INTEGER NOT NULL,
	PRIMARY KEY (session_id, address),
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_session_accounts_address ON session_accounts(address);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

const sessionColumns = `id, version, topic, peer_name, peer_description, peer_url, peer_icons,
chain_id, fallback_browser, is_subscribed, is_connected, created_at`

func (s *SessionStore) Insert(ctx context.Context, session *store.Session, accounts []string) error {
	if err := session.Validate(); err != nil {
		return err
	}

	icons, err := json.Marshal(session.PeerMeta.Icons)
	if err != nil {
		return wlerr.Wrapf(err, wlerr.CodeStoreInvalidInput, "marshalling peer icons for session %s", session.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "beginning tx for session %s", session.ID)
	}
	defer tx.Rollback() //nolint:errcheck

	const q = `INSERT INTO sessions (` + sessionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, q,
		session.ID,
		int(session.Version),
		session.Topic,
		session.PeerMeta.Name,
		session.PeerMeta.Description,
		session.PeerMeta.URL,
		string(icons),
		session.ChainID,
		session.FallbackBrowserGroupResponse,
		boolToInt(session.IsSubscribed),
		boolToInt(session.IsConnected),
		session.CreatedAt.UnixNano(),
	)
	if err != nil {
		return wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "inserting session %s", session.ID)
	}

	if err := insertAccounts(ctx, tx, session.ID, accounts); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "committing session %s", session.ID)
	}
	return nil
}

func (s *SessionStore) GetByID(ctx context.Context, id string) (*store.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	sess, err := scanSession(s.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, wlerr.Wrapf(store.ErrNotFound, wlerr.CodeStoreSessionGetNotFound, "session %s", id)
	}
	if err != nil {
		return nil, wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "getting session %s", id)
	}

	if sess.Accounts, err = loadAccounts(ctx, s.db, id); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SessionStore) GetAll(ctx context.Context) ([]*store.Session, error) {
	return s.query(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at ASC, rowid ASC`)
}

func (s *SessionStore) GetByAccountAddress(ctx context.Context, address string) ([]*store.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions
WHERE id IN (SELECT session_id FROM session_accounts WHERE address = ?)
ORDER BY created_at ASC, rowid ASC`
	return s.query(ctx, q, address)
}

func (s *SessionStore) GetAllDisconnected(ctx context.Context) ([]*store.Session, error) {
	return s.query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE is_connected = 0 ORDER BY created_at ASC, rowid ASC`)
}

func (s *SessionStore) GetOldestByCreation(ctx context.Context, n int) ([]*store.Session, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.query(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at ASC, rowid ASC LIMIT ?`, n)
}

func (s *SessionStore) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "counting sessions")
	}
	return n, nil
}

func (s *SessionStore) DeleteByID(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "deleting session %s", id)
	}
	return nil
}

func (s *SessionStore) InsertAccountLinks(ctx context.Context, sessionID string, accounts []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "beginning tx for session %s", sessionID)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, sessionID).Scan(&exists)
	if err != nil {
		return wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "checking session %s", sessionID)
	}
	if exists == 0 {
		return nil
	}

	if err := insertAccounts(ctx, tx, sessionID, accounts); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "committing accounts for session %s", sessionID)
	}
	return nil
}

func (s *SessionStore) DeleteAccountLink(ctx context.Context, sessionID, address string) error {
	const q = `DELETE FROM session_accounts WHERE session_id = ? AND address = ?`
	if _, err := s.db.ExecContext(ctx, q, sessionID, address); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "deleting account %s from session %s", address, sessionID)
	}
	return nil
}

func (s *SessionStore) SetConnected(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE sessions SET is_connected = 1 WHERE id = ?`, id)
}

func (s *SessionStore) SetDisconnected(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE sessions SET is_connected = 0 WHERE id = ?`, id)
}

func (s *SessionStore) SetAllDisconnected(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET is_connected = 0`); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "disconnecting all sessions")
	}
	return nil
}

func (s *SessionStore) SetSubscribed(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE sessions SET is_subscribed = 1 WHERE id = ?`, id)
}

func (s *SessionStore) exec(ctx context.Context, q, id string) error {
	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "updating session %s", id)
	}
	return nil
}

func (s *SessionStore) query(ctx context.Context, q string, args ...any) ([]*store.Session, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "querying sessions")
	}

	var sessions []*store.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			rows.Close() //nolint:errcheck
			return nil, wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "scanning session row")
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		rows.Close() //nolint:errcheck
		return nil, wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "iterating sessions")
	}
	rows.Close() //nolint:errcheck

	// Accounts are loaded after the cursor is closed so the single WAL
	// connection is not held across nested queries.
	for _, sess := range sessions {
		if sess.Accounts, err = loadAccounts(ctx, s.db, sess.ID); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

// ---------- row helpers ----------

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*store.Session, error) {
	var (
		sess                  store.Session
		version               int
		icons                 string
		subscribed, connected int
		createdAt             int64
	)
	err := row.Scan(
		&sess.ID,
		&version,
		&sess.Topic,
		&sess.PeerMeta.Name,
		&sess.PeerMeta.Description,
		&sess.PeerMeta.URL,
		&icons,
		&sess.ChainID,
		&sess.FallbackBrowserGroupResponse,
		&subscribed,
		&connected,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	sess.Version = store.ProtocolVersion(version)
	sess.IsSubscribed = subscribed != 0
	sess.IsConnected = connected != 0
	sess.CreatedAt = time.Unix(0, createdAt).UTC()
	if icons != "" && icons != "[]" {
		if err := json.Unmarshal([]byte(icons), &sess.PeerMeta.Icons); err != nil {
			return nil, fmt.Errorf("unmarshalling peer icons: %w", err)
		}
	}
	return &sess, nil
}

// execer abstracts *sql.DB and *sql.Tx for account inserts.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertAccounts(ctx context.Context, ex execer, sessionID string, accounts []string) error {
	var next int
	const posQ = `SELECT COALESCE(MAX(position) + 1, 0) FROM session_accounts WHERE session_id = ?`
	if err := ex.QueryRowContext(ctx, posQ, sessionID).Scan(&next); err != nil {
		return wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "reading account positions for session %s", sessionID)
	}

	const q = `INSERT OR IGNORE INTO session_accounts (session_id, address, position) VALUES (?, ?, ?)`
	for _, addr := range accounts {
		res, err := ex.ExecContext(ctx, q, sessionID, addr, next)
		if err != nil {
			return wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "inserting account %s for session %s", addr, sessionID)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			next++
		}
	}
	return nil
}

func loadAccounts(ctx context.Context, db *sql.DB, sessionID string) ([]string, error) {
	const q = `SELECT address FROM session_accounts WHERE session_id = ? ORDER BY position`
	rows, err := db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "loading accounts for session %s", sessionID)
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var accounts []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "scanning account row")
		}
		accounts = append(accounts, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, wlerr.Wrapf(err, wlerr.CodeStoreDatabaseFailure, "iterating accounts")
	}
	return accounts, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
