// Package sqlite persists download history, the conversation cache,
// and session metadata in a single local database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"path/filepath"
	"strconv"

	"tgpull/internal/domain"

	_ "modernc.org/sqlite"
)

const (
	settingSessionPhone  = "session_phone"
	settingSessionIssued = "session_issued_at"
	settingSessionBlob   = "session_blob"
)

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", filepath.Clean(dbPath))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chats (
	chat_id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	kind TEXT NOT NULL,
	peer_kind TEXT NOT NULL,
	peer_id INTEGER NOT NULL,
	access_hash INTEGER NOT NULL DEFAULT 0,
	position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS downloads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	seq INTEGER NOT NULL,
	chat_id INTEGER NOT NULL,
	msg_id INTEGER NOT NULL,
	file_name TEXT NOT NULL,
	path TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	started_unix INTEGER NOT NULL DEFAULT 0,
	completed_unix INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_downloads_chat ON downloads(chat_id, completed_unix);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) setSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO settings(key, value) VALUES(?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) getSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SaveSession implements auth.SessionStore.
func (s *Store) SaveSession(ctx context.Context, sess domain.Session) error {
	if err := s.setSetting(ctx, settingSessionPhone, sess.Phone); err != nil {
		return err
	}
	if err := s.setSetting(ctx, settingSessionIssued, strconv.FormatInt(sess.IssuedAtUnix, 10)); err != nil {
		return err
	}
	return s.setSetting(ctx, settingSessionBlob, base64.StdEncoding.EncodeToString(sess.Blob))
}

func (s *Store) LoadSession(ctx context.Context) (domain.Session, bool, error) {
	blob, ok, err := s.getSetting(ctx, settingSessionBlob)
	if err != nil || !ok {
		return domain.Session{}, false, err
	}
	phone, _, err := s.getSetting(ctx, settingSessionPhone)
	if err != nil {
		return domain.Session{}, false, err
	}
	issuedRaw, _, err := s.getSetting(ctx, settingSessionIssued)
	if err != nil {
		return domain.Session{}, false, err
	}
	issued, _ := strconv.ParseInt(issuedRaw, 10, 64)
	decoded, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		// Treat an unreadable blob as no session rather than failing
		// every caller forever.
		return domain.Session{}, false, nil
	}
	return domain.Session{
		Phone:        phone,
		IssuedAtUnix: issued,
		Blob:         decoded,
	}, len(decoded) > 0, nil
}

func (s *Store) ClearSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key IN (?, ?, ?)`,
		settingSessionPhone, settingSessionIssued, settingSessionBlob)
	return err
}

// ReplaceChats refreshes the cached conversation list, keeping the
// given order as the recency order.
func (s *Store) ReplaceChats(ctx context.Context, convs []domain.Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chats`); err != nil {
		return err
	}
	for pos, conv := range convs {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO chats(chat_id, title, kind, peer_kind, peer_id, access_hash, position)
VALUES(?, ?, ?, ?, ?, ?, ?)`,
			conv.ID, conv.Title, string(conv.Kind), string(conv.Peer.Kind), conv.Peer.ID, conv.Peer.AccessHash, pos); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListChats(ctx context.Context) ([]domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT chat_id, title, kind, peer_kind, peer_id, access_hash
FROM chats ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		var (
			conv     domain.Conversation
			kind     string
			peerKind string
		)
		if err := rows.Scan(&conv.ID, &conv.Title, &kind, &peerKind, &conv.Peer.ID, &conv.Peer.AccessHash); err != nil {
			return nil, err
		}
		conv.Kind = domain.ConversationKind(kind)
		conv.Peer.Kind = domain.PeerKind(peerKind)
		out = append(out, conv)
	}
	return out, rows.Err()
}

// RecordDownload implements media.History.
func (s *Store) RecordDownload(ctx context.Context, rec domain.DownloadRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO downloads(seq, chat_id, msg_id, file_name, path, size, status, error, started_unix, completed_unix)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Seq, rec.ConversationID, rec.MessageID, rec.FileName, rec.Path, rec.Size,
		string(rec.Status), rec.Error, rec.StartedUnix, rec.CompletedUnix)
	return err
}

// ListDownloads returns recorded downloads, newest first. A zero
// conversationID lists every conversation.
func (s *Store) ListDownloads(ctx context.Context, conversationID int64, limit int) ([]domain.DownloadRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
SELECT seq, chat_id, msg_id, file_name, path, size, status, error, started_unix, completed_unix
FROM downloads`
	args := []any{}
	if conversationID != 0 {
		query += ` WHERE chat_id = ?`
		args = append(args, conversationID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DownloadRecord
	for rows.Next() {
		var (
			rec    domain.DownloadRecord
			status string
		)
		if err := rows.Scan(&rec.Seq, &rec.ConversationID, &rec.MessageID, &rec.FileName,
			&rec.Path, &rec.Size, &status, &rec.Error, &rec.StartedUnix, &rec.CompletedUnix); err != nil {
			return nil, err
		}
		rec.Status = domain.DownloadStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
