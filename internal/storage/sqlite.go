package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/helio-dev/helio/internal/domain"
)

// SQLiteStore persists rooms as documents: the file list and whiteboard are
// JSON columns, mirroring the record shape the replication layer trades in.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		room_id    TEXT PRIMARY KEY,
		files      TEXT NOT NULL DEFAULT '[]',
		whiteboard TEXT NOT NULL DEFAULT '[]',
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id    TEXT NOT NULL,
		username   TEXT NOT NULL,
		message    TEXT NOT NULL,
		time       TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) GetRoom(ctx context.Context, roomID domain.RoomID) (*RoomRecord, error) {
	var filesJSON, boardJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT files, whiteboard FROM rooms WHERE room_id = ?`, string(roomID),
	).Scan(&filesJSON, &boardJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}

	rec := &RoomRecord{RoomID: roomID, Whiteboard: json.RawMessage(boardJSON)}
	if err := json.Unmarshal([]byte(filesJSON), &rec.Files); err != nil {
		return nil, fmt.Errorf("decode files for room %s: %w", roomID, err)
	}
	return rec, nil
}

func (s *SQLiteStore) PutFiles(ctx context.Context, roomID domain.RoomID, files []domain.FileRecord) error {
	if files == nil {
		files = []domain.FileRecord{}
	}
	raw, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("encode files for room %s: %w", roomID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rooms (room_id, files, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(room_id) DO UPDATE SET files = excluded.files, updated_at = CURRENT_TIMESTAMP`,
		string(roomID), string(raw))
	if err != nil {
		return fmt.Errorf("put files for room %s: %w", roomID, err)
	}
	return nil
}

func (s *SQLiteStore) PutWhiteboard(ctx context.Context, roomID domain.RoomID, elements json.RawMessage) error {
	if len(elements) == 0 {
		elements = json.RawMessage("[]")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (room_id, whiteboard, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(room_id) DO UPDATE SET whiteboard = excluded.whiteboard, updated_at = CURRENT_TIMESTAMP`,
		string(roomID), string(elements))
	if err != nil {
		return fmt.Errorf("put whiteboard for room %s: %w", roomID, err)
	}
	return nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, msg domain.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (room_id, username, message, time) VALUES (?, ?, ?, ?)`,
		string(msg.RoomID), msg.Username, msg.Message, msg.Time)
	if err != nil {
		return fmt.Errorf("append message for room %s: %w", msg.RoomID, err)
	}
	return nil
}

func (s *SQLiteStore) Messages(ctx context.Context, roomID domain.RoomID) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, message, time FROM messages WHERE room_id = ? ORDER BY id`,
		string(roomID))
	if err != nil {
		return nil, fmt.Errorf("messages for room %s: %w", roomID, err)
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		m := domain.ChatMessage{RoomID: roomID}
		if err := rows.Scan(&m.Username, &m.Message, &m.Time); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
