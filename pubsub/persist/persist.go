// Package persist is a SQLite-backed pubsub.Persistence adapter. Messages
// are recorded as they publish and can be replayed by exact topic for a
// subscriber that wants history since a given sequence number. Grounded on
// the teacher's store/store.go ordered-migrations pattern: statements are
// appended to migrations, never edited or reordered in place.
package persist

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"netkit/pubsub"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		seq          INTEGER PRIMARY KEY,
		topic        TEXT NOT NULL,
		payload      BLOB NOT NULL,
		metadata     TEXT NOT NULL DEFAULT '{}',
		publisher_id TEXT NOT NULL DEFAULT '',
		created_at   INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_topic ON messages(topic)`,
	`PRAGMA journal_mode=WAL`,
}

// Store records published messages and replays them by exact topic,
// satisfying pubsub.Persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at path and applies any
// pending migrations. Use ":memory:" for ephemeral in-process storage.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		log.Printf("[persist] busy_timeout: %v (non-fatal)", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := s.db.Exec(
			`INSERT INTO schema_migrations(version) VALUES(?)`, v,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		log.Printf("[persist] applied migration v%d", v)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Record persists msg. Errors are logged, not returned: a persistence
// failure must never block live delivery, which has already happened by
// the time Record is called (see pubsub.Broker.Publish).
func (s *Store) Record(msg pubsub.BrokerMessage) {
	metaJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		log.Printf("[persist] marshal metadata for seq %d: %v", msg.Seq, err)
		metaJSON = []byte("{}")
	}
	_, err = s.db.Exec(
		`INSERT INTO messages(seq, topic, payload, metadata, publisher_id) VALUES(?, ?, ?, ?, ?)`,
		msg.Seq, msg.Topic, msg.Payload, string(metaJSON), msg.PublisherID,
	)
	if err != nil {
		log.Printf("[persist] record seq %d: %v", msg.Seq, err)
	}
}

// Replay returns every recorded message with seq > since whose topic
// matches pattern exactly (a literal topic, not a wildcard subscription —
// wildcard replay is left to the caller, which can issue one Replay per
// topic segment it cares about).
func (s *Store) Replay(pattern string, since uint64) ([]pubsub.BrokerMessage, error) {
	rows, err := s.db.Query(
		`SELECT seq, topic, payload, metadata, publisher_id FROM messages
		 WHERE topic = ? AND seq > ? ORDER BY seq ASC`,
		pattern, since,
	)
	if err != nil {
		return nil, fmt.Errorf("persist: replay: %w", err)
	}
	defer rows.Close()

	var out []pubsub.BrokerMessage
	for rows.Next() {
		var msg pubsub.BrokerMessage
		var metaJSON string
		if err := rows.Scan(&msg.Seq, &msg.Topic, &msg.Payload, &metaJSON, &msg.PublisherID); err != nil {
			return nil, fmt.Errorf("persist: replay scan: %w", err)
		}
		if metaJSON != "" && metaJSON != "{}" {
			if err := json.Unmarshal([]byte(metaJSON), &msg.Metadata); err != nil {
				log.Printf("[persist] unmarshal metadata for seq %d: %v", msg.Seq, err)
			}
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
