// Package snapstore persists engine snapshots in a SQLite database.
// Snapshots are the engine's own binary save format stored as named,
// timestamped blobs, so a store doubles as a snapshot history.
package snapstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/tessera/internal/graph"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	name       TEXT UNIQUE NOT NULL,
	created_at TEXT NOT NULL,
	data       BLOB NOT NULL
);
`

// Snapshot describes one stored snapshot without its payload.
type Snapshot struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Size      int64
}

// Store is a snapshot database. Safe for concurrent use; SQLite
// serializes writers.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens or creates the store at path. Pass zap.NewNop() to silence
// logging.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing snapshot store %s: %w", path, err)
	}
	log.Debug("snapshot store opened", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put saves the engine's current state under name, replacing any
// existing snapshot with that name. Returns the snapshot id.
func (s *Store) Put(name string, eng *graph.Engine) (string, error) {
	data := eng.Save()
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.Exec(`
		INSERT INTO snapshots (id, name, created_at, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET id = excluded.id,
			created_at = excluded.created_at, data = excluded.data`,
		id, name, now, data)
	if err != nil {
		return "", fmt.Errorf("saving snapshot %q: %w", name, err)
	}
	s.log.Info("snapshot saved",
		zap.String("name", name),
		zap.String("id", id),
		zap.Int("bytes", len(data)))
	return id, nil
}

// Restore loads the named snapshot into eng. The engine's usual load
// semantics apply: ids are shifted past any existing tiles.
func (s *Store) Restore(name string, eng *graph.Engine) error {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM snapshots WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %q", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("reading snapshot %q: %w", name, err)
	}
	if err := eng.Load(data); err != nil {
		return fmt.Errorf("restoring snapshot %q: %w", name, err)
	}
	s.log.Info("snapshot restored", zap.String("name", name), zap.Int("bytes", len(data)))
	return nil
}

// Get returns the named snapshot's raw bytes.
func (s *Store) Get(name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM snapshots WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %q: %w", name, err)
	}
	return data, nil
}

// List returns all snapshots, newest first.
func (s *Store) List() ([]Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT id, name, created_at, length(data)
		FROM snapshots ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var ts string
		if err := rows.Scan(&snap.ID, &snap.Name, &ts, &snap.Size); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if snap.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parsing snapshot timestamp %q: %w", ts, err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Delete removes the named snapshot.
func (s *Store) Delete(name string) error {
	res, err := s.db.Exec(`DELETE FROM snapshots WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting snapshot %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrSnapshotNotFound, name)
	}
	s.log.Info("snapshot deleted", zap.String("name", name))
	return nil
}
