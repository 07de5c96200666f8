// Package metastore records field-layout digests of managed classes in a
// SQLite database. The JIT persists compiled code between runs; before
// reusing it, the backend checks the recorded digests against the live
// class layouts and discards code for any class whose field offsets or
// modifiers drifted.
package metastore

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chazu/vulcan/meta"
)

// ---------------------------------------------------------------------------
// Layout digests
// ---------------------------------------------------------------------------

// LayoutDigest hashes a class's canonical field layout: class name, then
// for each field in table order its name, offset, publicly visible
// modifiers, and static-ness. Internal-only modifier bits are excluded so
// VM-side flag churn does not invalidate persisted code.
func LayoutDigest(c *meta.ClassType) [32]byte {
	h := sha256.New()
	var buf [8]byte

	h.Write([]byte(c.Name()))
	binary.LittleEndian.PutUint32(buf[:4], uint32(c.FieldCount()))
	h.Write(buf[:4])

	for i, f := range c.Fields() {
		h.Write([]byte(c.FieldName(i)))
		binary.LittleEndian.PutUint32(buf[:4], uint32(f.Offset()))
		binary.LittleEndian.PutUint32(buf[4:8], f.Modifiers())
		h.Write(buf[:8])
		if f.IsStatic() {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}

	var digest [32]byte
	h.Sum(digest[:0])
	return digest
}

// DigestHex returns the hex form of a layout digest, as stored in the
// database.
func DigestHex(d [32]byte) string {
	return hex.EncodeToString(d[:])
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

// Store persists layout digests in a SQLite database.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if needed) a layout digest database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS layouts (
		class TEXT PRIMARY KEY,
		digest TEXT NOT NULL,
		snapshot_id TEXT,
		recorded_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores (or replaces) the layout digest for one class.
// snapshotID associates the record with the metadata snapshot it was taken
// from; pass "" when recording from a live universe.
func (s *Store) Record(c *meta.ClassType, snapshotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	digest := DigestHex(LayoutDigest(c))
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO layouts (class, digest, snapshot_id, recorded_at) VALUES (?, ?, ?, ?)",
		c.Name(), digest, snapshotID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording layout for %s: %w", c.Name(), err)
	}
	return nil
}

// RecordAll records digests for every class in the universe.
func (s *Store) RecordAll(u *meta.Universe, snapshotID string) error {
	for _, c := range u.Classes() {
		if err := s.Record(c, snapshotID); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the recorded digest for a class name. ok is false when
// the class has never been recorded.
func (s *Store) Lookup(class string) (digest string, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow("SELECT digest FROM layouts WHERE class = ?", class)
	switch err := row.Scan(&digest); err {
	case nil:
		return digest, true, nil
	case sql.ErrNoRows:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("looking up layout for %s: %w", class, err)
	}
}

// Drift describes a class whose live layout no longer matches its recorded
// digest. Persisted code compiled against the recorded layout must be
// discarded.
type Drift struct {
	Class    string
	Recorded string
	Current  string
}

// Verify compares every class in the universe against its recorded digest.
// Classes never recorded are skipped; the returned slice lists only real
// mismatches.
func (s *Store) Verify(u *meta.Universe) ([]Drift, error) {
	var drifted []Drift
	for _, c := range u.Classes() {
		recorded, ok, err := s.Lookup(c.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		current := DigestHex(LayoutDigest(c))
		if current != recorded {
			drifted = append(drifted, Drift{Class: c.Name(), Recorded: recorded, Current: current})
		}
	}
	return drifted, nil
}
