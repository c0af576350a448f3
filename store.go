package spacetraveling

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned when the store holds nothing for a key.
var ErrNoSnapshot = errors.New("snapshot not found")

// Snapshot is a rendered page's data as last fetched from the content API.
type Snapshot struct {
	Key       string
	Payload   []byte
	FetchedAt time.Time
}

// Banner is a downscaled post banner kept so the CMS image host is hit once.
type Banner struct {
	UID       string
	SourceURL string
	Width     int
	Height    int
	Data      []byte
	CreatedAt time.Time
}

// Store wraps a SQLite database holding page snapshots and banners, so a
// restart serves the last known content while revalidating.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets page reads proceed while a revalidation writes; synchronous=NORMAL
	// is safe with WAL and avoids an fsync per transaction.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
		PRAGMA mmap_size=268435456;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS snapshots (
    key TEXT PRIMARY KEY,
    payload BLOB NOT NULL,
    fetched_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS banners (
    uid TEXT PRIMARY KEY,
    source_url TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    data BLOB NOT NULL,
    created_at INTEGER NOT NULL
);
`)
	return err
}

// GetSnapshot returns the snapshot stored under key, or ErrNoSnapshot.
func (s *Store) GetSnapshot(key string) (Snapshot, error) {
	var payload []byte
	var fetched int64
	err := s.db.QueryRow(`SELECT payload, fetched_at FROM snapshots WHERE key = ?`, key).Scan(&payload, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Key: key, Payload: payload, FetchedAt: time.UnixMilli(fetched).UTC()}, nil
}

// SaveSnapshot upserts a snapshot.
func (s *Store) SaveSnapshot(snap Snapshot) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO snapshots (key, payload, fetched_at) VALUES (?, ?, ?)`,
		snap.Key, snap.Payload, snap.FetchedAt.UnixMilli())
	return err
}

// ListSnapshots returns every snapshot's key and fetch time, most recent first.
// Payloads are not loaded.
func (s *Store) ListSnapshots() ([]Snapshot, error) {
	rows, err := s.db.Query(`SELECT key, fetched_at FROM snapshots ORDER BY fetched_at DESC, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var key string
		var fetched int64
		if err := rows.Scan(&key, &fetched); err != nil {
			return nil, err
		}
		snaps = append(snaps, Snapshot{Key: key, FetchedAt: time.UnixMilli(fetched).UTC()})
	}
	return snaps, rows.Err()
}

// DeleteSnapshot removes a snapshot by key.
func (s *Store) DeleteSnapshot(key string) error {
	_, err := s.db.Exec(`DELETE FROM snapshots WHERE key = ?`, key)
	return err
}

// DeleteAllSnapshots empties the snapshot table.
func (s *Store) DeleteAllSnapshots() error {
	_, err := s.db.Exec(`DELETE FROM snapshots`)
	return err
}

// GetBanner returns the stored banner for uid. It returns sql.ErrNoRows when
// none is stored.
func (s *Store) GetBanner(uid string) (Banner, error) {
	b := Banner{UID: uid}
	var created int64
	err := s.db.QueryRow(`SELECT source_url, width, height, data, created_at FROM banners WHERE uid = ?`, uid).
		Scan(&b.SourceURL, &b.Width, &b.Height, &b.Data, &created)
	if err != nil {
		return Banner{}, err
	}
	b.CreatedAt = time.UnixMilli(created).UTC()
	return b, nil
}

// SaveBanner upserts a banner.
func (s *Store) SaveBanner(b Banner) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO banners (uid, source_url, width, height, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.UID, b.SourceURL, b.Width, b.Height, b.Data, b.CreatedAt.UnixMilli())
	return err
}

// DeleteBanner removes a banner by uid.
func (s *Store) DeleteBanner(uid string) error {
	_, err := s.db.Exec(`DELETE FROM banners WHERE uid = ?`, uid)
	return err
}
