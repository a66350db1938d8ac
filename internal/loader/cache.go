package loader

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/uganh16/lua51vm/internal/bytecode"
	_ "modernc.org/sqlite"
)

/**
 * Cache keeps decoded bytecode units in a SQLite database, keyed by file
 * path and validated against the file's modification time and size. The
 * units are stored as CBOR prototype trees.
 */
type Cache struct {
	db *sql.DB

	mu     sync.Mutex
	hits   int
	misses int
}

func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		path  TEXT PRIMARY KEY,
		mtime INTEGER NOT NULL,
		size  INTEGER NOT NULL,
		unit  BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

/* Get returns the unit cached for path if the file is unchanged */
func (c *Cache) Get(path string, mtime time.Time, size int64) (*bytecode.Prototype, bool, error) {
	var stamp, length int64
	var unit []byte
	err := c.db.QueryRow("SELECT mtime, size, unit FROM chunks WHERE path = ?", path).Scan(&stamp, &length, &unit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.count(false)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying chunk: %w", err)
	}
	if stamp != mtime.UnixNano() || length != size {
		c.count(false)
		return nil, false, nil /* stale */
	}
	p, err := bytecode.Unmarshal(unit)
	if err != nil {
		return nil, false, err
	}
	c.count(true)
	return p, true, nil
}

func (c *Cache) Put(path string, mtime time.Time, size int64, p *bytecode.Prototype) error {
	unit, err := bytecode.Marshal(p)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO chunks (path, mtime, size, unit) VALUES (?, ?, ?, ?)",
		path, mtime.UnixNano(), size, unit,
	)
	if err != nil {
		return fmt.Errorf("saving chunk: %w", err)
	}
	return nil
}

/* Stats returns the number of hits and misses so far */
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Cache) count(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}
