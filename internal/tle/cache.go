package tle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cache keeps raw TLE text on disk, one file per fetch, grouped by key
// (typically the mission id). Files are named tle_<key>_<unix>.txt.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache creates a Cache that stores files in dir and keeps at most
// maxFiles per key.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// Write saves data under key and prunes that key's old files.
func (c *Cache) Write(key string, data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	path := filepath.Join(c.dir, fmt.Sprintf("tle_%s_%d.txt", sanitizeKey(key), ts.Unix()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return c.prune(key)
}

// LoadLatest reads the newest file for key.
func (c *Cache) LoadLatest(key string) ([]byte, time.Time, error) {
	files, err := c.listFiles(key)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, fmt.Errorf("no cache files found for %q", key)
	}

	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, latest.ts, nil
}

// Keys lists the keys that have at least one cached file.
func (c *Cache) Keys() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	seen := map[string]bool{}
	var keys []string
	for _, e := range entries {
		key, _, ok := splitName(e.Name())
		if e.IsDir() || !ok || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

type cacheFile struct {
	name string
	ts   time.Time
}

// listFiles returns key's files, oldest first.
func (c *Cache) listFiles(key string) ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	key = sanitizeKey(key)
	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		k, ts, ok := splitName(e.Name())
		if !ok || k != key {
			continue
		}
		files = append(files, cacheFile{name: e.Name(), ts: ts})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})
	return files, nil
}

func (c *Cache) prune(key string) error {
	files, err := c.listFiles(key)
	if err != nil {
		return err
	}
	if len(files) <= c.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}
	return nil
}

// splitName parses tle_<key>_<unix>.txt.
func splitName(name string) (string, time.Time, bool) {
	if !strings.HasPrefix(name, "tle_") || !strings.HasSuffix(name, ".txt") {
		return "", time.Time{}, false
	}
	base := strings.TrimSuffix(strings.TrimPrefix(name, "tle_"), ".txt")
	i := strings.LastIndexByte(base, '_')
	if i <= 0 {
		return "", time.Time{}, false
	}
	unix, err := strconv.ParseInt(base[i+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return base[:i], time.Unix(unix, 0), true
}

func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '-'
	}, key)
}
