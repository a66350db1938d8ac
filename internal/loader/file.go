package loader

import (
	"os"
	"strings"

	"github.com/uganh16/lua51vm/internal/bytecode"
	"github.com/uganh16/lua51vm/internal/state"
)

/**
 * FileLoader resolves module names against a search path of templates
 * separated by ';', each '?' replaced by the module name with dots turned
 * into directory separators. It completes synchronously.
 */
type FileLoader struct {
	Path  string
	Cache *Cache /* optional */
}

func NewFileLoader(path string, cache *Cache) *FileLoader {
	if path == "" {
		path = DEFAULT_PATH
	}
	return &FileLoader{Path: path, Cache: cache}
}

func (l *FileLoader) Load(name string, done func(*bytecode.Prototype, error)) {
	done(l.LoadModule(name))
}

/* Resolve returns the first readable file for name */
func (l *FileLoader) Resolve(name string) (string, error) {
	fname := strings.ReplaceAll(name, ".", string(os.PathSeparator))
	var tried []string
	for _, tmpl := range strings.Split(l.Path, ";") {
		if tmpl = strings.TrimSpace(tmpl); tmpl == "" {
			continue
		}
		file := strings.ReplaceAll(tmpl, "?", fname)
		if st, err := os.Stat(file); err == nil && st.Mode().IsRegular() {
			return file, nil
		}
		tried = append(tried, file)
	}
	return "", &state.NotFoundError{Name: name, Tried: tried}
}

func (l *FileLoader) LoadModule(name string) (*bytecode.Prototype, error) {
	file, err := l.Resolve(name)
	if err != nil {
		return nil, err
	}
	return l.LoadFile(file)
}

/* LoadFile reads a bytecode unit, going through the cache when there is one */
func (l *FileLoader) LoadFile(file string) (*bytecode.Prototype, error) {
	st, err := os.Stat(file)
	if err != nil {
		return nil, err
	}
	if l.Cache != nil {
		if p, ok, err := l.Cache.Get(file, st.ModTime(), st.Size()); err != nil {
			log.Warningf("cache lookup for %s: %s", file, err)
		} else if ok {
			log.Debugf("cache hit: %s", file)
			return p, nil
		}
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	p, err := Decode(data, "@"+file)
	if err != nil {
		return nil, err
	}
	log.Debugf("loaded %s (%d bytes)", file, len(data))
	if l.Cache != nil {
		if err := l.Cache.Put(file, st.ModTime(), st.Size(), p); err != nil {
			log.Warningf("cache store for %s: %s", file, err)
		}
	}
	return p, nil
}
