// Package fsys provides the file-system collaborator used by the engine.
//
// Two implementations are provided: OS for the real file system and Mem, an
// in-memory tree used by tests and the harness. Both report missing files as
// errors wrapping fs.ErrNotExist so callers can classify them with errors.Is.
package fsys

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Entry describes one directory entry returned by Scandir.
type Entry struct {
	Name  string
	IsDir bool
}

// FileSystem is the narrow file-system surface the engine consumes.
type FileSystem interface {
	// Scandir lists the entries of dir sorted by name.
	Scandir(ctx context.Context, dir string) ([]Entry, error)
	// ReadFile returns the contents of the file at p.
	ReadFile(ctx context.Context, p string) ([]byte, error)
}

// Dir returns the directory part of a slash or OS path.
// The result is "" for a bare file name.
func Dir(p string) string {
	p = filepath.ToSlash(p)
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return ""
	}
	if idx == 0 {
		return "/"
	}
	return p[:idx]
}

// Join joins dir and name with a slash, tolerating an empty dir.
func Join(dir, name string) string {
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}

// DecodeText converts file bytes to a string. UTF-8 input is returned as-is;
// anything else is decoded as Windows-1252, which covers the Latin-1 files
// produced by older course tools.
func DecodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(out)
}

// OS reads from the real file system, optionally rooted at Base.
type OS struct {
	Base string
}

// NewOS creates an OS file system. Relative paths resolve against base.
func NewOS(base string) *OS {
	return &OS{Base: base}
}

func (o *OS) resolve(p string) string {
	p = filepath.FromSlash(p)
	if o.Base == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(o.Base, p)
}

// Scandir implements FileSystem.
func (o *OS) Scandir(ctx context.Context, dir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(o.resolve(dir))
	if err != nil {
		return nil, fmt.Errorf("scandir %s: %w", dir, err)
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, Entry{Name: e.Name(), IsDir: e.IsDir()})
	}
	return out, nil
}

// ReadFile implements FileSystem.
func (o *OS) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(o.resolve(p))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// Mem is an in-memory FileSystem keyed by slash-separated paths.
// It is safe for concurrent use.
type Mem struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMem creates an in-memory file system seeded with files.
func NewMem(files map[string]string) *Mem {
	m := &Mem{files: make(map[string][]byte, len(files))}
	for p, content := range files {
		m.files[clean(p)] = []byte(content)
	}
	return m
}

func clean(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	return strings.TrimPrefix(p, "./")
}

// WriteFile stores data at p, replacing any previous content.
func (m *Mem) WriteFile(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[clean(p)] = append([]byte(nil), data...)
}

// Remove deletes the file at p.
func (m *Mem) Remove(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, clean(p))
}

// ReadFile implements FileSystem.
func (m *Mem) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[clean(p)]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", p, fs.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}

// Scandir implements FileSystem. Sub-directories are derived from file paths.
func (m *Mem) Scandir(ctx context.Context, dir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := clean(dir)
	if prefix == "." || prefix == "" {
		prefix = ""
	} else {
		prefix += "/"
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var out []Entry
	for p := range m.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		name, _, nested := strings.Cut(rest, "/")
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Entry{Name: name, IsDir: nested})
	}
	if out == nil && prefix != "" {
		return nil, fmt.Errorf("scandir %s: %w", dir, fs.ErrNotExist)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
