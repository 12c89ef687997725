package store

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/export"
)

const projectExt = ".gravity.json"

// FileStore keeps one JSON project file per project under a directory. It
// remembers the digest of every file it wrote or read so a file watcher can
// tell external edits from its own writes.
type FileStore struct {
	dir string

	mu      sync.Mutex
	digests map[string][32]byte
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create projects directory: %w", err)
	}
	return &FileStore{dir: dir, digests: make(map[string][32]byte)}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file used for the named project.
func (s *FileStore) Path(name string) string {
	safe := export.SanitizeName(name, 120)
	if safe == "" {
		safe = "untitled"
	}
	return filepath.Join(s.dir, safe+projectExt)
}

// Save writes p atomically and returns the file path.
func (s *FileStore) Save(p *edl.Project) (string, error) {
	if p == nil {
		return "", fmt.Errorf("save project file: %w", edl.ErrInvalidArgument)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal project %q: %w", p.Name, err)
	}

	path := s.Path(p.Name)
	tmp, err := os.CreateTemp(s.dir, ".project-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write project file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close project file: %w", err)
	}

	s.remember(path, data)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("replace project file: %w", err)
	}
	return path, nil
}

// Load reads and validates a project file.
func (s *FileStore) Load(path string) (*edl.Project, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}

	var p edl.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", edl.ErrInvalidProject, filepath.Base(path), err)
	}
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s.remember(path, data)
	return &p, nil
}

func (s *FileStore) LoadByName(name string) (*edl.Project, error) {
	return s.Load(s.Path(name))
}

// List returns the project file paths in the directory, sorted.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), projectExt) {
			out = append(out, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Changed reports whether the file at path differs from what this store last
// wrote or read there. Unreadable files report false.
func (s *FileStore) Changed(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.digests[filepath.Clean(path)]
	return !ok || prev != sum
}

func (s *FileStore) remember(path string, data []byte) {
	s.mu.Lock()
	s.digests[filepath.Clean(path)] = sha256.Sum256(data)
	s.mu.Unlock()
}
