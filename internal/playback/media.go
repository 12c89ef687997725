package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	ErrBadRange      = errors.New("malformed range header")
	ErrRangeNotFound = errors.New("range outside media")
	ErrOutsideRoot   = errors.New("media path escapes the media directory")
)

// ByteRange is an inclusive byte window of a media file.
type ByteRange struct {
	First int64
	Last  int64
}

func (b ByteRange) Length() int64 {
	return b.Last - b.First + 1
}

func (b ByteRange) Header(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", b.First, b.Last, size)
}

// ParseByteRange reads the first range of a Range header. An empty header
// yields a nil range. Only the first of several ranges is honored.
func ParseByteRange(header string, size int64) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	rng, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, ErrBadRange
	}
	rng, _, _ = strings.Cut(rng, ",")
	from, to, ok := strings.Cut(strings.TrimSpace(rng), "-")
	if !ok {
		return nil, ErrBadRange
	}

	var br ByteRange
	if from == "" {
		n, err := strconv.ParseInt(to, 10, 64)
		if err != nil || n <= 0 {
			return nil, ErrBadRange
		}
		br = ByteRange{First: max(size-n, 0), Last: size - 1}
	} else {
		first, err := strconv.ParseInt(from, 10, 64)
		if err != nil || first < 0 {
			return nil, ErrBadRange
		}
		last := size - 1
		if to != "" {
			if last, err = strconv.ParseInt(to, 10, 64); err != nil {
				return nil, ErrBadRange
			}
		}
		br = ByteRange{First: first, Last: last}
	}

	if br.First >= size || br.First > br.Last {
		return nil, ErrRangeNotFound
	}
	br.Last = min(br.Last, size-1)
	return &br, nil
}

// MediaServer streams source media from a directory to the preview with
// byte-range support so clients can seek without downloading whole files.
type MediaServer struct {
	root   string
	logger *slog.Logger
}

func NewMediaServer(root string, logger *slog.Logger) *MediaServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaServer{root: root, logger: logger}
}

// Resolve maps a client-supplied name to a path inside the media directory.
func (m *MediaServer) Resolve(name string) (string, error) {
	root, err := filepath.Abs(m.root)
	if err != nil {
		return "", err
	}
	p := filepath.Join(root, filepath.FromSlash(filepath.Clean("/"+name)))
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ErrOutsideRoot
	}
	return p, nil
}

// Serve writes the named media file, honoring a Range header.
func (m *MediaServer) Serve(w http.ResponseWriter, r *http.Request, name string) error {
	path, err := m.Resolve(name)
	if err != nil {
		http.Error(w, "invalid media path", http.StatusBadRequest)
		return nil
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "media not found", http.StatusNotFound)
		return nil
	}
	if err != nil {
		return fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat media: %w", err)
	}
	if info.IsDir() {
		http.Error(w, "media not found", http.StatusNotFound)
		return nil
	}
	size := info.Size()

	ctype := mime.TypeByExtension(filepath.Ext(path))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", ctype)

	br, err := ParseByteRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrRangeNotFound):
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrBadRange):
		m.logger.Debug("ignoring malformed range", "range", r.Header.Get("Range"))
		br = nil
	}

	if br == nil {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		_, err = io.Copy(w, f)
		return err
	}

	if _, err := f.Seek(br.First, io.SeekStart); err != nil {
		return fmt.Errorf("seek media: %w", err)
	}
	h.Set("Content-Length", strconv.FormatInt(br.Length(), 10))
	h.Set("Content-Range", br.Header(size))
	w.WriteHeader(http.StatusPartialContent)
	_, err = io.CopyN(w, f, br.Length())
	return err
}
