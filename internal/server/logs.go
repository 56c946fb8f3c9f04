package server

import (
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/postersmith/postersmith/pkg/errors"
)

const (
	defaultLogLines = 200
	maxLogLines     = 2000
	// logs larger than this are read from the tail only
	maxLogReadBytes = 1 << 20
)

// handleLogs serves the last N lines of the log file the logger tees into.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logPath == "" {
		s.respondError(w, errors.NotFound("file logging is not configured"))
		return
	}

	lines := defaultLogLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, errors.BadRequest("lines must be a positive integer"))
			return
		}
		if n > maxLogLines {
			n = maxLogLines
		}
		lines = n
	}

	tail, err := tailFile(s.logPath, lines)
	if err != nil {
		if os.IsNotExist(err) {
			s.respond(w, http.StatusOK, map[string][]string{"lines": {}})
			return
		}
		s.respondError(w, errors.Wrap(errors.ErrorTypeInternal, "reading log file", err))
		return
	}
	s.respond(w, http.StatusOK, map[string][]string{"lines": tail})
}

// tailFile returns the last n lines of the file, reading at most
// maxLogReadBytes from its end.
func tailFile(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := info.Size()
	offset := int64(0)
	if size > maxLogReadBytes {
		offset = size - maxLogReadBytes
	}
	if _, err := f.Seek(offset, 0); err != nil {
		return nil, err
	}

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	all := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	if offset > 0 && len(all) > 0 {
		// The first line is probably truncated by the seek.
		all = all[1:]
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	if len(all) == 1 && all[0] == "" {
		all = []string{}
	}
	return all, nil
}
