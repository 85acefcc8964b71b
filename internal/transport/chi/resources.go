package chi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/normgate/internal/logger"
)

// GetResource handles GET {resource_prefix}/*. The path after the prefix is
// forwarded to the registry as is, still escaped.
func (s *Server) GetResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.EscapedPath(), s.resourcePrefix)

	res, err := s.resources.Fetch(r.Context(), path, r.URL.RawQuery)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	defer func() { _ = res.Body.Close() }()

	h := w.Header()
	for k, vv := range res.Header {
		h[k] = vv
	}
	w.WriteHeader(res.Status)

	if _, err := copyFlush(w, res.Body); err != nil {
		logger.FromContext(r.Context(), s.logger).Debug("resource copy interrupted",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

// copyFlush copies src to w, flushing after every chunk so large documents
// reach the browser progressively.
func copyFlush(w http.ResponseWriter, src io.Reader) (int64, error) {
	flusher, canFlush := w.(http.Flusher)
	buf := make([]byte, 32<<10)
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, werr //nolint:wrapcheck // client went away
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, err //nolint:wrapcheck // upstream read error
		}
	}
}
