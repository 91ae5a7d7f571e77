package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
)

// handleStatic serves files written by executions from the artifacts
// directory. Directories are never listed and paths cannot leave the root.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	rel := path.Clean("/" + r.PathValue("path"))[1:]
	s.logger.Info("File accessed", "path", rel, "remote", r.RemoteAddr)

	if rel == "" {
		http.NotFound(w, r)
		return
	}

	root, err := os.OpenRoot(s.cfg.Artifacts.Dir)
	if err != nil {
		s.logger.Error("open artifacts dir", "error", err)
		http.NotFound(w, r)
		return
	}
	defer root.Close()

	f, err := root.Open(rel)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("open artifact", "path", rel, "error", err)
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || !st.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}

	http.ServeContent(w, r, st.Name(), st.ModTime(), f)
}
