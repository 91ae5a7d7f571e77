package session

import (
	"io/fs"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/p-arndt/codebox/protocol"
)

// ArtifactLink maps a file written by an execution to the URL serving it.
type ArtifactLink struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

const (
	scanAttempts = 3
	scanBackoff  = 50 * time.Millisecond
)

// scanOutputs snapshots the regular files under the session output
// directory, retrying briefly when the directory cannot be read.
func (m *Manager) scanOutputs(sess *Session) (map[string]fileStamp, error) {
	var lastErr error
	backoff := scanBackoff
	for attempt := 0; attempt < scanAttempts; attempt++ {
		snap, err := snapshotDir(sess.OutputDir)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		if attempt < scanAttempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return nil, lastErr
}

func snapshotDir(root string) (map[string]fileStamp, error) {
	snap := make(map[string]fileStamp)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		snap[filepath.ToSlash(rel)] = fileStamp{size: info.Size(), modTime: info.ModTime()}
		return nil
	})
	return snap, err
}

// changedFiles returns the paths in after that are new or differ from
// before, sorted.
func changedFiles(before, after map[string]fileStamp) []string {
	var paths []string
	for p, st := range after {
		prev, ok := before[p]
		if !ok || prev.size != st.size || !prev.modTime.Equal(st.modTime) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

func (m *Manager) artifactLinks(sessionID string, paths []string) []ArtifactLink {
	links := make([]ArtifactLink, 0, len(paths))
	base := m.cfg.BaseURL() + protocol.StaticPrefix + url.PathEscape(sessionID) + "/"
	for _, p := range paths {
		segments := strings.Split(p, "/")
		for i, s := range segments {
			segments[i] = url.PathEscape(s)
		}
		links = append(links, ArtifactLink{
			Path: p,
			URL:  base + strings.Join(segments, "/"),
		})
	}
	return links
}
