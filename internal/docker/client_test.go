package docker

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readTar(t *testing.T, r io.Reader) map[string]string {
	t.Helper()
	entries := make(map[string]string)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = string(data)
	}
	return entries
}

func TestCappedBuffer_UnderLimit(t *testing.T) {
	b := newCappedBuffer(16)
	n, err := b.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", b.String())
	assert.False(t, b.truncated)
}

func TestCappedBuffer_Truncates(t *testing.T) {
	b := newCappedBuffer(4)
	n, err := b.Write([]byte("hello world"))
	require.NoError(t, err)
	// reports the full write so the demultiplexer keeps draining
	assert.Equal(t, 11, n)
	assert.Equal(t, "hell", b.String())
	assert.True(t, b.truncated)

	n, err = b.Write([]byte("more"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "hell", b.String())
}

func TestTarSingleFile_OnlyFileEntry(t *testing.T) {
	r, err := tarSingleFile("abc.py", []byte("print(1)"), 0o644)
	require.NoError(t, err)

	entries := readTar(t, r)
	assert.Equal(t, map[string]string{"abc.py": "print(1)"}, entries)
}

func TestTarSingleFile_RejectsPaths(t *testing.T) {
	for _, name := range []string{"", ".", "/", "app/.runs/abc.py"} {
		_, err := tarSingleFile(name, []byte("x"), 0o644)
		assert.Error(t, err, name)
	}
}

func TestTarBuildContext_HonoursDockerignore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM python:3.12-slim\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("numpy\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "codebox.db"), []byte("binary"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "results", "s1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "results", "s1", "out.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dockerignore"), []byte("# generated\nresults/\n*.db\n"), 0o644))

	r, err := tarBuildContext(dir)
	require.NoError(t, err)

	entries := readTar(t, r)
	var names []string
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	assert.Equal(t, []string{".dockerignore", "Dockerfile", "requirements.txt"}, names)
	assert.Equal(t, "FROM python:3.12-slim\n", entries["Dockerfile"])
}

func TestIgnored(t *testing.T) {
	patterns := []string{"results", "*.log", "docs/*.md"}

	assert.True(t, ignored(patterns, "results"))
	assert.True(t, ignored(patterns, "results/s1/out.txt"))
	assert.True(t, ignored(patterns, "codebox.log"))
	assert.True(t, ignored(patterns, "nested/dir/server.log"))
	assert.True(t, ignored(patterns, "docs/readme.md"))
	assert.False(t, ignored(patterns, "Dockerfile"))
	assert.False(t, ignored(patterns, "other/readme.md"))
}
