package classify

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStrategy returns a fixed answer and records how often it ran.
type fakeStrategy struct {
	name       string
	result     Classification
	definitive bool
	calls      int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Classify(string, fs.FileInfo) (Classification, bool) {
	f.calls++
	return f.result, f.definitive
}

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestClassify_FirstDefinitiveWins(t *testing.T) {
	first := &fakeStrategy{name: "first", result: CloudOnly, definitive: true}
	second := &fakeStrategy{name: "second", result: Local, definitive: true}

	c := New(WithStrategies(first, second))
	path := writeFile(t, t.TempDir(), "a.bin", 4096)

	assert.Equal(t, CloudOnly, c.Classify(path))
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestClassify_InconclusiveFallsThrough(t *testing.T) {
	first := &fakeStrategy{name: "first", definitive: false}
	second := &fakeStrategy{name: "second", result: CloudOnly, definitive: true}

	c := New(WithStrategies(first, second))
	path := writeFile(t, t.TempDir(), "a.bin", 4096)

	assert.Equal(t, CloudOnly, c.Classify(path))
	assert.Equal(t, 1, first.calls)
}

func TestClassify_AllInconclusiveDefaultsLocal(t *testing.T) {
	c := New(WithStrategies(&fakeStrategy{name: "noop"}))
	path := writeFile(t, t.TempDir(), "a.bin", 4096)

	assert.Equal(t, Local, c.Classify(path))
}

func TestClassify_MissingFileIsLocal(t *testing.T) {
	c := New(WithStrategies(&fakeStrategy{name: "cloud", result: CloudOnly, definitive: true}))
	assert.Equal(t, Local, c.Classify(filepath.Join(t.TempDir(), "missing.bin")))
}

func TestClassify_CachesUnchangedFiles(t *testing.T) {
	strategy := &fakeStrategy{name: "cloud", result: CloudOnly, definitive: true}
	c := New(WithStrategies(strategy))
	path := writeFile(t, t.TempDir(), "a.bin", 4096)

	assert.Equal(t, CloudOnly, c.Classify(path))
	assert.Equal(t, CloudOnly, c.Classify(path))
	assert.Equal(t, 1, strategy.calls)
}

func TestRefresh_BypassesCache(t *testing.T) {
	strategy := &fakeStrategy{name: "cloud", result: CloudOnly, definitive: true}
	c := New(WithStrategies(strategy))
	path := writeFile(t, t.TempDir(), "a.bin", 4096)

	c.Classify(path)
	strategy.result = Local
	// mtime and size unchanged, Classify would still serve the cached answer
	assert.Equal(t, CloudOnly, c.Classify(path))
	assert.Equal(t, Local, c.Refresh(path))
	// refresh updates the cache
	assert.Equal(t, Local, c.Classify(path))
}

func TestSizeHeuristic(t *testing.T) {
	tmp := t.TempDir()
	small := writeFile(t, tmp, "small.txt", 100)
	large := writeFile(t, tmp, "large.bin", 2048)

	s := &SizeHeuristic{Threshold: DefaultSizeThreshold}

	smallInfo, err := os.Lstat(small)
	require.NoError(t, err)
	result, ok := s.Classify(small, smallInfo)
	assert.True(t, ok)
	assert.Equal(t, CloudOnly, result)

	largeInfo, err := os.Lstat(large)
	require.NoError(t, err)
	_, ok = s.Classify(large, largeInfo)
	assert.False(t, ok)
}

func TestSizeHeuristic_IgnoresNonRegular(t *testing.T) {
	tmp := t.TempDir()
	info, err := os.Lstat(tmp)
	require.NoError(t, err)

	s := &SizeHeuristic{Threshold: DefaultSizeThreshold}
	_, ok := s.Classify(tmp, info)
	assert.False(t, ok)
}

func TestAttribFlags_StripsPath(t *testing.T) {
	// a path containing 'U' must not read as the unpinned flag
	flags := attribFlags("A            C:\\Users\\me\\file.txt", "C:\\Users\\me\\file.txt")
	assert.NotContains(t, flags, "U")
	assert.Contains(t, flags, "A")

	flags = attribFlags("A    U       C:\\data\\file.txt", "C:\\data\\file.txt")
	assert.Contains(t, flags, "U")
	assert.NotContains(t, flags, "P")
}

func TestAttribCommand_MissingBinaryInconclusive(t *testing.T) {
	if _, err := os.Stat(`C:\Windows`); err == nil {
		t.Skip("attrib exists on windows")
	}

	s := &AttribCommand{Timeout: time.Second}
	path := writeFile(t, t.TempDir(), "a.bin", 4096)
	info, err := os.Lstat(path)
	require.NoError(t, err)

	_, ok := s.Classify(path, info)
	assert.False(t, ok)
}
