package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniogi/dabmpi/internal/candidate"
	"github.com/antoniogi/dabmpi/internal/dabcontext"
	"github.com/antoniogi/dabmpi/internal/schema"
)

func testSchema(t *testing.T) *schema.ParameterSchema {
	t.Helper()
	s, err := schema.New([]schema.Parameter{
		{Index: 0, Name: "x0", Kind: schema.Real, Min: -5, Max: 5, Step: 0.01, Display: true},
	})
	require.NoError(t, err)
	return s
}

func writeQueueFile(t *testing.T, path string, rows []string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strJoin(rows)), 0o644))
}

func strJoin(rows []string) string {
	out := ""
	for _, r := range rows {
		out += r + "\n"
	}
	return out
}

func TestStageWritesOneDirectoryPerValidEntry(t *testing.T) {
	s := testSchema(t)
	c := candidate.New(s)
	c.Set(0, candidate.RealValue(1.5))
	encoded := candidate.Encode(c)

	queuePath := filepath.Join(t.TempDir(), "finished.queue")
	writeQueueFile(t, queuePath, []string{
		encoded + "#10#1",
		encoded + "#-1#2", // invalid fitness, must be skipped
		encoded + "#20#1",
	})

	baseDir := t.TempDir()
	staged, err := Stage(queuePath, s, dabcontext.Maximize, baseDir)
	require.NoError(t, err)
	assert.Equal(t, 2, staged)

	entries, err := os.ReadDir(baseDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(baseDir, e.Name(), stagedInputFile))
		require.NoError(t, err)
		assert.Contains(t, string(data), "0:")
	}
}

func TestStageSkipsCorruptLinesWithoutAborting(t *testing.T) {
	s := testSchema(t)
	c := candidate.New(s)
	c.Set(0, candidate.RealValue(2.0))
	encoded := candidate.Encode(c)

	queuePath := filepath.Join(t.TempDir(), "finished.queue")
	writeQueueFile(t, queuePath, []string{
		"not-a-valid-encoding#5#1",
		encoded + "#5#1",
	})

	baseDir := t.TempDir()
	staged, err := Stage(queuePath, s, dabcontext.Maximize, baseDir)
	require.NoError(t, err)
	assert.Equal(t, 1, staged)
}

func TestStageReturnsZeroForMissingQueueFile(t *testing.T) {
	s := testSchema(t)
	baseDir := t.TempDir()
	staged, err := Stage(filepath.Join(t.TempDir(), "absent.queue"), s, dabcontext.Maximize, baseDir)
	require.NoError(t, err)
	assert.Equal(t, 0, staged)

	entries, err := os.ReadDir(baseDir)
	require.NoError(t, err)
	assert.Len(t, entries, 0)
}
