package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datasetbuilder/models"
)

func rec(ts int64, values ...string) models.Record {
	r := models.Record{Timestamp: ts}
	names := []string{"long_account", "short_account", "long_short_ratio"}
	for i, v := range values {
		r.Fields = append(r.Fields, models.Field{Name: names[i], Value: v})
	}
	return r
}

func genesis(ts int64) func() int64 { return func() int64 { return ts } }

func TestOpenCreatesFileAndDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "long_short_ratio.csv")

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestOpenKeepsExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,a\n1,x"), 0o644))

	_, err := Open(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "timestamp,a\n1,x", string(data))
}

func TestOpenFailsOnDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir())
	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "open", storageErr.Op)
}

func TestLoadEmptyUsesGenesis(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "data.csv"))
	require.NoError(t, err)

	ds, err := s.Load(genesis(1568102400000))
	require.NoError(t, err)
	assert.Equal(t, int64(1568102400000), ds.Resume())
	assert.Nil(t, ds.Header())
	assert.Equal(t, "", ds.Text())
}

func TestLoadHeaderOnlyUsesGenesis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,funding_rate"), 0o644))
	s, err := Open(path)
	require.NoError(t, err)

	ds, err := s.Load(genesis(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), ds.Resume())
	assert.Equal(t, []string{"timestamp", "funding_rate"}, ds.Header())
}

func TestLoadResumesFromLastLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,funding_rate\n100,0.0001\n200,0.0002\n"), 0o644))
	s, err := Open(path)
	require.NoError(t, err)

	called := false
	ds, err := s.Load(func() int64 { called = true; return 0 })
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, int64(200), ds.Resume())
	assert.Equal(t, 2, ds.Len())
}

func TestLoadMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,funding_rate\n100,0.1\nabc,0.2"), 0o644))
	s, err := Open(path)
	require.NoError(t, err)

	_, err = s.Load(genesis(0))
	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "load", storageErr.Op)
}

func TestLoadRejectsOutOfOrderLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,funding_rate\n200,0.1\n100,0.2"), 0o644))
	s, err := Open(path)
	require.NoError(t, err)

	_, err = s.Load(genesis(0))
	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
}

func TestAppendSynthesizesHeader(t *testing.T) {
	ds := &Dataset{}
	n := ds.Append([]models.Record{rec(100, "0.6", "0.4", "1.5"), rec(200, "0.5", "0.5", "1")})

	assert.Equal(t, 2, n)
	assert.Equal(t, "timestamp,long_account,short_account,long_short_ratio\n100,0.6,0.4,1.5\n200,0.5,0.5,1", ds.Text())
}

func TestAppendSkipsDuplicatesAndOlder(t *testing.T) {
	ds := &Dataset{}
	require.Equal(t, 2, ds.Append([]models.Record{rec(100, "1"), rec(200, "2")}))

	n := ds.Append([]models.Record{rec(100, "1"), rec(150, "x"), rec(200, "2"), rec(300, "3"), rec(300, "3")})
	assert.Equal(t, 1, n)
	assert.Equal(t, "timestamp,long_account\n100,1\n200,2\n300,3", ds.Text())
}

func TestAppendDedupIsExactNotSubstring(t *testing.T) {
	ds := &Dataset{}
	require.Equal(t, 1, ds.Append([]models.Record{rec(100, "200300")}))

	// 200300 already occurs in the stored text as a value, not as a timestamp.
	n := ds.Append([]models.Record{rec(200300, "b")})
	assert.Equal(t, 1, n)
	assert.Equal(t, "timestamp,long_account\n100,200300\n200300,b", ds.Text())
}

func TestAppendEmptyBatch(t *testing.T) {
	ds := &Dataset{}
	assert.Zero(t, ds.Append(nil))
	assert.Equal(t, "", ds.Text())
}

func TestEnsureHeader(t *testing.T) {
	ds := &Dataset{}
	require.NoError(t, ds.EnsureHeader("f.csv", []string{"timestamp", "a"}))

	ds.Append([]models.Record{rec(1, "x")})
	require.NoError(t, ds.EnsureHeader("f.csv", []string{"timestamp", "long_account"}))

	err := ds.EnsureHeader("f.csv", []string{"timestamp", "funding_rate"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHeaderMismatch))
	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "header", storageErr.Op)
}

func TestSaveRoundTripIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	s, err := Open(path)
	require.NoError(t, err)

	ds, err := s.Load(genesis(0))
	require.NoError(t, err)
	ds.Append([]models.Record{rec(100, "1", "2", "3"), rec(200, "4", "5", "6")})
	require.NoError(t, s.Save(ds))

	first, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ds.Text(), string(first))

	reloaded, err := s.Load(genesis(0))
	require.NoError(t, err)
	assert.Equal(t, int64(200), reloaded.Resume())
	assert.Zero(t, reloaded.Append([]models.Record{rec(100, "1", "2", "3"), rec(200, "4", "5", "6")}))
	require.NoError(t, s.Save(reloaded))

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestRecordsParsesLines(t *testing.T) {
	ds := &Dataset{}
	ds.Append([]models.Record{rec(100, "0.6", "0.4", "1.5")})

	records, err := ds.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(100), records[0].Timestamp)
	v, ok := records[0].Value("long_short_ratio")
	assert.True(t, ok)
	assert.Equal(t, "1.5", v)
}

func TestSpan(t *testing.T) {
	ds := &Dataset{}
	_, _, ok := ds.Span()
	assert.False(t, ok)

	ds.Append([]models.Record{rec(100, "1"), rec(200, "2"), rec(300, "3")})
	first, last, ok := ds.Span()
	assert.True(t, ok)
	assert.Equal(t, int64(100), first)
	assert.Equal(t, int64(300), last)
}
