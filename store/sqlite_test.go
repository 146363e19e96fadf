package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "request_logs.db")
	s, err := Open(context.Background(), Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestAppendAndCount(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	for _, status := range []int{200, 200, 500, 0} {
		require.NoError(t, s.Append(ctx, Record{RunID: "r1", URL: "http://x/api", Input: "Alice", Status: status, Text: "t"}))
	}

	total, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	ok, err := s.Count(ctx, StatusEquals(200))
	require.NoError(t, err)
	assert.Equal(t, 2, ok)

	none, err := s.Count(ctx, StatusEquals(200), RunEquals("other"))
	require.NoError(t, err)
	assert.Equal(t, 0, none)
}

func TestAppendAssignsWriteTime(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	require.NoError(t, s.Append(ctx, Record{URL: "u", Input: "a", Status: 200, Text: `"a"`}))
	require.NoError(t, s.Append(ctx, Record{URL: "u", Input: "b", Status: 200, Text: `"b"`}))

	first, ok, err := s.EarliestTimestamp(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	last, ok, err := s.LatestTimestamp(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}$`, first)
	assert.LessOrEqual(t, first, last)
}

func TestAppendIgnoresCallerTimestamp(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	require.NoError(t, s.Append(ctx, Record{URL: "u", Input: "a", Status: 200, Text: "t", Timestamp: "1999-01-01 00:00:00.000"}))

	first, ok, err := s.EarliestTimestamp(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, "1999-01-01 00:00:00.000", first)
	assert.Greater(t, first, "2000")
}

func TestGroupByStatusOrdered(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	for _, status := range []int{500, 200, 404, 200, 0} {
		require.NoError(t, s.Append(ctx, Record{URL: "u", Input: "x", Status: status, Text: "t"}))
	}

	groups, err := s.GroupByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, []StatusCount{
		{Status: 0, Count: 1},
		{Status: 200, Count: 2},
		{Status: 404, Count: 1},
		{Status: 500, Count: 1},
	}, groups)
}

func TestTimelineOrderedByTimestamp(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	require.NoError(t, s.Seed(ctx, Record{URL: "u", Input: "c", Status: 500, Text: "t", Timestamp: "2024-01-01 00:00:02.000"}))
	require.NoError(t, s.Seed(ctx, Record{URL: "u", Input: "a", Status: 200, Text: "t", Timestamp: "2024-01-01 00:00:00.000"}))
	require.NoError(t, s.Seed(ctx, Record{URL: "u", Input: "b", Status: 404, Text: "t", Timestamp: "2024-01-01 00:00:01.000"}))

	tl, err := s.Timeline(ctx)
	require.NoError(t, err)
	assert.Equal(t, []StatusAt{
		{Status: 200, Timestamp: "2024-01-01 00:00:00.000"},
		{Status: 404, Timestamp: "2024-01-01 00:00:01.000"},
		{Status: 500, Timestamp: "2024-01-01 00:00:02.000"},
	}, tl)

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Input)
	assert.Equal(t, "b", recent[1].Input)
}

func TestEmptyLogBounds(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	_, ok, err := s.EarliestTimestamp(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	tl, err := s.Timeline(ctx)
	require.NoError(t, err)
	assert.Empty(t, tl)
}

func TestClearEmptiesLog(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	for i := 0; i < 25; i++ {
		require.NoError(t, s.Append(ctx, Record{URL: "u", Input: "x", Status: 200, Text: "t"}))
	}

	res, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, ClearResult{Before: 25, After: 0}, res)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAppendFailureIsWriteError(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	require.NoError(t, s.Append(ctx, Record{URL: "u", Input: "kept", Status: 200, Text: "t"}))
	_, err := s.db.ExecContext(ctx, "DROP TABLE request_logs")
	require.NoError(t, err)

	err = s.Append(ctx, Record{URL: "u", Input: "lost", Status: 200, Text: "t"})
	var werr *WriteError
	require.True(t, errors.As(err, &werr), "expected *WriteError, got %v", err)
}

func TestReadOnlyOpen(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t)
	require.NoError(t, s.Append(ctx, Record{URL: "u", Input: "x", Status: 200, Text: "t"}))
	require.NoError(t, s.Close())

	ro, err := Open(ctx, Config{Path: path, ReadOnly: true})
	require.NoError(t, err)
	defer ro.Close()

	n, err := ro.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = ro.Clear(ctx)
	assert.Error(t, err)
}

func TestReadOnlyOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "missing.db"), ReadOnly: true})
	assert.Error(t, err)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}
