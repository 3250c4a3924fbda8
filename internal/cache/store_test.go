package cache

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dyike/twpbr/models"
)

func TestLoadFallsBackToEmpty(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"empty.json":  "",
		"blank.json":  "  \n",
		"null.json":   "null",
		"broken.json": "{\"20250102\": ",
		"list.json":   "[1, 2]",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		assert.Equal(t, models.PBRCounts{}, New(path).Load(), name)
	}

	assert.Equal(t, models.PBRCounts{}, New(filepath.Join(dir, "missing.json")).Load())

	backup, err := os.ReadFile(filepath.Join(dir, "broken.json.corrupt"))
	require.NoError(t, err)
	assert.Equal(t, "{\"20250102\": ", string(backup))
	assert.NoFileExists(t, filepath.Join(dir, "null.json.corrupt"))
}

func TestLoadKeepsNullAndFloatCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "json_data.json")
	body := `{"20250102": 120, "20250103": null, "20250106": 130.0, "20250107": 131.5}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	store := New(path)

	got := store.Load()
	require.Len(t, got, 4)
	assert.Equal(t, 120.0, got["20250102"])
	assert.True(t, math.IsNaN(got["20250103"]))
	assert.Equal(t, 130.0, got["20250106"])
	assert.Equal(t, 131.5, got["20250107"])
	assert.Len(t, got.Known(), 3)

	require.NoError(t, store.Save(got))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"20250102\": 120,\n    \"20250103\": null,\n    \"20250106\": 130,\n    \"20250107\": 131.5\n}\n", string(raw))
	assert.NoFileExists(t, path+".corrupt")
}

func TestSaveFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "json_data.json")
	store := New(path)

	require.NoError(t, store.Save(models.PBRCounts{"20250103": 210, "20250102": 198}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"20250102\": 198,\n    \"20250103\": 210\n}\n", string(raw))

	assert.Equal(t, models.PBRCounts{"20250102": 198, "20250103": 210}, store.Load())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestSaveNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "json_data.json")
	require.NoError(t, New(path).Save(nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(raw))
}

type fakeFetcher struct {
	answers map[string]models.PBRCounts
	fail    map[string]bool
	calls   []string
	cancel  context.CancelFunc
}

func (f *fakeFetcher) FetchPBRCount(ctx context.Context, date string) (models.PBRCounts, error) {
	f.calls = append(f.calls, date)
	if f.cancel != nil {
		f.cancel()
		return nil, ctx.Err()
	}
	if f.fail[date] {
		return nil, errors.New("http status 503")
	}
	if v, ok := f.answers[date]; ok {
		return v, nil
	}
	return models.PBRCounts{}, nil
}

func TestMerge(t *testing.T) {
	cached := models.PBRCounts{"20250102": 198}
	fetcher := &fakeFetcher{
		answers: map[string]models.PBRCounts{"20250103": {"20250103": 210}},
		fail:    map[string]bool{"20250107": true},
	}

	dates := []string{"20250102", "20250103", "20250106", "20250107"}
	got, err := Merge(context.Background(), dates, cached, fetcher, 0)
	require.NoError(t, err)

	assert.Equal(t, models.PBRCounts{"20250102": 198, "20250103": 210}, got)
	assert.Equal(t, models.PBRCounts{"20250102": 198, "20250103": 210}, cached)
	assert.Equal(t, []string{"20250103", "20250106", "20250107"}, fetcher.calls)
}

func TestMergePacesDownloadsOnly(t *testing.T) {
	const interval = 30 * time.Millisecond
	fetcher := &fakeFetcher{answers: map[string]models.PBRCounts{
		"20250103": {"20250103": 210},
		"20250106": {"20250106": 205},
	}}
	cached := models.PBRCounts{"20250102": 198}

	start := time.Now()
	_, err := Merge(context.Background(), []string{"20250102", "20250103", "20250106"}, cached, fetcher, interval)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 2*interval)
	assert.Len(t, fetcher.calls, 2)

	start = time.Now()
	got, err := Merge(context.Background(), []string{"20250102", "20250103", "20250106"}, cached, fetcher, interval)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), interval)
	assert.Len(t, fetcher.calls, 2, "cached dates are not downloaded again")
	assert.Len(t, got, 3)
}

func TestMergeCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &fakeFetcher{cancel: cancel}

	_, err := Merge(ctx, []string{"20250102", "20250103"}, models.PBRCounts{}, fetcher, 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"20250102"}, fetcher.calls)
}
