package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "irisapi/internal/errors"
	"irisapi/internal/model"
)

const header = "sepal_length,sepal_width,petal_length,petal_width,species\n"

// swapSource serves whatever CSV was last stored and counts opens.
type swapSource struct {
	data  atomic.Value
	opens atomic.Int32
	err   atomic.Value
}

func newSwapSource(csv string) *swapSource {
	s := &swapSource{}
	s.data.Store(csv)
	return s
}

func (s *swapSource) Open(context.Context) (io.ReadCloser, error) {
	s.opens.Add(1)
	if err, ok := s.err.Load().(error); ok && err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(s.data.Load().(string))), nil
}

func (s *swapSource) String() string { return "test" }

func xyzDataset() string {
	var b strings.Builder
	b.WriteString(header)
	for i, category := range []string{"Z", "X", "Y"} {
		for j := 0; j < 20; j++ {
			fmt.Fprintf(&b, "%.1f,%.1f,%.1f,%.1f,%s\n", 4.0+float64(i), 3.0+float64(j%4)*0.1, 1.0+float64(i)*2, 0.2+float64(j%3)*0.1, category)
		}
	}
	return b.String()
}

func xyzOptions() Options {
	return Options{Categories: []string{"X", "Y", "Z"}, NoLabelPrefix: true}
}

func TestCacheListAndFilterByCategory(t *testing.T) {
	cache := New(newSwapSource(xyzDataset()), xyzOptions())
	ctx := context.Background()

	categories, err := cache.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y", "Z"}, categories)

	records, err := cache.GetByCategory(ctx, "Y")
	require.NoError(t, err)
	assert.Len(t, records, 20)
	for _, r := range records {
		assert.Equal(t, "Y", r.Species)
	}

	all, err := cache.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all.Records, 60)
	assert.Equal(t, 60, all.Stats.Count)
	assert.Equal(t, 20, all.Stats.Categories["X"].Count)
}

func TestCacheGetByCategoryCaseInsensitive(t *testing.T) {
	cache := New(newSwapSource(xyzDataset()), xyzOptions())

	records, err := cache.GetByCategory(context.Background(), "y")
	require.NoError(t, err)
	assert.Len(t, records, 20)
}

func TestCacheGetByCategoryNotFound(t *testing.T) {
	csv := header + "5.1,3.5,1.4,0.2,X\n"
	cache := New(newSwapSource(csv), xyzOptions())
	ctx := context.Background()

	tests := []struct {
		name     string
		category string
	}{
		{name: "outside enumeration", category: "W"},
		{name: "known but absent", category: "Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cache.GetByCategory(ctx, tt.category)
			assert.ErrorIs(t, err, apperrors.ErrDataNotFound)
		})
	}
}

func TestCacheLoadsLazilyOnce(t *testing.T) {
	source := newSwapSource(xyzDataset())
	cache := New(source, xyzOptions())
	ctx := context.Background()

	assert.False(t, cache.IsLoaded())
	_, ok := cache.LastLoaded()
	assert.False(t, ok)
	assert.Equal(t, int32(0), source.opens.Load())

	first, err := cache.GetAll(ctx)
	require.NoError(t, err)
	second, err := cache.GetAll(ctx)
	require.NoError(t, err)

	assert.True(t, cache.IsLoaded())
	assert.Equal(t, int32(1), source.opens.Load())
	assert.Same(t, first, second)
	assert.Equal(t, first.Stats, second.Stats)
	assert.Equal(t, len(first.Records), len(second.Records))
}

func TestCacheFailedReloadKeepsPreviousSnapshot(t *testing.T) {
	source := newSwapSource(xyzDataset())
	cache := New(source, xyzOptions())
	ctx := context.Background()

	before, err := cache.GetAll(ctx)
	require.NoError(t, err)

	source.data.Store("sepal_length,sepal_width,petal_length,species\n5.1,3.5,1.4,X\n")
	_, err = cache.Reload(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDataLoad)

	after, err := cache.GetAll(ctx)
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.Len(t, after.Records, 60)
}

func TestCacheFailedFirstLoadStaysEmpty(t *testing.T) {
	source := newSwapSource(header + "abc,3.5,1.4,0.2,X\n")
	cache := New(source, xyzOptions())

	_, err := cache.GetAll(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrDataLoad)
	assert.False(t, cache.IsLoaded())

	source.data.Store(xyzDataset())
	snap, err := cache.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Records, 60)
}

func TestCacheReloadPublishesNewSnapshot(t *testing.T) {
	source := newSwapSource(xyzDataset())
	loadedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	opts := xyzOptions()
	opts.Now = func() time.Time { return loadedAt }
	cache := New(source, opts)
	ctx := context.Background()

	_, err := cache.GetAll(ctx)
	require.NoError(t, err)

	source.data.Store(header + "5.1,3.5,1.4,0.2,X\n4.9,3.0,1.4,0.2,X\n")
	snap, err := cache.Reload(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Records, 2)

	categories, err := cache.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, categories)

	last, ok := cache.LastLoaded()
	require.True(t, ok)
	assert.Equal(t, loadedAt, last)
}

func TestCacheClear(t *testing.T) {
	source := newSwapSource(xyzDataset())
	cache := New(source, xyzOptions())
	ctx := context.Background()

	_, err := cache.GetAll(ctx)
	require.NoError(t, err)
	cache.Clear()
	assert.False(t, cache.IsLoaded())

	_, err = cache.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), source.opens.Load())
}

func TestCacheFallsBackToSample(t *testing.T) {
	source := newSwapSource("")
	source.err.Store(fmt.Errorf("%w: missing.csv", ErrSourceNotFound))
	cache := New(source, Options{})
	ctx := context.Background()

	snap, err := cache.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Records, 60)
	assert.Equal(t, SampleSource().String(), snap.Source)
	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, snap.Categories())
	for _, category := range model.DefaultCategories {
		assert.Equal(t, 20, snap.Stats.Categories[category].Count)
	}
}

func TestCacheSourceErrorIsDataLoad(t *testing.T) {
	source := newSwapSource("")
	source.err.Store(errors.New("permission denied"))
	cache := New(source, Options{})

	_, err := cache.GetAll(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrDataLoad)
}

func TestCacheFileSourceMissingUsesSample(t *testing.T) {
	cache := New(FileSource{Path: t.TempDir() + "/absent.csv"}, Options{})

	records, err := cache.GetByCategory(context.Background(), "virginica")
	require.NoError(t, err)
	assert.Len(t, records, 20)
}

func TestCacheConcurrentReadsDuringReload(t *testing.T) {
	source := newSwapSource(xyzDataset())
	cache := New(source, xyzOptions())
	ctx := context.Background()
	_, err := cache.GetAll(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				snap, err := cache.GetAll(ctx)
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, len(snap.Records), snap.Stats.Count)
			}
		}()
	}
	for i := 0; i < 5; i++ {
		_, err := cache.Reload(ctx)
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestCacheKnown(t *testing.T) {
	cache := New(newSwapSource(""), Options{Categories: []string{"Z", "x", " Y ", "X"}})
	assert.Equal(t, []string{"Y", "Z", "x"}, cache.Known())
}

func TestCacheCanonical(t *testing.T) {
	cache := New(newSwapSource(xyzDataset()), xyzOptions())

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{in: "X", want: "X", wantOK: true},
		{in: " y ", want: "Y", wantOK: true},
		{in: "junk"},
	}
	for _, tt := range tests {
		got, ok := cache.Canonical(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.False(t, cache.IsLoaded())
}

func TestCacheGetByCategoryWithSnapshot(t *testing.T) {
	source := newSwapSource(xyzDataset())
	cache := New(source, xyzOptions())
	ctx := context.Background()

	records, snap, err := cache.GetByCategoryWithSnapshot(ctx, "z")
	require.NoError(t, err)
	assert.Len(t, records, 20)

	current, err := cache.GetAll(ctx)
	require.NoError(t, err)
	assert.Same(t, current, snap)

	source.data.Store(header + "5.1,3.5,1.4,0.2,Z\n")
	_, err = cache.Reload(ctx)
	require.NoError(t, err)

	records, next, err := cache.GetByCategoryWithSnapshot(ctx, "Z")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.NotSame(t, snap, next)
	assert.Len(t, snap.Records, 60)
}
