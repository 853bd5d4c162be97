package ranking_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	analyticsfake "github.com/caionorder/redirectd/internal/analytics/fake"
	"github.com/caionorder/redirectd/internal/errcoll"
	linkstorefake "github.com/caionorder/redirectd/internal/linkstore/fake"
	"github.com/caionorder/redirectd/internal/ranking"
	"github.com/caionorder/redirectd/internal/redircache/fake"
	"github.com/caionorder/redirectd/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caionorder/redirectd/internal/analytics"
)

func newTestStore(t *testing.T, rows []analytics.Row) (s *ranking.Store, cache *fake.Client, links *linkstorefake.Store) {
	t.Helper()

	cache = fake.New()
	links = linkstorefake.New()

	s = ranking.New(&ranking.Config{
		Logger:    slogutil.NewDiscardLogger(),
		Analytics: &analyticsfake.Repository{Rows: rows},
		Cache:     cache,
		Links:     links,
		ErrColl:   errcoll.NewWriterCollector(nopWriter{}, slogutil.NewDiscardLogger()),
		Registry:  registry.Default(),
	})

	return s, cache, links
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (n int, err error) { return len(p), nil }

func TestStore_Refresh(t *testing.T) {
	rows := []analytics.Row{
		{Domain: "appnews4u.com", CustomValue: "1", ECPM: 5},
		{Domain: "appgames4u.com", CustomValue: "2", ECPM: 10},
		{Domain: "appgames4u.com", CustomValue: "3", ECPM: 2},
	}

	s, cache, links := newTestStore(t, rows)

	err := s.Refresh(context.Background())
	require.NoError(t, err)

	best := s.BestLinkMap()
	require.Len(t, best, 2)
	assert.Equal(t, "2", best["appgames4u.com"].PostID)
	assert.Equal(t, "https://appgames4u.com/?p=2", best["appgames4u.com"].URL)

	sorted := s.SortedDomains()
	require.Len(t, sorted, 2)
	assert.Equal(t, "appgames4u.com", sorted[0].Domain)
	assert.Equal(t, "appnews4u.com", sorted[1].Domain)

	var published map[string]ranking.BestLinkEntry
	val, ok, err := cache.Get(context.Background(), ranking.BestLinksMapKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(val, &published))
	assert.Len(t, published, 2)

	active := links.Active()
	assert.Len(t, active, 2)
}

func TestStore_Refresh_emptyAnalytics_keepsPrevious(t *testing.T) {
	s, _, _ := newTestStore(t, nil)

	require.NoError(t, s.Refresh(context.Background()))
	assert.Empty(t, s.BestLinkMap())
}

func TestStore_Refresh_ignoresRowsMissingDomainOrPost(t *testing.T) {
	s, _, _ := newTestStore(t, []analytics.Row{
		{Domain: "", CustomValue: "1", ECPM: 99},
		{Domain: "appnews4u.com", CustomValue: "", ECPM: 99},
		{Domain: "appnews4u.com", CustomValue: "1", ECPM: 5},
	})

	require.NoError(t, s.Refresh(context.Background()))

	best := s.BestLinkMap()
	require.Len(t, best, 1)
	assert.Equal(t, 5.0, best["appnews4u.com"].ECPM)
}
