package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI2HU/compscout/internal/cache"
)

const organicJSON = `{
  "search_metadata": {"status": "Success"},
  "organic_results": [
    {"position": 1, "title": "Bean There Coffee", "link": "https://www.beanthere.com/menu",
     "snippet": "Lattes from $4.50",
     "rich_snippet": {"top": {"detected_extensions": {"rating": 4.6, "reviews": 212}}}},
    {"position": 2, "title": "Best coffee in Springfield - Yelp", "link": "https://www.yelp.com/search?q=coffee",
     "snippet": "Top 10 coffee shops"},
    {"position": 3, "title": "Our shop", "link": "https://shop.a.com/coffee", "snippet": "self"},
    {"position": 4, "title": "Bean There locations", "link": "https://beanthere.com/locations",
     "snippet": "Find a store"},
    {"position": 5, "title": "Roast Co", "link": "https://roastco.com",
     "snippet": "Bags of beans",
     "rich_snippet": {"bottom": {"extensions": ["In stock", "€12,90"]}}}
  ],
  "local_results": {"places": [
    {"position": 1, "title": "Corner Cafe", "rating": 4.2, "reviews": 80, "price": "$$",
     "type": "Coffee shop", "links": {"website": "https://cornercafe.com/"}}
  ]}
}`

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *sleepRecorder) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	rec := &sleepRecorder{}
	cfg := Config{
		BaseURL:           server.URL + "/search.json",
		APIKey:            "test-key",
		RequestsPerSecond: 1000,
		Burst:             100,
		MaxRetries:        2,
		BaseDelay:         time.Second,
		CacheTTL:          time.Hour,
	}
	opts = append([]Option{WithSleep(rec.sleep)}, opts...)
	return New(cfg, opts...), rec
}

func TestSearchOrganic(t *testing.T) {
	var params url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		params = r.URL.Query()
		_, _ = w.Write([]byte(organicJSON))
	})

	resp, err := client.Search(context.Background(), Query{Text: "coffee roasters", Location: "Springfield"})
	require.NoError(t, err)

	assert.Equal(t, "google", params.Get("engine"))
	assert.Equal(t, "coffee roasters", params.Get("q"))
	assert.Equal(t, "Springfield", params.Get("location"))
	assert.Equal(t, "test-key", params.Get("api_key"))
	assert.Equal(t, "10", params.Get("num"))
	assert.Empty(t, params.Get("tbm"))

	require.Len(t, resp.Results, 6)
	first := resp.Results[0]
	require.NotNil(t, first.Rating)
	assert.InDelta(t, 4.6, *first.Rating, 0.001)
	require.NotNil(t, first.Reviews)
	assert.Equal(t, 212, *first.Reviews)

	roast := resp.Results[4]
	require.NotNil(t, roast.Price)
	assert.InDelta(t, 12.90, *roast.Price, 0.001)
	assert.Equal(t, "€", roast.Currency)

	local := resp.Results[5]
	assert.Equal(t, TypeLocal, local.Source)
	assert.Equal(t, "https://cornercafe.com/", local.Link)
	assert.Equal(t, "$$", local.PriceRange)
}

func TestSearchVerticals(t *testing.T) {
	tests := []struct {
		typ    Type
		engine string
		tbm    string
	}{
		{TypeMaps, "google_maps", ""},
		{TypeShopping, "google", "shop"},
		{TypeLocal, "google", "lcl"},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			var params url.Values
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				params = r.URL.Query()
				_, _ = w.Write([]byte(`{"organic_results": []}`))
			})

			_, err := client.Search(context.Background(), Query{Type: tt.typ, Text: "hotel"})
			require.NoError(t, err)
			assert.Equal(t, tt.engine, params.Get("engine"))
			assert.Equal(t, tt.tbm, params.Get("tbm"))
		})
	}
}

func TestSearchMapsAndShoppingParsing(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("engine") {
		case "google_maps":
			_, _ = w.Write([]byte(`{"local_results": [
				{"position": 1, "title": "Grand Hotel", "rating": 4.4, "reviews": 1200,
				 "price": "$$$", "website": "https://grandhotel.com", "address": "1 Plaza"}]}`))
		default:
			_, _ = w.Write([]byte(`{"shopping_results": [
				{"position": 1, "title": "House Blend 1kg", "link": "https://roastco.com/house",
				 "source": "Roast Co", "price": "$24.99", "extracted_price": 24.99}]}`))
		}
	})

	maps, err := client.Search(context.Background(), Query{Type: TypeMaps, Text: "hotel"})
	require.NoError(t, err)
	require.Len(t, maps.Results, 1)
	assert.Equal(t, TypeMaps, maps.Results[0].Source)
	assert.Equal(t, "1 Plaza", maps.Results[0].Address)
	assert.Equal(t, "$$$", maps.Results[0].PriceRange)

	shop, err := client.Search(context.Background(), Query{Type: TypeShopping, Text: "coffee beans"})
	require.NoError(t, err)
	require.Len(t, shop.Results, 1)
	require.NotNil(t, shop.Results[0].Price)
	assert.InDelta(t, 24.99, *shop.Results[0].Price, 0.001)
	assert.Equal(t, "$", shop.Results[0].Currency)
	assert.Equal(t, "$24.99", shop.Results[0].PriceText)
}

func TestFindCandidates(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(organicJSON))
	})

	got, err := client.FindCandidates(context.Background(), Query{Text: "coffee"}, []string{"a.com"})
	require.NoError(t, err)

	var domains []string
	for _, c := range got.Competitors {
		domains = append(domains, c.Domain)
	}
	assert.Equal(t, []string{"beanthere.com", "roastco.com", "cornercafe.com"}, domains)
	assert.Equal(t, []string{"yelp.com"}, got.ListingPlatforms)

	bean := got.Competitors[0]
	assert.Equal(t, "https://www.beanthere.com/menu", bean.Link)
	assert.Equal(t, "organic", bean.Source)
	require.NotNil(t, bean.ReviewCount)
	assert.Equal(t, 212, *bean.ReviewCount)
	assert.Equal(t, "$$", got.Competitors[2].PriceRange)
}

func TestSearchRetriesServerErrors(t *testing.T) {
	var hits int32
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"organic_results": [{"position": 1, "title": "x", "link": "https://x.org"}]}`))
	})

	resp, err := client.Search(context.Background(), Query{Text: "retry"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, []time.Duration{time.Second}, rec.delays)
}

func TestSearchRateLimitedExhaustsRetries(t *testing.T) {
	var hits int32
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Search(context.Background(), Query{Text: "busy"})
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestSearchClientErrorIsNotRetried(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "Invalid API key."}`))
	})

	_, err := client.Search(context.Background(), Query{Text: "x"})
	require.ErrorIs(t, err, ErrSearchFailed)
	assert.Contains(t, err.Error(), "Invalid API key.")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSearchNoResultsIsEmpty(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": "Google hasn't returned any results for this query."}`))
	})

	resp, err := client.Search(context.Background(), Query{Text: "zzzz"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearchUsesCache(t *testing.T) {
	store := cache.NewMemoryCache(time.Minute)
	defer store.Close()

	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(organicJSON))
	}, WithCache(store))

	for i := 0; i < 3; i++ {
		resp, err := client.Search(context.Background(), Query{Text: "Coffee"})
		require.NoError(t, err)
		assert.Len(t, resp.Results, 6)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSearchRequiresAPIKey(t *testing.T) {
	client := New(Config{})
	_, err := client.Search(context.Background(), Query{Text: "x"})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestPriceSignals(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"organic_results": [
			{"title": "Roast Co pricing", "link": "https://roastco.com/pricing",
			 "snippet": "Subscriptions start at $18.00 a month, gift boxes 45 EUR."},
			{"title": "About us", "link": "https://roastco.com/about", "snippet": "Since 2001"},
			{"title": "Beans", "link": "https://roastco.com/beans",
			 "rich_snippet": {"top": {"detected_extensions": {"price": 12.5, "currency": "USD"}}}}
		]}`))
	})

	signals, err := client.PriceSignals(context.Background(), "roastco.com pricing")
	require.NoError(t, err)
	require.Len(t, signals, 3)

	assert.InDelta(t, 18.00, signals[0].Price, 0.001)
	assert.Equal(t, "$", signals[0].Currency)
	assert.InDelta(t, 45, signals[1].Price, 0.001)
	assert.Equal(t, "€", signals[1].Currency)
	assert.InDelta(t, 12.5, signals[2].Price, 0.001)
	assert.Equal(t, "$", signals[2].Currency)
}

func TestIsListingPlatform(t *testing.T) {
	assert.True(t, IsListingPlatform("www.tripadvisor.co.uk"))
	assert.True(t, IsListingPlatform("https://m.yelp.com/biz/x"))
	assert.True(t, IsListingPlatform("booking.com"))
	assert.True(t, IsListingPlatform("x.com"))
	assert.False(t, IsListingPlatform("grandhotels.com"))
	assert.False(t, IsListingPlatform("roastco.com"))
}

func TestParseType(t *testing.T) {
	assert.Equal(t, TypeMaps, ParseType(" Maps "))
	assert.Equal(t, TypeShopping, ParseType("shopping"))
	assert.Equal(t, TypeOrganic, ParseType("web"))
}
