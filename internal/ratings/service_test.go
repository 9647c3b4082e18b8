package ratings_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/al0nec0der/StrIve-sub000/internal/docstore"
	"github.com/al0nec0der/StrIve-sub000/internal/idmap"
	"github.com/al0nec0der/StrIve-sub000/internal/keypool"
	"github.com/al0nec0der/StrIve-sub000/internal/metrics"
	"github.com/al0nec0der/StrIve-sub000/internal/omdb"
	"github.com/al0nec0der/StrIve-sub000/internal/ratingcache"
	"github.com/al0nec0der/StrIve-sub000/internal/ratings"
	"github.com/al0nec0der/StrIve-sub000/internal/tmdb"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakeCatalog struct {
	mu            sync.Mutex
	imdb          map[string]string
	details       map[string]*tmdb.Details
	failIDs       bool
	failDetails   bool
	externalCalls int
	detailCalls   int
}

func (f *fakeCatalog) ExternalIDs(ctx context.Context, catalogID string, _ tmdb.MediaType) (*tmdb.ExternalIDs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.externalCalls++
	if f.failIDs {
		return nil, &tmdb.StatusError{Code: http.StatusServiceUnavailable}
	}
	id, ok := f.imdb[catalogID]
	if !ok {
		return nil, &tmdb.StatusError{Code: http.StatusNotFound}
	}
	return &tmdb.ExternalIDs{IMDbID: id}, nil
}

func (f *fakeCatalog) Details(ctx context.Context, catalogID string, _ tmdb.MediaType) (*tmdb.Details, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.failDetails {
		return nil, &tmdb.StatusError{Code: http.StatusBadGateway}
	}
	d, ok := f.details[catalogID]
	if !ok {
		return nil, &tmdb.StatusError{Code: http.StatusNotFound}
	}
	return d, nil
}

func (f *fakeCatalog) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.externalCalls, f.detailCalls
}

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*omdb.Response
	rejected  map[string]bool
	err       error
	secrets   []string
	hook      func(ctx context.Context)
}

func (f *fakeFetcher) Fetch(ctx context.Context, imdbID, apiKey string) (*omdb.Response, error) {
	f.mu.Lock()
	f.secrets = append(f.secrets, apiKey)
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejected[apiKey] {
		return nil, &omdb.Error{Kind: omdb.ErrUnauthorized, StatusCode: http.StatusUnauthorized, Message: "Invalid API key!"}
	}
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.responses[imdbID]
	if !ok {
		return nil, &omdb.Error{Kind: omdb.ErrProvider, Message: "Incorrect IMDb ID."}
	}
	return resp, nil
}

func (f *fakeFetcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.secrets...)
}

type harness struct {
	svc     *ratings.Service
	catalog *fakeCatalog
	fetcher *fakeFetcher
	pool    *keypool.Pool
	store   *docstore.Memory
	clock   *clock
	metrics *metrics.Recorder
}

const (
	secretOne = "alphakey1"
	secretTwo = "bravokey2"
)

func godfatherPartII() *omdb.Response {
	return &omdb.Response{
		Title:  "The Godfather Part II",
		Year:   "1974",
		Plot:   "The early life and career of Vito Corleone.",
		Awards: "Won 6 Oscars.",
		Ratings: []omdb.Rating{
			{Source: "Internet Movie Database", Value: "9.0/10"},
			{Source: "Rotten Tomatoes", Value: "97%"},
			{Source: "Metacritic", Value: "80/100"},
		},
		IMDbRating: "9.0",
		IMDbVotes:  "1,402,003",
		IMDbID:     "tt0071562",
		Response:   "True",
	}
}

func theGodfather() *omdb.Response {
	return &omdb.Response{
		Title:      "The Godfather",
		Year:       "1972",
		Plot:       "The aging patriarch of an organized crime dynasty transfers control.",
		IMDbRating: "9.2",
		Metascore:  "100",
		IMDbID:     "tt0068646",
		Response:   "True",
	}
}

func newHarness(t *testing.T, secrets []string, quota int, opts ...ratings.Option) *harness {
	t.Helper()
	clk := &clock{now: time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)}
	catalog := &fakeCatalog{
		imdb: map[string]string{"240": "tt0071562", "238": "tt0068646"},
		details: map[string]*tmdb.Details{
			"240": {ID: 240, Title: "The Godfather Part II", ReleaseDate: "1974-12-20", Overview: "Catalog overview.", VoteAverage: 8.571, VoteCount: 12000},
			"238": {ID: 238, Title: "The Godfather", ReleaseDate: "1972-03-14", Overview: "Catalog overview.", VoteAverage: 8.7, VoteCount: 20000},
			"999": {ID: 999, Title: "Obscure Short", ReleaseDate: "2001-01-01", VoteAverage: 6.25, VoteCount: 4},
		},
	}
	fetcher := &fakeFetcher{
		responses: map[string]*omdb.Response{
			"tt0071562": godfatherPartII(),
			"tt0068646": theGodfather(),
		},
		rejected: map[string]bool{},
	}

	creds, err := keypool.Discover(secrets, quota, nil)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	pool, err := keypool.New(creds, keypool.WithClock(clk.Now))
	if err != nil {
		t.Fatalf("keypool.New failed: %v", err)
	}

	noSleep := func(context.Context, time.Duration) error { return nil }
	resolver := idmap.NewResolver(catalog, idmap.NewCache(idmap.CacheOptions{Clock: clk.Now}, nil), nil,
		idmap.WithSleeper(noSleep))
	store := docstore.NewMemory()
	rec := metrics.New(metrics.WithClock(clk.Now))

	opts = append([]ratings.Option{ratings.WithClock(clk.Now)}, opts...)
	svc, err := ratings.New(ratings.Deps{
		Resolver: resolver,
		Pool:     pool,
		Fetcher:  fetcher,
		Cache:    ratingcache.New(store, nil, ratingcache.WithClock(clk.Now)),
		Catalog:  catalog,
		Metrics:  rec,
	}, opts...)
	if err != nil {
		t.Fatalf("ratings.New failed: %v", err)
	}
	return &harness{svc: svc, catalog: catalog, fetcher: fetcher, pool: pool, store: store, clock: clk, metrics: rec}
}

func mustGet(t *testing.T, h *harness, id string) *ratings.Record {
	t.Helper()
	rec, err := h.svc.GetRating(context.Background(), id, tmdb.MediaMovie)
	if err != nil {
		t.Fatalf("GetRating(%s) returned error: %v", id, err)
	}
	return rec
}

func credential(t *testing.T, pool *keypool.Pool, id string) keypool.Credential {
	t.Helper()
	for _, c := range pool.Snapshot() {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("credential %s not found", id)
	return keypool.Credential{}
}

func TestProviderThenCacheWithoutExtraCalls(t *testing.T) {
	h := newHarness(t, []string{secretOne}, 1000)

	first := mustGet(t, h, "240")
	if first.Source != ratings.SourceProvider {
		t.Fatalf("expected provider source, got %s", first.Source)
	}
	if first.ExternalID != "tt0071562" || first.CatalogID != "240" || first.MediaType != tmdb.MediaMovie {
		t.Fatalf("unexpected identity fields: %+v", first)
	}
	if first.PrimaryRating != "9.0/10" || first.SecondaryRating != "97%" || first.TertiaryRating != "80/100" {
		t.Fatalf("unexpected ratings: %+v", first)
	}
	if !first.CachedAt.Equal(h.clock.Now()) {
		t.Fatalf("expected CachedAt stamped with clock, got %v", first.CachedAt)
	}

	second := mustGet(t, h, "240")
	if second.Source != ratings.SourceCache {
		t.Fatalf("expected cache source, got %s", second.Source)
	}
	if second.PrimaryRating != "9.0/10" || second.SecondaryRating != "97%" || second.TertiaryRating != "80/100" {
		t.Fatalf("unexpected cached ratings: %+v", second)
	}

	if calls := h.fetcher.calls(); len(calls) != 1 {
		t.Fatalf("expected exactly one provider call, got %d", len(calls))
	}
	if ext, det := h.catalog.counts(); ext != 1 || det != 0 {
		t.Fatalf("expected one id lookup and no detail calls, got %d/%d", ext, det)
	}
	if usage := credential(t, h.pool, "KEY_1").DailyUsage; usage != 1 {
		t.Fatalf("expected one recorded use, got %d", usage)
	}

	snap := h.svc.MetricsSnapshot()
	if snap.CacheHits != 1 || snap.CacheMisses != 1 || snap.ExternalCalls != 1 || snap.TotalRequests != 2 {
		t.Fatalf("unexpected metrics %+v", snap)
	}
	if snap.CredentialUsage["KEY_1"] != 1 {
		t.Fatalf("expected credential usage recorded, got %v", snap.CredentialUsage)
	}
}

func TestUnauthorizedCredentialSkippedUntilUTCMidnight(t *testing.T) {
	h := newHarness(t, []string{secretOne, secretTwo}, 1000)
	h.fetcher.rejected[secretOne] = true

	rec := mustGet(t, h, "240")
	if rec.Source != ratings.SourceProvider {
		t.Fatalf("expected rotation to the second credential, got %s", rec.Source)
	}
	if calls := h.fetcher.calls(); len(calls) != 2 || calls[0] != secretOne || calls[1] != secretTwo {
		t.Fatalf("unexpected call order %v", calls)
	}
	key1 := credential(t, h.pool, "KEY_1")
	wantUntil := time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)
	if !key1.DeactivatedUntil.Equal(wantUntil) || key1.DailyUsage != 0 {
		t.Fatalf("expected KEY_1 deactivated until %v without usage, got %+v", wantUntil, key1)
	}

	mustGet(t, h, "238")
	calls := h.fetcher.calls()
	if len(calls) != 3 || calls[2] != secretTwo {
		t.Fatalf("expected KEY_1 to be skipped before midnight, got %v", calls)
	}

	h.fetcher.mu.Lock()
	h.fetcher.rejected[secretOne] = false
	h.fetcher.mu.Unlock()
	h.clock.Set(wantUntil)
	h.fetcher.mu.Lock()
	h.fetcher.responses["tt0000001"] = theGodfather()
	h.fetcher.mu.Unlock()
	h.catalog.mu.Lock()
	h.catalog.imdb["101"] = "tt0000001"
	h.catalog.mu.Unlock()

	mustGet(t, h, "101")
	calls = h.fetcher.calls()
	if calls[len(calls)-1] != secretOne {
		t.Fatalf("expected KEY_1 back in rotation at midnight, got %v", calls)
	}
	if usage := credential(t, h.pool, "KEY_1").DailyUsage; usage != 1 {
		t.Fatalf("expected KEY_1 usage after reactivation, got %d", usage)
	}
}

func TestFallbackWhenProviderUnreachable(t *testing.T) {
	h := newHarness(t, []string{secretOne, secretTwo}, 1000)
	h.fetcher.err = &omdb.Error{Kind: omdb.ErrTransport, Message: "connection refused"}

	rec := mustGet(t, h, "240")
	if rec.Source != ratings.SourceFallback {
		t.Fatalf("expected fallback source, got %s", rec.Source)
	}
	if rec.PrimaryRating != "8.6/10" || rec.VoteCount != 12000 {
		t.Fatalf("expected catalog rating, got %+v", rec)
	}
	if rec.SecondaryRating != ratings.Unavailable || rec.TertiaryRating != ratings.Unavailable {
		t.Fatalf("expected unavailable secondary ratings, got %+v", rec)
	}
	if rec.Title != "The Godfather Part II" || rec.Year != "1974" || rec.Plot != "Catalog overview." {
		t.Fatalf("unexpected fallback metadata %+v", rec)
	}
	if calls := h.fetcher.calls(); len(calls) != 2 {
		t.Fatalf("expected every credential tried once, got %v", calls)
	}
	for _, c := range h.pool.Snapshot() {
		if c.DailyUsage != 0 || c.Failures != 1 {
			t.Fatalf("failed fetch must not count as usage: %+v", c)
		}
	}
	if h.store.Len(ratingcache.Collection) != 0 {
		t.Fatal("fallback records must not be cached")
	}
	if snap := h.svc.MetricsSnapshot(); snap.Fallbacks != 1 || snap.Errors != 0 {
		t.Fatalf("unexpected metrics %+v", snap)
	}
}

func TestErrorRecordWhenEverySourceFails(t *testing.T) {
	h := newHarness(t, []string{secretOne}, 1000)
	h.catalog.failIDs = true
	h.catalog.failDetails = true

	rec, err := h.svc.GetRating(context.Background(), "240", tmdb.MediaMovie)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Source != ratings.SourceError {
		t.Fatalf("expected error source, got %s", rec.Source)
	}
	for _, v := range []string{rec.PrimaryRating, rec.SecondaryRating, rec.TertiaryRating, rec.Title} {
		if v != ratings.Unavailable {
			t.Fatalf("expected unavailable fields, got %+v", rec)
		}
	}
	if ext, _ := h.catalog.counts(); ext != idmap.DefaultAttempts {
		t.Fatalf("expected %d resolution attempts, got %d", idmap.DefaultAttempts, ext)
	}
	if len(h.fetcher.calls()) != 0 {
		t.Fatal("provider must not be called without an external id")
	}
	if snap := h.svc.MetricsSnapshot(); snap.Errors != 1 {
		t.Fatalf("expected error counted, got %+v", snap)
	}
}

func TestTitleWithoutExternalIDUsesFallbackAndCachesNegative(t *testing.T) {
	h := newHarness(t, []string{secretOne}, 1000)

	for range 2 {
		rec := mustGet(t, h, "999")
		if rec.Source != ratings.SourceFallback || rec.PrimaryRating != "6.3/10" {
			t.Fatalf("unexpected record %+v", rec)
		}
	}
	if ext, det := h.catalog.counts(); ext != 1 || det != 2 {
		t.Fatalf("expected negative mapping cached, got %d id lookups / %d details", ext, det)
	}
}

func TestInvalidRequests(t *testing.T) {
	h := newHarness(t, []string{secretOne}, 1000)
	cases := []struct {
		id string
		mt tmdb.MediaType
	}{
		{"", tmdb.MediaMovie},
		{"  ", tmdb.MediaSeries},
		{"tt0071562", tmdb.MediaMovie},
		{"0", tmdb.MediaMovie},
		{"-5", tmdb.MediaMovie},
		{"240", tmdb.MediaType("anime")},
	}
	for _, tc := range cases {
		rec, err := h.svc.GetRating(context.Background(), tc.id, tc.mt)
		if !errors.Is(err, ratings.ErrInvalidRequest) || rec != nil {
			t.Fatalf("GetRating(%q, %q) = %v, %v; want ErrInvalidRequest", tc.id, tc.mt, rec, err)
		}
	}
	if ext, _ := h.catalog.counts(); ext != 0 {
		t.Fatal("invalid requests must not reach collaborators")
	}
}

func TestCachedRatingExpiresAtExactly24Hours(t *testing.T) {
	h := newHarness(t, []string{secretOne}, 1000)
	start := h.clock.Now()

	mustGet(t, h, "240")
	h.clock.Set(start.Add(24*time.Hour - time.Second))
	if rec := mustGet(t, h, "240"); rec.Source != ratings.SourceCache {
		t.Fatalf("expected cache hit before 24h, got %s", rec.Source)
	}
	h.clock.Set(start.Add(24 * time.Hour))
	if rec := mustGet(t, h, "240"); rec.Source != ratings.SourceProvider {
		t.Fatalf("expected refetch at 24h, got %s", rec.Source)
	}
	if calls := h.fetcher.calls(); len(calls) != 2 {
		t.Fatalf("expected two provider calls, got %d", len(calls))
	}
}

func TestExhaustedPoolFallsBack(t *testing.T) {
	h := newHarness(t, []string{secretOne}, 1)

	if rec := mustGet(t, h, "240"); rec.Source != ratings.SourceProvider {
		t.Fatalf("expected provider source, got %s", rec.Source)
	}
	if rec := mustGet(t, h, "238"); rec.Source != ratings.SourceFallback {
		t.Fatalf("expected fallback once quota is spent, got %s", rec.Source)
	}
	key := credential(t, h.pool, "KEY_1")
	if key.DailyUsage != 1 || !key.QuotaExceeded || key.Active {
		t.Fatalf("unexpected credential state %+v", key)
	}
	if len(h.fetcher.calls()) != 1 {
		t.Fatal("exhausted pool must not reach the provider")
	}

	h.pool.ResetDaily()
	if rec := mustGet(t, h, "238"); rec.Source != ratings.SourceProvider {
		t.Fatalf("expected provider after daily reset, got %s", rec.Source)
	}
}

func TestCancelledRequestIsNotRecordedAsSuccess(t *testing.T) {
	h := newHarness(t, []string{secretOne, secretTwo}, 1000, ratings.WithCoalescing(false))
	ctx, cancel := context.WithCancel(context.Background())
	h.fetcher.hook = func(context.Context) { cancel() }

	rec, err := h.svc.GetRating(ctx, "240", tmdb.MediaMovie)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Source != ratings.SourceError {
		t.Fatalf("expected error source after cancellation, got %s", rec.Source)
	}
	if calls := h.fetcher.calls(); len(calls) != 1 {
		t.Fatalf("expected fetch loop to stop, got %v", calls)
	}
	for _, c := range h.pool.Snapshot() {
		if c.DailyUsage != 0 {
			t.Fatalf("cancelled fetch recorded as success: %+v", c)
		}
	}
	if _, details := h.catalog.counts(); details != 0 {
		t.Fatalf("expected no catalog fallback after cancellation, got %d calls", details)
	}
	if snap := h.metrics.Snapshot(); snap.Errors != 0 || snap.Fallbacks != 0 {
		t.Fatalf("cancellation must not count as a failure: %+v", snap)
	}
}

func TestCancelledSoleCallerStopsSharedRun(t *testing.T) {
	h := newHarness(t, []string{secretOne, secretTwo}, 1000)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	h.fetcher.hook = func(fetchCtx context.Context) {
		cancel()
		select {
		case <-fetchCtx.Done():
			close(stopped)
		case <-time.After(5 * time.Second):
		}
	}

	rec, err := h.svc.GetRating(ctx, "240", tmdb.MediaMovie)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Source != ratings.SourceError {
		t.Fatalf("expected error source for abandoned lookup, got %s", rec.Source)
	}
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("shared run was not cancelled after its only caller left")
	}
	for _, c := range h.pool.Snapshot() {
		if c.DailyUsage != 0 {
			t.Fatalf("cancelled fetch recorded as success: %+v", c)
		}
	}
}

func TestCancelledCallerDoesNotFailOthersWaiting(t *testing.T) {
	h := newHarness(t, []string{secretOne}, 1000)
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	h.fetcher.hook = func(ctx context.Context) {
		select {
		case arrived <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan *ratings.Record, 1)
	go func() {
		rec, _ := h.svc.GetRating(firstCtx, "240", tmdb.MediaMovie)
		firstDone <- rec
	}()
	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("first lookup never reached the provider")
	}

	secondDone := make(chan *ratings.Record, 1)
	go func() {
		rec, _ := h.svc.GetRating(context.Background(), "240", tmdb.MediaMovie)
		secondDone <- rec
	}()
	// Give the second caller time to join the in-flight lookup.
	time.Sleep(50 * time.Millisecond)
	cancelFirst()

	select {
	case rec := <-firstDone:
		if rec.Source != ratings.SourceError {
			t.Fatalf("expected abandoned first caller to get an error record, got %s", rec.Source)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}
	close(release)

	var second *ratings.Record
	select {
	case second = <-secondDone:
	case <-time.After(5 * time.Second):
		t.Fatal("waiting caller did not return")
	}
	if second.Source != ratings.SourceProvider || second.PrimaryRating != "9.0/10" {
		t.Fatalf("expected provider record for live caller, got %+v", second)
	}
	if calls := h.fetcher.calls(); len(calls) != 1 {
		t.Fatalf("expected one shared provider call, got %d", len(calls))
	}
	if got := credential(t, h.pool, "KEY_1").DailyUsage; got != 1 {
		t.Fatalf("expected the shared fetch to count once, got %d", got)
	}
	if snap := h.metrics.Snapshot(); snap.Errors != 0 {
		t.Fatalf("expected no errors recorded, got %d", snap.Errors)
	}
}

func TestCacheWriteFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, []string{secretOne}, 1000)
	_ = h.store.Close()

	rec := mustGet(t, h, "240")
	if rec.Source != ratings.SourceProvider || rec.PrimaryRating != "9.0/10" {
		t.Fatalf("expected provider record despite cache failure, got %+v", rec)
	}
}

func TestProviderWithoutPrimaryRatingUsesCatalogScore(t *testing.T) {
	h := newHarness(t, []string{secretOne}, 1000)
	h.fetcher.responses["tt0071562"] = &omdb.Response{Title: "The Godfather Part II", IMDbRating: "N/A", Plot: "N/A", Response: "True"}

	rec := mustGet(t, h, "240")
	if rec.Source != ratings.SourceProvider {
		t.Fatalf("expected provider source, got %s", rec.Source)
	}
	if rec.PrimaryRating != "8.6/10" || rec.Plot != "Catalog overview." {
		t.Fatalf("expected catalog supplement, got %+v", rec)
	}
}

func TestGetRatingsBatch(t *testing.T) {
	h := newHarness(t, []string{secretOne, secretTwo}, 1000, ratings.WithBatchConcurrency(2))

	out := h.svc.GetRatingsBatch(context.Background(), []string{"240", "238", "bad", "240", "999"}, tmdb.MediaMovie)
	if len(out) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(out))
	}
	if out["240"].Source != ratings.SourceProvider || out["238"].Source != ratings.SourceProvider {
		t.Fatalf("unexpected sources %s/%s", out["240"].Source, out["238"].Source)
	}
	if out["bad"].Source != ratings.SourceError || out["bad"].PrimaryRating != ratings.Unavailable {
		t.Fatalf("expected error record for invalid id, got %+v", out["bad"])
	}
	if out["999"].Source != ratings.SourceFallback {
		t.Fatalf("expected fallback for unmapped title, got %s", out["999"].Source)
	}
}

func TestConcurrentIdenticalLookupsShareOneFetch(t *testing.T) {
	h := newHarness(t, []string{secretOne}, 1000)
	release := make(chan struct{})
	h.fetcher.hook = func(ctx context.Context) {
		select {
		case <-release:
		case <-ctx.Done():
		}
	}

	var wg sync.WaitGroup
	results := make([]*ratings.Record, 5)
	for i := range results {
		wg.Go(func() {
			rec, err := h.svc.GetRating(context.Background(), "240", tmdb.MediaMovie)
			if err != nil {
				t.Errorf("GetRating returned error: %v", err)
			}
			results[i] = rec
		})
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls := h.fetcher.calls(); len(calls) != 1 {
		t.Fatalf("expected one provider call, got %d", len(calls))
	}
	for i, rec := range results {
		if rec == nil || rec.PrimaryRating != "9.0/10" {
			t.Fatalf("result %d unexpected: %+v", i, rec)
		}
	}
	results[0].Title = "mutated"
	if results[1].Title == "mutated" {
		t.Fatal("coalesced callers must receive independent records")
	}
}

func TestCoalescingDisabledRunsIndependently(t *testing.T) {
	h := newHarness(t, []string{secretOne}, 1000, ratings.WithCoalescing(false))
	const callers = 3
	arrived := make(chan struct{}, callers)
	release := make(chan struct{})
	h.fetcher.hook = func(ctx context.Context) {
		arrived <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
	}

	var wg sync.WaitGroup
	for range callers {
		wg.Go(func() {
			if _, err := h.svc.GetRating(context.Background(), "240", tmdb.MediaMovie); err != nil {
				t.Errorf("GetRating returned error: %v", err)
			}
		})
	}
	timeout := time.After(5 * time.Second)
	for range callers {
		select {
		case <-arrived:
		case <-timeout:
			close(release)
			t.Fatal("expected independent provider calls")
		}
	}
	close(release)
	wg.Wait()

	if calls := h.fetcher.calls(); len(calls) != callers {
		t.Fatalf("expected %d provider calls, got %d", callers, len(calls))
	}
}
