package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// CatalogTitle is one title served by the fake TMDB server.
type CatalogTitle struct {
	IMDbID      string
	Title       string
	ReleaseDate string
	Overview    string
	VoteAverage float64
	VoteCount   int64
}

// FakeTMDB is an httptest server answering external_ids and details
// requests for movie and tv titles.
type FakeTMDB struct {
	*httptest.Server
	Calls atomic.Int64
}

// NewFakeTMDB serves titles keyed by catalog id. Unknown ids return 404.
func NewFakeTMDB(t testing.TB, titles map[string]CatalogTitle) *FakeTMDB {
	t.Helper()
	fake := &FakeTMDB{}
	fake.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fake.Calls.Add(1)
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 2 || (parts[0] != "movie" && parts[0] != "tv") {
			http.NotFound(w, r)
			return
		}
		title, ok := titles[parts[1]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status_code":34,"status_message":"The resource you requested could not be found."}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if len(parts) == 3 && parts[2] == "external_ids" {
			_ = json.NewEncoder(w).Encode(map[string]any{"imdb_id": title.IMDbID})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"title":        title.Title,
			"release_date": title.ReleaseDate,
			"overview":     title.Overview,
			"vote_average": title.VoteAverage,
			"vote_count":   title.VoteCount,
			"imdb_id":      title.IMDbID,
		})
	}))
	t.Cleanup(fake.Close)
	return fake
}

// FakeOMDb is an httptest server answering OMDb title lookups.
type FakeOMDb struct {
	*httptest.Server
	Calls atomic.Int64
}

// NewFakeOMDb serves raw JSON payloads keyed by IMDb id. Keys listed in
// rejected receive the provider's invalid-key answer.
func NewFakeOMDb(t testing.TB, payloads map[string]string, rejected ...string) *FakeOMDb {
	t.Helper()
	bad := make(map[string]struct{}, len(rejected))
	for _, k := range rejected {
		bad[k] = struct{}{}
	}
	fake := &FakeOMDb{}
	fake.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fake.Calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if _, ok := bad[r.URL.Query().Get("apikey")]; ok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"Response":"False","Error":"Invalid API key!"}`))
			return
		}
		payload, ok := payloads[r.URL.Query().Get("i")]
		if !ok {
			_, _ = w.Write([]byte(`{"Response":"False","Error":"Incorrect IMDb ID."}`))
			return
		}
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(fake.Close)
	return fake
}

// GodfatherPartIIPayload is an OMDb answer for tt0071562.
const GodfatherPartIIPayload = `{"Title":"The Godfather Part II","Year":"1974","Plot":"The early life and career of Vito Corleone.","Awards":"Won 6 Oscars.","Ratings":[{"Source":"Internet Movie Database","Value":"9.0/10"},{"Source":"Rotten Tomatoes","Value":"97%"},{"Source":"Metacritic","Value":"80/100"}],"Metascore":"80","imdbRating":"9.0","imdbVotes":"1,402,003","imdbID":"tt0071562","Type":"movie","Response":"True"}`
