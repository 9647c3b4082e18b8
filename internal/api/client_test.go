package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/al0nec0der/StrIve-sub000/internal/api"
)

func TestClientSendsTokenAndDecodes(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(api.RatingResponse{Rating: api.Rating{CatalogID: "240", PrimaryRating: "9.0/10"}})
	}))
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL, "secret")
	resp, err := client.Rating(context.Background(), "movie", "240")
	if err != nil {
		t.Fatalf("Rating: %v", err)
	}
	if resp.Rating.PrimaryRating != "9.0/10" {
		t.Fatalf("unexpected rating %+v", resp.Rating)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotPath != "/api/ratings/movie/240" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestClientBatchBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req api.BatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		out := api.BatchResponse{Ratings: map[string]api.Rating{}}
		for _, id := range req.IDs {
			out.Ratings[id] = api.Rating{CatalogID: id}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)

	resp, err := api.NewClient(srv.URL, "").Batch(context.Background(), "series", []string{"1", "2"})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(resp.Ratings) != 2 || resp.Ratings["2"].CatalogID != "2" {
		t.Fatalf("unexpected batch %+v", resp)
	}
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"catalog id is empty"}`))
	}))
	t.Cleanup(srv.Close)

	_, err := api.NewClient(srv.URL, "").Diagnostics(context.Background())
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusBadRequest || statusErr.Message != "catalog id is empty" {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
}

func TestClientDaemonUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()

	_, err := api.NewClient(addr, "").Health(context.Background())
	if !errors.Is(err, api.ErrDaemonUnavailable) {
		t.Fatalf("expected ErrDaemonUnavailable, got %v", err)
	}
}
