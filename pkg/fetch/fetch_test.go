package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-enhance/pkg/fetch"
)

func TestFetcherReturnsContentAndHints(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Disposition", `attachment; filename=provider.yaml`)
		w.Header().Set("Profile-Update-Interval", "24")
		w.Header().Set("Subscription-Userinfo", "upload=1024; download=2048; total=1073741824; expire=1735689600")
		_, _ = w.Write([]byte("port: 7890\nmode: rule\n"))
	}))
	defer server.Close()

	result, err := fetch.New().Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(result.Data) != "port: 7890\nmode: rule\n" {
		t.Fatalf("unexpected data %q", result.Data)
	}
	if result.Filename != "provider.yaml" {
		t.Fatalf("expected filename hint, got %q", result.Filename)
	}
	if result.IntervalMinutes != 24*60 {
		t.Fatalf("expected 1440 minutes, got %d", result.IntervalMinutes)
	}
	if result.Subscription == nil {
		t.Fatal("expected subscription info")
	}
	if result.Subscription.Download != 2048 || result.Subscription.Total != 1073741824 {
		t.Fatalf("unexpected subscription info %+v", result.Subscription)
	}
	if gotAgent != fetch.DefaultUserAgent {
		t.Fatalf("expected default user agent, got %q", gotAgent)
	}
}

func TestFetcherCustomUserAgent(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("port: 7890\n"))
	}))
	defer server.Close()

	fetcher := fetch.New(fetch.WithUserAgent("clash-meta/1.0"))
	if _, err := fetcher.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAgent != "clash-meta/1.0" {
		t.Fatalf("expected custom user agent, got %q", gotAgent)
	}
}

func TestFetcherStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := fetch.New().Fetch(context.Background(), server.URL)
	var fetchErr *fetch.Error
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected fetch.Error, got %v", err)
	}
	if fetchErr.Status != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", fetchErr.Status)
	}
	if fetchErr.URL != server.URL {
		t.Fatalf("expected url %q, got %q", server.URL, fetchErr.URL)
	}
}

func TestFetcherNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	_, err := fetch.New().Fetch(context.Background(), server.URL)
	var fetchErr *fetch.Error
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected fetch.Error, got %v", err)
	}
	if fetchErr.Status != 0 || fetchErr.Err == nil {
		t.Fatalf("expected wrapped network error, got %+v", fetchErr)
	}
}

func TestFetcherEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("  \n"))
	}))
	defer server.Close()

	_, err := fetch.New().Fetch(context.Background(), server.URL)
	var fetchErr *fetch.Error
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected fetch.Error, got %v", err)
	}
}

func TestFetcherIgnoresMalformedHints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Profile-Update-Interval", "daily")
		w.Header().Set("Subscription-Userinfo", "not structured at all")
		_, _ = w.Write([]byte("port: 7890\n"))
	}))
	defer server.Close()

	result, err := fetch.New().Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IntervalMinutes != 0 {
		t.Fatalf("expected no interval hint, got %d", result.IntervalMinutes)
	}
	if result.Subscription != nil {
		t.Fatalf("expected no subscription info, got %+v", result.Subscription)
	}
}

func TestFetcherContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetch.New().Fetch(ctx, server.URL)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
