package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestNewR2ClientRequiresConfig(t *testing.T) {
	_, err := NewR2Client(context.Background(), R2Config{BucketName: "routes"})
	if !errors.Is(err, ErrIncompleteConfig) {
		t.Fatalf("expected ErrIncompleteConfig, got %v", err)
	}
}

func TestPutObject(t *testing.T) {
	var mu sync.Mutex
	var gotPath, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewR2Client(context.Background(), R2Config{
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "routes",
		PublicURL:       "https://cdn.example.com/",
		Endpoint:        srv.URL,
	})
	if err != nil {
		t.Fatalf("NewR2Client() error = %v", err)
	}

	url, err := client.PutObject(context.Background(), "/archive/order.geojson", []byte(`{"type":"FeatureCollection"}`), "application/geo+json")
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}

	if url != "https://cdn.example.com/archive/order.geojson" {
		t.Errorf("unexpected url %q", url)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/routes/archive/order.geojson" {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if gotType != "application/geo+json" {
		t.Errorf("unexpected content type %q", gotType)
	}
	if gotBody == "" {
		t.Error("expected a request body")
	}
}

func TestURLWithoutPublicBase(t *testing.T) {
	r := &R2Client{}
	if got := r.URL("a/b"); got != "" {
		t.Errorf("expected empty url, got %q", got)
	}
}
