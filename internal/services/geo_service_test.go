package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCountrySkipsNonPublicAddresses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("Resolver called for non-public address: %s", r.URL.Path)
	}))
	defer server.Close()

	geo := NewGeoService(server.URL)

	cases := []string{
		"127.0.0.1",
		"10.1.2.3",
		"192.168.1.10",
		"0.0.0.0",
		"::1",
		"fe80::1",
		"not-an-ip",
		"",
	}

	for _, ip := range cases {
		if got := geo.Country(context.Background(), ip); got != CountryUnknown {
			t.Errorf("Country(%q) = %q, want %q", ip, got, CountryUnknown)
		}
	}
}

func TestCountryLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","country":"Germany"}`))
	}))
	defer server.Close()

	geo := NewGeoService(server.URL)

	if got := geo.Country(context.Background(), "8.8.8.8"); got != "Germany" {
		t.Errorf("Country = %q, want Germany", got)
	}
}

func TestCountryCachesResults(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"status":"success","country":"France"}`))
	}))

	geo := NewGeoService(server.URL)

	if got := geo.Country(context.Background(), "9.9.9.9"); got != "France" {
		t.Fatalf("first lookup = %q", got)
	}

	// A dead resolver must not matter once the result is cached.
	server.Close()

	if got := geo.Country(context.Background(), "9.9.9.9"); got != "France" {
		t.Errorf("cached lookup = %q, want France", got)
	}
	if calls != 1 {
		t.Errorf("Expected 1 resolver call, got %d", calls)
	}
}

func TestCountryLookupFailureDegradesToUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	geo := NewGeoService(server.URL)

	if got := geo.Country(context.Background(), "8.8.4.4"); got != CountryUnknown {
		t.Errorf("Country = %q, want %q on resolver failure", got, CountryUnknown)
	}
}

func TestCountryFailStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fail"}`))
	}))
	defer server.Close()

	geo := NewGeoService(server.URL)

	if got := geo.Country(context.Background(), "1.1.1.1"); got != CountryUnknown {
		t.Errorf("Country = %q, want %q on fail status", got, CountryUnknown)
	}
}
