package intake

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docbox-health/docbox/internal/patient"
	"github.com/docbox-health/docbox/internal/shared/config"
)

func TestFixtureSourceNormalizesArrivals(t *testing.T) {
	source := NewFixtureSource()

	p, err := source.Next(context.Background(), 30)
	if err != nil {
		t.Fatalf("Expected fixture source to never fail: %v", err)
	}

	if p.PID == "" {
		t.Error("Expected a fresh pid")
	}
	if p.Status != patient.StatusCalledIn {
		t.Errorf("Expected called_in, got %s", p.Status)
	}
	if p.Color != patient.ColorGrey {
		t.Errorf("Expected grey, got %s", p.Color)
	}
	if !p.IsSimulated {
		t.Error("Expected simulated flag set")
	}
	if p.Version != 0 {
		t.Errorf("Expected version 0, got %d", p.Version)
	}
	for _, lab := range p.LabResults {
		if lab.ArrivesAtTick <= 30 {
			t.Errorf("Expected lab ticks rebased past tick 30, got %d", lab.ArrivesAtTick)
		}
	}
}

func TestFixtureSourceCyclesWithFreshIDs(t *testing.T) {
	source := NewFixtureSource()

	seen := make(map[string]bool)
	names := make(map[string]int)
	total := len(defaultFixtures) * 2
	for i := 0; i < total; i++ {
		p, err := source.Next(context.Background(), int64(i))
		if err != nil {
			t.Fatalf("Expected fixture source to never fail: %v", err)
		}
		if seen[p.PID] {
			t.Fatalf("Expected unique pid, got repeat %s", p.PID)
		}
		seen[p.PID] = true
		names[p.Name]++
	}

	// Two full cycles: every template used exactly twice
	for name, count := range names {
		if count != 2 {
			t.Errorf("Expected %s twice, got %d", name, count)
		}
	}
}

func TestAISource(t *testing.T) {
	esi := 3
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate-patient" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(patient.Patient{
			Name:     "Generated Patient",
			ESIScore: &esi,
			Status:   patient.StatusERBed, // service output is not trusted
			Version:  99,
		})
	}))
	defer server.Close()

	source := NewAISource(config.AIConfig{URL: server.URL, TimeoutSeconds: 5})
	p, err := source.Next(context.Background(), 7)
	if err != nil {
		t.Fatalf("Expected generation to succeed: %v", err)
	}
	if p.Name != "Generated Patient" {
		t.Errorf("Expected generated name, got %s", p.Name)
	}
	if p.Status != patient.StatusCalledIn || p.Version != 0 {
		t.Error("Expected service output normalized to a fresh called_in patient")
	}
}

func TestAISourceErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	source := NewAISource(config.AIConfig{URL: server.URL, TimeoutSeconds: 5})
	if _, err := source.Next(context.Background(), 1); err == nil {
		t.Error("Expected error on non-200 response")
	}
}

type failingSource struct{}

func (failingSource) Next(ctx context.Context, tick int64) (patient.Patient, error) {
	return patient.Patient{}, errors.New("service down")
}

func TestFallbackSource(t *testing.T) {
	source := NewFallbackSource(failingSource{}, NewFixtureSource())

	p, err := source.Next(context.Background(), 1)
	if err != nil {
		t.Fatalf("Expected fallback to cover the failure: %v", err)
	}
	if p.Status != patient.StatusCalledIn {
		t.Errorf("Expected called_in from fallback, got %s", p.Status)
	}
}
