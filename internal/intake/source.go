package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/docbox-health/docbox/internal/patient"
	"github.com/docbox-health/docbox/internal/shared/config"
)

// Source produces new patients for the simulation's stochastic
// arrivals. Implementations must return a patient ready to be added
// with status called_in.
type Source interface {
	Next(ctx context.Context, tick int64) (patient.Patient, error)
}

// AISource requests generated patients from the clinical-narrative
// service.
type AISource struct {
	url    string
	client *http.Client
}

// NewAISource creates a source backed by the AI service
func NewAISource(cfg config.AIConfig) *AISource {
	return &AISource{
		url: cfg.URL,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Next requests one generated patient
func (s *AISource) Next(ctx context.Context, tick int64) (patient.Patient, error) {
	body, err := json.Marshal(map[string]any{"tick": tick})
	if err != nil {
		return patient.Patient{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/api/generate-patient", bytes.NewReader(body))
	if err != nil {
		return patient.Patient{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return patient.Patient{}, fmt.Errorf("patient generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return patient.Patient{}, fmt.Errorf("patient generation returned status %d", resp.StatusCode)
	}

	var p patient.Patient
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return patient.Patient{}, fmt.Errorf("failed to decode generated patient: %w", err)
	}

	normalize(&p, tick)
	return p, nil
}

// FallbackSource tries a primary source and falls back to a secondary
// one when the primary fails. Used to keep arrivals flowing when the
// AI service is down.
type FallbackSource struct {
	primary  Source
	fallback Source
}

// NewFallbackSource creates a source with a fallback
func NewFallbackSource(primary, fallback Source) *FallbackSource {
	return &FallbackSource{primary: primary, fallback: fallback}
}

// Next tries the primary source first
func (s *FallbackSource) Next(ctx context.Context, tick int64) (patient.Patient, error) {
	p, err := s.primary.Next(ctx, tick)
	if err == nil {
		return p, nil
	}
	log.Printf("intake: primary source failed, using fallback: %v", err)
	return s.fallback.Next(ctx, tick)
}
