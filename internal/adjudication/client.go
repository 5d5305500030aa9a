package adjudication

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/docbox-health/docbox/internal/patient"
	"github.com/docbox-health/docbox/internal/shared/config"
)

// Result is the adjudicated outcome of a rejected discharge: how long
// the patient should remain bedded before re-evaluation, and any
// follow-up labs to order. Lab arrival ticks are absolute.
type Result struct {
	TimeToDischarge int64               `json:"time_to_discharge"`
	AdditionalLabs  []patient.LabResult `json:"additional_labs"`
	Reasoning       string              `json:"reasoning"`
}

// Adjudicator decides the consequence of a rejected discharge
type Adjudicator interface {
	Adjudicate(ctx context.Context, p patient.Patient, note string, tick int64) (Result, error)
}

// remoteLab is the wire shape of an ordered lab; arrival is relative
// and converted to an absolute tick on receipt.
type remoteLab struct {
	Test           string `json:"test"`
	Result         string `json:"result"`
	IsSurprising   bool   `json:"is_surprising"`
	ArrivesInTicks int64  `json:"arrives_in_ticks"`
}

// Client adjudicates rejections through the clinical-decision service
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates a client for the clinical-decision service
func NewClient(cfg config.AIConfig) *Client {
	return &Client{
		url: cfg.URL,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Adjudicate sends the patient snapshot and rejection note for review
func (c *Client) Adjudicate(ctx context.Context, p patient.Patient, note string, tick int64) (Result, error) {
	body, err := json.Marshal(map[string]any{
		"patient":        p,
		"rejection_note": note,
		"current_tick":   tick,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/adjudicate-rejection", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("adjudication request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("adjudication returned status %d", resp.StatusCode)
	}

	var wire struct {
		TimeToDischarge int64       `json:"time_to_discharge"`
		AdditionalLabs  []remoteLab `json:"additional_labs"`
		Reasoning       string      `json:"reasoning"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return Result{}, fmt.Errorf("failed to decode adjudication: %w", err)
	}

	result := Result{
		TimeToDischarge: clampDelay(wire.TimeToDischarge),
		Reasoning:       wire.Reasoning,
	}
	for _, lab := range wire.AdditionalLabs {
		arrivesIn := lab.ArrivesInTicks
		if arrivesIn <= 0 {
			arrivesIn = 5
		}
		result.AdditionalLabs = append(result.AdditionalLabs, patient.LabResult{
			Test:          lab.Test,
			Result:        orPending(lab.Result),
			IsSurprising:  lab.IsSurprising,
			ArrivesAtTick: tick + arrivesIn,
		})
	}
	return result, nil
}

// Fallback adjudicates locally when the decision service is
// unavailable: a randomized bedded delay and no follow-up labs.
type Fallback struct {
	min, max int64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFallback creates a local fallback adjudicator
func NewFallback(min, max int64, rng *rand.Rand) *Fallback {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Fallback{min: min, max: max, rng: rng}
}

// Adjudicate returns a randomized delay within the configured bounds
func (f *Fallback) Adjudicate(ctx context.Context, p patient.Patient, note string, tick int64) (Result, error) {
	f.mu.Lock()
	delay := f.min + f.rng.Int63n(f.max-f.min+1)
	f.mu.Unlock()
	return Result{
		TimeToDischarge: delay,
		Reasoning:       "clinical decision service unavailable, applied standard re-evaluation delay",
	}, nil
}

// WithFallback tries the primary adjudicator and falls back on error
type WithFallback struct {
	primary  Adjudicator
	fallback Adjudicator
}

// NewWithFallback wraps an adjudicator with a fallback
func NewWithFallback(primary, fallback Adjudicator) *WithFallback {
	return &WithFallback{primary: primary, fallback: fallback}
}

// Adjudicate tries the primary adjudicator first
func (a *WithFallback) Adjudicate(ctx context.Context, p patient.Patient, note string, tick int64) (Result, error) {
	result, err := a.primary.Adjudicate(ctx, p, note, tick)
	if err == nil {
		return result, nil
	}
	log.Printf("adjudication: primary failed, using fallback: %v", err)
	return a.fallback.Adjudicate(ctx, p, note, tick)
}

func clampDelay(d int64) int64 {
	if d < 4 {
		return 4
	}
	if d > 25 {
		return 25
	}
	return d
}

func orPending(s string) string {
	if s == "" {
		return "pending"
	}
	return s
}
