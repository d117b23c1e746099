package training

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// History accumulates logged metrics per epoch and serializes them to
// JSON, so a run's curves can be inspected or plotted after the fact.
// It implements MetricLogger; within an epoch the last value logged under
// a name wins.
type History struct {
	mu      sync.Mutex
	current map[string]float64

	Epochs    []map[string]float64 `json:"epochs"`
	CreatedAt time.Time            `json:"created_at"`
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{
		current:   make(map[string]float64),
		CreatedAt: time.Now(),
	}
}

// Log stores the value under the metric name for the current epoch.
func (h *History) Log(name string, value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current[name] = value
}

// CloseEpoch seals the current epoch's metrics and starts a new one.
func (h *History) CloseEpoch() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.current) == 0 {
		return
	}
	h.Epochs = append(h.Epochs, h.current)
	h.current = make(map[string]float64)
}

// Save writes the history as indented JSON.
func (h *History) Save(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write history file: %v", err)
	}
	return nil
}

// LoadHistory reads a history file written by Save.
func LoadHistory(path string) (*History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %v", err)
	}
	h := NewHistory()
	if err := json.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("failed to parse history file: %v", err)
	}
	return h, nil
}
