package fusion

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/rankfuse/internal/domain"
)

func TestNewConfig_Valid(t *testing.T) {
	cfg, err := NewConfig(100, 20, 10, "custom-model", true, 0.3, 0.7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.InitialFetchSize() != 100 || cfg.RerankSize() != 20 || cfg.FinalSize() != 10 {
		t.Error("sizes not preserved")
	}
	if cfg.Model() != "custom-model" {
		t.Errorf("unexpected model %q", cfg.Model())
	}
}

func TestNewConfig_EmptyModelFallsBack(t *testing.T) {
	cfg, err := NewConfig(100, 20, 10, "", true, 0.3, 0.7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model() != DefaultModel {
		t.Errorf("expected default model, got %q", cfg.Model())
	}
}

func TestNewConfig_SizeOrdering(t *testing.T) {
	tests := []struct {
		name                       string
		initial, rerank, finalSize int
	}{
		{"rerank exceeds initial", 10, 20, 5},
		{"final exceeds rerank", 100, 20, 21},
		{"zero initial", 0, 20, 10},
		{"zero rerank", 100, 0, 10},
		{"zero final", 100, 20, 0},
		{"initial above max", MaxInitialFetchSize + 1, 20, 10},
		{"rerank above max", 10000, MaxRerankSize + 1, 10},
		{"final above max", 10000, 1000, MaxFinalSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.initial, tt.rerank, tt.finalSize, "", true, 0.3, 0.7)
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestNewConfig_WeightSum(t *testing.T) {
	// Within tolerance.
	if _, err := NewConfig(100, 20, 10, "", true, 0.3, 0.705); err != nil {
		t.Errorf("weights within tolerance rejected: %v", err)
	}
	// Outside tolerance.
	if _, err := NewConfig(100, 20, 10, "", true, 0.5, 0.6); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for weight sum 1.1, got %v", err)
	}
	if _, err := NewConfig(100, 20, 10, "", true, 0.2, 0.7); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for weight sum 0.9, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.InitialFetchSize() != DefaultInitialFetchSize ||
		cfg.RerankSize() != DefaultRerankSize ||
		cfg.FinalSize() != DefaultFinalSize {
		t.Error("unexpected default sizes")
	}
	if !cfg.CombineScores() {
		t.Error("combined scoring should be on by default")
	}
	if cfg.IndexWeight() != DefaultIndexWeight || cfg.RelevanceWeight() != DefaultRelevanceWeight {
		t.Error("unexpected default weights")
	}
}
