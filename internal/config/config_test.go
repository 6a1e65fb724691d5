package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:          HTTPConfig{Port: 8080},
		Elasticsearch: ElasticsearchConfig{Addrs: []string{"http://localhost:9200"}},
		Scorer:        ScorerConfig{Provider: "zeroentropy", APIKey: "test-key"},
	}
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingElasticsearchAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Elasticsearch.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing elasticsearch addrs")
	}
}

func TestValidate_ScorerProviders(t *testing.T) {
	cfg := validConfig()
	cfg.Scorer = ScorerConfig{Provider: "zeroentropy"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zeroentropy without api key")
	}

	cfg.Scorer = ScorerConfig{Provider: "embedding"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for embedding without openai api key")
	}

	cfg.Scorer = ScorerConfig{
		Provider: "embedding",
		OpenAI:   OpenAIConfig{APIKey: "k", EmbeddingModel: "text-embedding-3-small"},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error for valid embedding provider: %v", err)
	}

	cfg.Scorer = ScorerConfig{Provider: "something-else", APIKey: "k"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestValidate_CacheRequiresAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Cache = CacheConfig{Enabled: true}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for enabled cache without addrs")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Scorer.Provider != "zeroentropy" {
		t.Errorf("expected provider zeroentropy, got %q", cfg.Scorer.Provider)
	}
	if cfg.Scorer.RateLimit.RequestsPerMinute != 60 || cfg.Scorer.RateLimit.Burst != 10 {
		t.Errorf("unexpected rate limit defaults: %+v", cfg.Scorer.RateLimit)
	}
	if cfg.Pipeline.InitialFetchSize != 100 || cfg.Pipeline.RerankSize != 20 || cfg.Pipeline.FinalSize != 10 {
		t.Errorf("unexpected pipeline size defaults: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.CombineScores == nil || !*cfg.Pipeline.CombineScores {
		t.Error("expected combine_scores default true")
	}
	if cfg.Pipeline.IndexWeight != 0.3 || cfg.Pipeline.RelevanceWeight != 0.7 {
		t.Errorf("unexpected weight defaults: %v/%v", cfg.Pipeline.IndexWeight, cfg.Pipeline.RelevanceWeight)
	}
	if cfg.Pipeline.MaxConcurrent != 10 {
		t.Errorf("expected MaxConcurrent=10, got %d", cfg.Pipeline.MaxConcurrent)
	}
	if cfg.Cache.TTLSec != 3600 {
		t.Errorf("expected TTLSec=3600, got %d", cfg.Cache.TTLSec)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	combine := false
	cfg := Config{
		HTTP: HTTPConfig{ReadTimeoutSec: 5, WriteTimeoutSec: 60, ShutdownSec: 5},
		Pipeline: PipelineConfig{
			InitialFetchSize: 200,
			RerankSize:       50,
			FinalSize:        25,
			CombineScores:    &combine,
			IndexWeight:      0.5,
			RelevanceWeight:  0.5,
			MaxConcurrent:    4,
		},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 5 || cfg.HTTP.WriteTimeoutSec != 60 {
		t.Error("explicit HTTP timeouts were overridden")
	}
	if cfg.Pipeline.InitialFetchSize != 200 || cfg.Pipeline.RerankSize != 50 || cfg.Pipeline.FinalSize != 25 {
		t.Error("explicit pipeline sizes were overridden")
	}
	if *cfg.Pipeline.CombineScores {
		t.Error("explicit combine_scores=false was overridden")
	}
	if cfg.Pipeline.IndexWeight != 0.5 || cfg.Pipeline.RelevanceWeight != 0.5 {
		t.Error("explicit weights were overridden")
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("RANKFUSE_TEST_KEY", "secret")
	defer os.Unsetenv("RANKFUSE_TEST_KEY")

	in := []byte("api_key: ${RANKFUSE_TEST_KEY}\nmodel: ${RANKFUSE_TEST_MISSING:-zerank-1}\n")
	got := string(expandEnvVars(in))
	want := "api_key: secret\nmodel: zerank-1\n"
	if got != want {
		t.Errorf("expandEnvVars:\ngot:  %q\nwant: %q", got, want)
	}
}
