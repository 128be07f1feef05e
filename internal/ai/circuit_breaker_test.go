package ai

import (
	"testing"
	"time"

	"google.golang.org/genai"

	"resumeboost/internal/config"
)

func breakerConfig(enabled bool) config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:          enabled,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          60 * time.Second,
		MinRequests:      3,
		FailureThreshold: 0.6,
	}
}

func TestCircuitBreakerInitialState(t *testing.T) {
	cb := NewAICircuitBreaker(breakerConfig(true), nil)

	stats := cb.GetStats()
	name, ok := stats["name"].(string)
	if !ok {
		t.Fatal("Circuit breaker name not found")
	}
	if name != "AI-AnalyzeResume" {
		t.Errorf("Expected circuit breaker name 'AI-AnalyzeResume', got '%s'", name)
	}

	state, ok := stats["state"].(string)
	if !ok {
		t.Fatal("Circuit breaker state not found")
	}
	if state != "closed" {
		t.Errorf("Expected initial state 'closed', got '%s'", state)
	}

	if !cb.IsHealthy() {
		t.Error("Expected new circuit breaker to be healthy")
	}
}

func TestDisabledCircuitBreakerIsNil(t *testing.T) {
	cb := NewAICircuitBreaker(breakerConfig(false), nil)
	if cb != nil {
		t.Fatal("Expected nil circuit breaker when disabled")
	}

	// A nil breaker still executes the function directly.
	called := false
	_, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		called = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !called {
		t.Error("Expected function to be called through nil breaker")
	}

	if !cb.IsHealthy() {
		t.Error("Expected nil circuit breaker to report healthy")
	}
	stats := cb.GetStats()
	if enabled, _ := stats["enabled"].(bool); enabled {
		t.Error("Expected disabled stats for nil breaker")
	}
}

func TestModelCircuitBreakerInitialState(t *testing.T) {
	cb := NewModelCircuitBreaker(breakerConfig(true), nil)

	stats := cb.GetModelStats()
	if name, _ := stats["name"].(string); name != "AI-Model-AnalyzeResume" {
		t.Errorf("Unexpected model breaker name: %v", stats["name"])
	}
	if !cb.IsModelHealthy() {
		t.Error("Expected new model circuit breaker to be healthy")
	}
}
