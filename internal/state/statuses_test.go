package state

import (
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		expected string
	}{
		{
			name:     "Queued status",
			status:   StatusQueued,
			expected: "queued",
		},
		{
			name:     "Processing status",
			status:   StatusProcessing,
			expected: "processing",
		},
		{
			name:     "Retrying status",
			status:   StatusRetrying,
			expected: "retrying",
		},
		{
			name:     "Succeeded status",
			status:   StatusSucceeded,
			expected: "succeeded",
		},
		{
			name:     "Failed status",
			status:   StatusFailed,
			expected: "failed",
		},
		{
			name:     "Cleared status",
			status:   StatusCleared,
			expected: "cleared",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.status.String()
			if result != tt.expected {
				t.Errorf("String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusQueued:     false,
		StatusProcessing: false,
		StatusRetrying:   false,
		StatusSucceeded:  true,
		StatusFailed:     true,
		StatusCleared:    true,
	}

	for _, s := range AllStatuses {
		if got := s.Terminal(); got != terminal[s] {
			t.Errorf("Terminal(%s) = %v, want %v", s, got, terminal[s])
		}
	}
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     Status
		to       Status
		expected bool
	}{
		{
			name:     "Valid: Queued to Processing",
			from:     StatusQueued,
			to:       StatusProcessing,
			expected: true,
		},
		{
			name:     "Valid: Queued to Cleared",
			from:     StatusQueued,
			to:       StatusCleared,
			expected: true,
		},
		{
			name:     "Valid: Processing to Succeeded",
			from:     StatusProcessing,
			to:       StatusSucceeded,
			expected: true,
		},
		{
			name:     "Valid: Processing to Retrying",
			from:     StatusProcessing,
			to:       StatusRetrying,
			expected: true,
		},
		{
			name:     "Valid: Processing to Failed",
			from:     StatusProcessing,
			to:       StatusFailed,
			expected: true,
		},
		{
			name:     "Valid: Retrying to Processing",
			from:     StatusRetrying,
			to:       StatusProcessing,
			expected: true,
		},
		{
			name:     "Invalid: Queued to Succeeded",
			from:     StatusQueued,
			to:       StatusSucceeded,
			expected: false,
		},
		{
			name:     "Invalid: Succeeded to Failed",
			from:     StatusSucceeded,
			to:       StatusFailed,
			expected: false,
		},
		{
			name:     "Invalid: Cleared to Processing",
			from:     StatusCleared,
			to:       StatusProcessing,
			expected: false,
		},
		{
			name:     "Invalid: Processing to Cleared",
			from:     StatusProcessing,
			to:       StatusCleared,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition() = %v, want %v", result, tt.expected)
			}
		})
	}
}
