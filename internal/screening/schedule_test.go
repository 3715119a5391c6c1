package screening

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInterval(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 3 * time.Second},
		{1, 3 * time.Second},
		{20, 3 * time.Second},
		{21, 5 * time.Second},
		{32, 5 * time.Second},
		{33, 10 * time.Second},
		{50, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Interval(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestIntervalBudget(t *testing.T) {
	var total time.Duration
	for n := 1; n <= MaxAttempts; n++ {
		total += Interval(n)
	}
	// 20*3s + 12*5s + 18*10s
	assert.Equal(t, 300*time.Second, total)
}
