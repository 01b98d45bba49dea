package stunsocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// MockTimeProvider is a deterministic time provider for testing.
type MockTimeProvider struct {
	currentTime time.Time
}

// Now returns the mock time.
func (m *MockTimeProvider) Now() time.Time {
	return m.currentTime
}

// Advance moves the mock time forward by the given duration.
func (m *MockTimeProvider) Advance(d time.Duration) {
	m.currentTime = m.currentTime.Add(d)
}

func TestTimeProvider_RealTimeProvider(t *testing.T) {
	provider := RealTimeProvider{}
	before := time.Now()
	result := provider.Now()
	after := time.Now()

	assert.False(t, result.Before(before) || result.After(after), "RealTimeProvider.Now() returned time outside expected range")
}

func TestTimeProvider_Fallback(t *testing.T) {
	assert.IsType(t, RealTimeProvider{}, getTimeProvider(nil))

	mock := &MockTimeProvider{currentTime: time.Unix(42, 0)}
	assert.Same(t, mock, getTimeProvider(mock))
}
