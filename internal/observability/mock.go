package observability

import "time"

// MockMetricsRegistry is a mock implementation of MetricsRegistry for testing
type MockMetricsRegistry struct{}

// HTTP request metrics
func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}

// Selection metrics
func (m *MockMetricsRegistry) IncrementSelections(placement, result string) {}
func (m *MockMetricsRegistry) IncrementCampaignSkips(reason string)         {}

// Event tracking metrics
func (m *MockMetricsRegistry) IncrementEvent(eventType string)      {}
func (m *MockMetricsRegistry) IncrementEventDrops(eventType string) {}

// Snapshot reload metrics
func (m *MockMetricsRegistry) IncrementReloads(outcome string) {}
