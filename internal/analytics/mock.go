package analytics

import (
	"context"
	"sync"

	"github.com/promoserve/promoserve/internal/models"
)

// MockRecorder records events in memory for tests.
type MockRecorder struct {
	mu          sync.Mutex
	Impressions map[string]int64
	Clicks      map[string]int64
	Conversions map[string]int64
	Revenue     map[string]float64
	Selections  []string
	Reports     map[string]Report
	Err         error
}

var _ Recorder = (*MockRecorder)(nil)

func NewMockRecorder() *MockRecorder {
	return &MockRecorder{
		Impressions: make(map[string]int64),
		Clicks:      make(map[string]int64),
		Conversions: make(map[string]int64),
		Revenue:     make(map[string]float64),
		Reports:     make(map[string]Report),
	}
}

func (m *MockRecorder) RecordImpression(_ context.Context, campaignID, _ string, _ models.VisitorContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Impressions[campaignID]++
	return nil
}

func (m *MockRecorder) RecordClick(_ context.Context, campaignID string, _ models.VisitorContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Clicks[campaignID]++
	return nil
}

func (m *MockRecorder) RecordConversion(_ context.Context, campaignID string, revenue float64, _ models.VisitorContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Conversions[campaignID]++
	m.Revenue[campaignID] += revenue
	return nil
}

func (m *MockRecorder) RecordSelection(_ context.Context, eventType, placement, campaignID string, _ models.VisitorContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Selections = append(m.Selections, eventType+":"+placement+":"+campaignID)
	return nil
}

func (m *MockRecorder) GetAnalytics(_ context.Context, campaignID string) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Report{}, m.Err
	}
	r, ok := m.Reports[campaignID]
	if !ok {
		return Report{}, models.ErrNotFound
	}
	return r, nil
}
