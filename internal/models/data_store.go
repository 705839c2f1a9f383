package models

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNotFound is returned when an entity is not found in the data store.
var ErrNotFound = errors.New("entity not found")

// CampaignDataStore provides thread-safe access to campaign definitions
// without global variables. Selection reads an immutable snapshot, so the
// hot path takes no locks; writes swap in a new snapshot atomically.
type CampaignDataStore interface {
	// Read operations (hot path)
	GetCampaign(id string) *Campaign
	// GetCampaignsByPlacement returns the non-announcement campaigns
	// configured on the given page region.
	GetCampaignsByPlacement(placement string) []Campaign
	// GetAnnouncements returns all announcement campaigns. Announcements
	// occupy a dedicated slot independent of the requested placement.
	GetAnnouncements() []Campaign
	GetAllCampaigns() []Campaign

	// Write operations (reload and CRUD paths)
	ReloadAll(campaigns []Campaign) error
	InsertCampaign(c Campaign) error
	UpdateCampaign(c Campaign) error
	DeleteCampaign(id string) error
}

// campaignSnapshot is an immutable view of all campaign definitions.
type campaignSnapshot struct {
	campaigns     []Campaign
	byID          map[string]*Campaign
	byPlacement   map[string][]Campaign
	announcements []Campaign
}

func buildSnapshot(campaigns []Campaign) *campaignSnapshot {
	snap := &campaignSnapshot{
		campaigns:   campaigns,
		byID:        make(map[string]*Campaign, len(campaigns)),
		byPlacement: make(map[string][]Campaign),
	}
	for i := range campaigns {
		c := &campaigns[i]
		snap.byID[c.ID] = c
		if c.Kind == KindAnnouncement {
			snap.announcements = append(snap.announcements, *c)
			continue
		}
		snap.byPlacement[c.Placement] = append(snap.byPlacement[c.Placement], *c)
	}
	return snap
}

// InMemoryCampaignDataStore implements CampaignDataStore with atomic
// snapshot swaps. Reads are lock-free; writes hold mu so two concurrent
// CRUD calls cannot build from the same base snapshot and lose one update.
type InMemoryCampaignDataStore struct {
	mu   sync.Mutex
	data atomic.Pointer[campaignSnapshot]
}

// NewInMemoryCampaignDataStore creates an empty store.
func NewInMemoryCampaignDataStore() *InMemoryCampaignDataStore {
	s := &InMemoryCampaignDataStore{}
	s.data.Store(buildSnapshot(nil))
	return s
}

// GetCampaign retrieves a campaign by ID, or nil when absent.
func (s *InMemoryCampaignDataStore) GetCampaign(id string) *Campaign {
	if c, ok := s.data.Load().byID[id]; ok {
		return c
	}
	return nil
}

// GetCampaignsByPlacement returns the non-announcement campaigns for a
// placement. The returned slice is a copy.
func (s *InMemoryCampaignDataStore) GetCampaignsByPlacement(placement string) []Campaign {
	data := s.data.Load()
	if cs, ok := data.byPlacement[placement]; ok {
		result := make([]Campaign, len(cs))
		copy(result, cs)
		return result
	}
	return nil
}

// GetAnnouncements returns all announcement campaigns. The returned slice is
// a copy.
func (s *InMemoryCampaignDataStore) GetAnnouncements() []Campaign {
	data := s.data.Load()
	result := make([]Campaign, len(data.announcements))
	copy(result, data.announcements)
	return result
}

// GetAllCampaigns returns every campaign in the snapshot. The returned slice
// is a copy.
func (s *InMemoryCampaignDataStore) GetAllCampaigns() []Campaign {
	data := s.data.Load()
	result := make([]Campaign, len(data.campaigns))
	copy(result, data.campaigns)
	return result
}

// ReloadAll replaces the entire snapshot in one atomic swap.
func (s *InMemoryCampaignDataStore) ReloadAll(campaigns []Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Store(buildSnapshot(campaigns))
	return nil
}

// InsertCampaign adds a campaign and swaps in a new snapshot.
func (s *InMemoryCampaignDataStore) InsertCampaign(c Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.data.Load()
	campaigns := make([]Campaign, 0, len(current.campaigns)+1)
	campaigns = append(campaigns, current.campaigns...)
	campaigns = append(campaigns, c)
	s.data.Store(buildSnapshot(campaigns))
	return nil
}

// UpdateCampaign replaces a campaign by ID and swaps in a new snapshot.
func (s *InMemoryCampaignDataStore) UpdateCampaign(c Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.data.Load()
	if _, ok := current.byID[c.ID]; !ok {
		return ErrNotFound
	}
	campaigns := make([]Campaign, len(current.campaigns))
	copy(campaigns, current.campaigns)
	for i := range campaigns {
		if campaigns[i].ID == c.ID {
			campaigns[i] = c
			break
		}
	}
	s.data.Store(buildSnapshot(campaigns))
	return nil
}

// DeleteCampaign removes a campaign by ID and swaps in a new snapshot.
func (s *InMemoryCampaignDataStore) DeleteCampaign(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.data.Load()
	if _, ok := current.byID[id]; !ok {
		return ErrNotFound
	}
	campaigns := make([]Campaign, 0, len(current.campaigns)-1)
	for _, c := range current.campaigns {
		if c.ID != id {
			campaigns = append(campaigns, c)
		}
	}
	s.data.Store(buildSnapshot(campaigns))
	return nil
}
