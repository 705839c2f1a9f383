package models

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeWith(t *testing.T, campaigns ...Campaign) *InMemoryCampaignDataStore {
	t.Helper()
	s := NewInMemoryCampaignDataStore()
	require.NoError(t, s.ReloadAll(campaigns))
	return s
}

func TestDataStoreLookups(t *testing.T) {
	s := storeWith(t,
		Campaign{ID: "banner-1", Kind: KindBanner, Placement: PlacementTop},
		Campaign{ID: "popup-1", Kind: KindPopup, Placement: PlacementTop},
		Campaign{ID: "banner-2", Kind: KindBanner, Placement: PlacementBottom},
		Campaign{ID: "news-1", Kind: KindAnnouncement, Placement: PlacementTop},
	)

	require.NotNil(t, s.GetCampaign("banner-1"))
	assert.Nil(t, s.GetCampaign("missing"))

	top := s.GetCampaignsByPlacement(PlacementTop)
	assert.Len(t, top, 2, "announcements are excluded from placement buckets")

	assert.Len(t, s.GetAnnouncements(), 1)
	assert.Len(t, s.GetAllCampaigns(), 4)
	assert.Empty(t, s.GetCampaignsByPlacement(PlacementLeft))
}

func TestDataStoreCRUD(t *testing.T) {
	s := storeWith(t)

	require.NoError(t, s.InsertCampaign(Campaign{ID: "c1", Kind: KindBanner, Placement: PlacementTop}))
	require.NotNil(t, s.GetCampaign("c1"))

	updated := Campaign{ID: "c1", Kind: KindBanner, Placement: PlacementBottom}
	require.NoError(t, s.UpdateCampaign(updated))
	assert.Equal(t, PlacementBottom, s.GetCampaign("c1").Placement)
	assert.Empty(t, s.GetCampaignsByPlacement(PlacementTop), "placement index follows the update")

	assert.ErrorIs(t, s.UpdateCampaign(Campaign{ID: "missing"}), ErrNotFound)

	require.NoError(t, s.DeleteCampaign("c1"))
	assert.Nil(t, s.GetCampaign("c1"))
	assert.ErrorIs(t, s.DeleteCampaign("c1"), ErrNotFound)
}

func TestDataStoreReloadReplacesEverything(t *testing.T) {
	s := storeWith(t, Campaign{ID: "old", Kind: KindBanner, Placement: PlacementTop})

	require.NoError(t, s.ReloadAll([]Campaign{{ID: "new", Kind: KindBanner, Placement: PlacementTop}}))
	assert.Nil(t, s.GetCampaign("old"))
	require.NotNil(t, s.GetCampaign("new"))
}

func TestDataStoreReturnsCopies(t *testing.T) {
	s := storeWith(t, Campaign{ID: "c1", Kind: KindBanner, Placement: PlacementTop, Order: 1})

	got := s.GetCampaignsByPlacement(PlacementTop)
	require.Len(t, got, 1)
	got[0].Order = 99

	again := s.GetCampaignsByPlacement(PlacementTop)
	assert.Equal(t, 1, again[0].Order, "callers cannot mutate the snapshot")
}

func TestDataStoreConcurrentAccess(t *testing.T) {
	s := storeWith(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("c-%d-%d", n, j)
				_ = s.InsertCampaign(Campaign{ID: id, Kind: KindBanner, Placement: PlacementTop})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.GetCampaignsByPlacement(PlacementTop)
				_ = s.GetAllCampaigns()
			}
		}()
	}
	wg.Wait()

	// every insert must survive: concurrent writers may not clobber each
	// other's snapshot swap
	assert.Len(t, s.GetAllCampaigns(), 8*50)
}

func TestDataStoreConcurrentUpdatesNotLost(t *testing.T) {
	s := storeWith(t,
		Campaign{ID: "a", Kind: KindBanner, Placement: PlacementTop},
		Campaign{ID: "b", Kind: KindBanner, Placement: PlacementTop},
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = s.UpdateCampaign(Campaign{ID: "a", Kind: KindBanner, Placement: PlacementTop, Order: i + 1})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = s.UpdateCampaign(Campaign{ID: "b", Kind: KindBanner, Placement: PlacementTop, Order: i + 1})
		}
	}()
	wg.Wait()

	require.NotNil(t, s.GetCampaign("a"))
	require.NotNil(t, s.GetCampaign("b"))
	assert.Equal(t, 100, s.GetCampaign("a").Order)
	assert.Equal(t, 100, s.GetCampaign("b").Order)
}
