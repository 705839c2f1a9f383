package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/promoserve/promoserve/internal/models"
)

// helper function to write JSON response
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) ListCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	if s.DataStore == nil {
		http.Error(w, "data store unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.DataStore.GetAllCampaigns())
}

func (s *Server) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	if s.DataStore == nil {
		http.Error(w, "data store unavailable", http.StatusInternalServerError)
		return
	}
	id := mux.Vars(r)["id"]
	c := s.DataStore.GetCampaign(id)
	if c == nil {
		http.Error(w, "campaign not found", http.StatusNotFound)
		return
	}
	writeJSON(w, c)
}

// CampaignStatusHandler reports the lifecycle status of a campaign at the
// current instant, along with whether its recurrence window is open.
func (s *Server) CampaignStatusHandler(w http.ResponseWriter, r *http.Request) {
	if s.DataStore == nil {
		http.Error(w, "data store unavailable", http.StatusInternalServerError)
		return
	}
	id := mux.Vars(r)["id"]
	c := s.DataStore.GetCampaign(id)
	if c == nil {
		http.Error(w, "campaign not found", http.StatusNotFound)
		return
	}

	now := s.now()
	writeJSON(w, map[string]interface{}{
		"id":        c.ID,
		"status":    s.Evaluator.Status(c, now),
		"in_window": s.Evaluator.InRecurrenceWindow(c, now),
	})
}

func (s *Server) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	if s.DataStore == nil {
		http.Error(w, "data store unavailable", http.StatusInternalServerError)
		return
	}
	var c models.Campaign
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Analytics = models.Analytics{}

	if err := c.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Persist to Postgres first; the snapshot only carries what survived a
	// durable write.
	if s.PG != nil {
		if err := s.PG.InsertCampaign(r.Context(), c); err != nil {
			s.Logger.Error("insert campaign to postgres", zap.Error(err), zap.String("campaign_id", c.ID))
			http.Error(w, "failed to persist campaign", http.StatusInternalServerError)
			return
		}
	}

	if err := s.DataStore.InsertCampaign(c); err != nil {
		s.Logger.Error("insert campaign to data store", zap.Error(err), zap.String("campaign_id", c.ID))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, c)
}

func (s *Server) UpdateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	if s.DataStore == nil {
		http.Error(w, "data store unavailable", http.StatusInternalServerError)
		return
	}
	id := mux.Vars(r)["id"]
	existing := s.DataStore.GetCampaign(id)
	if existing == nil {
		http.Error(w, "campaign not found", http.StatusNotFound)
		return
	}

	var c models.Campaign
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	c.ID = id
	c.CreatedAt = existing.CreatedAt
	c.CreatedBy = existing.CreatedBy
	c.Analytics = existing.Analytics
	c.UpdatedAt = time.Now().UTC()

	if err := c.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.DataStore.UpdateCampaign(c); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "campaign not found", http.StatusNotFound)
			return
		}
		s.Logger.Error("update campaign in data store", zap.Error(err), zap.String("campaign_id", id))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if s.PG != nil {
		if err := s.PG.UpdateCampaign(r.Context(), c); err != nil {
			s.Logger.Error("update campaign in postgres", zap.Error(err), zap.String("campaign_id", id))
			// Don't fail the request, data store is the source of truth
		}
	}

	writeJSON(w, c)
}

func (s *Server) DeleteCampaignHandler(w http.ResponseWriter, r *http.Request) {
	if s.DataStore == nil {
		http.Error(w, "data store unavailable", http.StatusInternalServerError)
		return
	}
	id := mux.Vars(r)["id"]

	if err := s.DataStore.DeleteCampaign(id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "campaign not found", http.StatusNotFound)
			return
		}
		s.Logger.Error("delete campaign from data store", zap.Error(err), zap.String("campaign_id", id))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if s.PG != nil {
		if err := s.PG.DeleteCampaign(r.Context(), id); err != nil {
			s.Logger.Error("delete campaign from postgres", zap.Error(err), zap.String("campaign_id", id))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetActiveHandler flips the kill switch. Mounted at both /activate and
// /deactivate.
func (s *Server) SetActiveHandler(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.DataStore == nil {
			http.Error(w, "data store unavailable", http.StatusInternalServerError)
			return
		}
		id := mux.Vars(r)["id"]
		existing := s.DataStore.GetCampaign(id)
		if existing == nil {
			http.Error(w, "campaign not found", http.StatusNotFound)
			return
		}

		updatedBy := r.URL.Query().Get("by")

		if s.PG != nil {
			if err := s.PG.SetActive(r.Context(), id, active, updatedBy); err != nil && !errors.Is(err, models.ErrNotFound) {
				s.Logger.Error("set active in postgres", zap.Error(err), zap.String("campaign_id", id))
				http.Error(w, "failed to persist campaign", http.StatusInternalServerError)
				return
			}
		}

		c := *existing
		c.Active = active
		if updatedBy != "" {
			c.UpdatedBy = updatedBy
		}
		c.UpdatedAt = time.Now().UTC()
		if err := s.DataStore.UpdateCampaign(c); err != nil {
			s.Logger.Error("set active in data store", zap.Error(err), zap.String("campaign_id", id))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, c)
	}
}

// ResetAnalyticsHandler zeroes the durable counters and the live Redis
// mirror for a campaign.
func (s *Server) ResetAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	if s.DataStore == nil {
		http.Error(w, "data store unavailable", http.StatusInternalServerError)
		return
	}
	id := mux.Vars(r)["id"]
	existing := s.DataStore.GetCampaign(id)
	if existing == nil {
		http.Error(w, "campaign not found", http.StatusNotFound)
		return
	}

	if s.PG != nil {
		if err := s.PG.ResetCounters(r.Context(), id, r.URL.Query().Get("by")); err != nil && !errors.Is(err, models.ErrNotFound) {
			s.Logger.Error("reset counters in postgres", zap.Error(err), zap.String("campaign_id", id))
			http.Error(w, "failed to reset counters", http.StatusInternalServerError)
			return
		}
	}

	if s.Store != nil && s.Store.Client != nil {
		if err := s.Store.ResetLiveCounters(id); err != nil {
			s.Logger.Warn("reset live counters", zap.Error(err), zap.String("campaign_id", id))
		}
	}

	c := *existing
	c.Analytics = models.Analytics{}
	c.UpdatedAt = time.Now().UTC()
	if err := s.DataStore.UpdateCampaign(c); err != nil {
		s.Logger.Error("reset counters in data store", zap.Error(err), zap.String("campaign_id", id))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
