// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/prashamshah115/jewelry-recommender/internal/collab"
	"github.com/prashamshah115/jewelry-recommender/internal/pool"
	"github.com/prashamshah115/jewelry-recommender/internal/profile"
	"github.com/prashamshah115/jewelry-recommender/internal/recommend"
)

type searchRequest struct {
	Dataset  string                     `json:"dataset" validate:"required"`
	Query    string                     `json:"query"`
	ImageURL string                     `json:"image_url" validate:"omitempty,url"`
	TopK     int                        `json:"top_k" validate:"min=0,max=100"`
	Filters  map[string]json.RawMessage `json:"filters"`
}

type searchResult struct {
	Item  pool.Item `json:"item"`
	Score float32   `json:"score"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "malformed_body", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, err)
		return
	}
	filters, err := parseFilters(req.Filters)
	if err != nil {
		respondError(w, err)
		return
	}

	results, err := s.engine.Search(r.Context(), req.Dataset, recommend.Request{
		Query:    req.Query,
		ImageURL: req.ImageURL,
	}, req.TopK, filters)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]searchResult, len(results))
	for i, res := range results {
		out[i] = searchResult{Item: res.Item, Score: res.Score}
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": out})
}

type combinationsRequest struct {
	Query          string                     `json:"query"`
	ImageURL       string                     `json:"image_url" validate:"omitempty,url"`
	UserID         string                     `json:"user_id"`
	TopK           int                        `json:"top_k" validate:"min=0,max=50"`
	DiamondFilters map[string]json.RawMessage `json:"diamond_filters"`
	RingFilters    map[string]json.RawMessage `json:"ring_filters"`
}

func (s *Server) handleCombinations(w http.ResponseWriter, r *http.Request) {
	var req combinationsRequest
	if err := decodeBody(r, &req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "malformed_body", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, err)
		return
	}
	diamondFilters, err := parseFilters(req.DiamondFilters)
	if err != nil {
		respondError(w, err)
		return
	}
	ringFilters, err := parseFilters(req.RingFilters)
	if err != nil {
		respondError(w, err)
		return
	}

	combos, err := s.engine.RecommendCombinations(r.Context(), recommend.Request{
		Query:          req.Query,
		ImageURL:       req.ImageURL,
		UserID:         req.UserID,
		TopK:           req.TopK,
		DiamondFilters: diamondFilters,
		RingFilters:    ringFilters,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	if len(combos) == 0 {
		respondJSON(w, http.StatusOK, map[string]any{
			"combinations": []recommend.Combination{},
			"note":         "no candidates matched the query and filters",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"combinations": combos})
}

type preferencesRequest struct {
	Metals    []string `json:"metals"`
	Styles    []string `json:"styles"`
	Gemstones []string `json:"gemstones"`
	Colors    []string `json:"colors"`
	Shapes    []string `json:"shapes"`
	PriceMin  *float64 `json:"price_min" validate:"omitempty,min=0"`
	PriceMax  *float64 `json:"price_max" validate:"omitempty,min=0"`
	FreeText  string   `json:"free_text" validate:"max=2000"`
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondErrorCode(w, http.StatusBadRequest, "invalid_request", "user id is required")
		return
	}

	var req preferencesRequest
	if err := decodeBody(r, &req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "malformed_body", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, err)
		return
	}
	if req.PriceMin != nil && req.PriceMax != nil && *req.PriceMin > *req.PriceMax {
		respondErrorCode(w, http.StatusBadRequest, "invalid_request", "price_min exceeds price_max")
		return
	}

	p, err := s.engine.SetPreferences(r.Context(), userID, profile.Preferences{
		Metals:    req.Metals,
		Styles:    req.Styles,
		Gemstones: req.Gemstones,
		Colors:    req.Colors,
		Shapes:    req.Shapes,
		PriceMin:  req.PriceMin,
		PriceMax:  req.PriceMax,
		FreeText:  req.FreeText,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":      p.UserID,
		"preferences":  p.Preferences,
		"has_vector":   len(p.PreferenceVector) > 0,
		"interactions": len(p.Interactions),
	})
}

func (s *Server) handleUserRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondErrorCode(w, http.StatusBadRequest, "invalid_request", "user id is required")
		return
	}
	topK := 0
	if v := r.URL.Query().Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			respondErrorCode(w, http.StatusBadRequest, "invalid_request", "top_k must be an integer between 0 and 100")
			return
		}
		topK = n
	}

	recs, err := s.engine.RecommendForUser(userID, topK)
	if err != nil {
		respondError(w, err)
		return
	}
	if recs == nil {
		recs = []collab.Scored{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

type interactionRequest struct {
	Dataset string `json:"dataset" validate:"required"`
	ItemID  string `json:"item_id" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=click like purchase"`
	// Weight overrides the type's base signal strength when set.
	Weight    float64    `json:"weight" validate:"omitempty,gt=0,lte=100"`
	Timestamp *time.Time `json:"timestamp"`
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondErrorCode(w, http.StatusBadRequest, "invalid_request", "user id is required")
		return
	}

	var req interactionRequest
	if err := decodeBody(r, &req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "malformed_body", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, err)
		return
	}

	var at time.Time
	if req.Timestamp != nil {
		at = req.Timestamp.UTC()
	}
	p, err := s.engine.LogInteraction(userID, req.Dataset, req.ItemID, profile.InteractionType(req.Type), req.Weight, at)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"user_id":      p.UserID,
		"interactions": len(p.Interactions),
	})
}
