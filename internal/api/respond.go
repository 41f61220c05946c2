// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/prashamshah115/jewelry-recommender/internal/embedding"
	"github.com/prashamshah115/jewelry-recommender/internal/logging"
	"github.com/prashamshah115/jewelry-recommender/internal/pool"
	"github.com/prashamshah115/jewelry-recommender/internal/profile"
	"github.com/prashamshah115/jewelry-recommender/internal/recommend"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Err(err).Msg("encoding response")
	}
}

func respondErrorCode(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// respondError maps domain errors onto HTTP statuses. Client mistakes come
// back 4xx with the concrete reason; everything unexpected is a 500 with a
// generic body so internals do not leak.
func respondError(w http.ResponseWriter, err error) {
	var (
		filterErr     *pool.FilterError
		validationErr validator.ValidationErrors
	)
	switch {
	case errors.As(err, &filterErr):
		respondErrorCode(w, http.StatusBadRequest, "invalid_filter", filterErr.Error())
	case errors.As(err, &validationErr):
		respondErrorCode(w, http.StatusBadRequest, "invalid_request", validationErr.Error())
	case errors.Is(err, recommend.ErrInvalidQuery):
		respondErrorCode(w, http.StatusBadRequest, "invalid_query", err.Error())
	case errors.Is(err, pool.ErrDimensionMismatch):
		respondErrorCode(w, http.StatusBadRequest, "invalid_query", err.Error())
	case errors.Is(err, pool.ErrUnknownDataset):
		respondErrorCode(w, http.StatusNotFound, "unknown_dataset", err.Error())
	case errors.Is(err, pool.ErrUnknownItem):
		respondErrorCode(w, http.StatusNotFound, "unknown_item", err.Error())
	case errors.Is(err, profile.ErrNotFound):
		respondErrorCode(w, http.StatusNotFound, "unknown_user", err.Error())
	case errors.Is(err, embedding.ErrUnavailable):
		respondErrorCode(w, http.StatusServiceUnavailable, "embedding_unavailable", err.Error())
	default:
		logging.Err(err).Msg("request failed")
		respondErrorCode(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
