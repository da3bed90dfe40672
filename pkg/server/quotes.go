package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sunquote/sunquote/pkg/log"
	"github.com/sunquote/sunquote/pkg/storage"
	"github.com/sunquote/sunquote/pkg/types"
)

func (s *Server) handleUpsertQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agencyID := s.getAgencyID(r)

	var req struct {
		Quote types.Quote `json:"quote"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode quote", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	quote := req.Quote
	if quote.Params.PowerKWC <= 0 {
		writeJSONError(w, "quote powerKWC must be positive", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	if quote.ID == "" {
		b := make([]byte, 8)
		if _, err := rand.Read(b); err != nil {
			writeJSONError(w, "failed to generate quote id", http.StatusInternalServerError)
			return
		}
		quote.ID = hex.EncodeToString(b)
		quote.CreatedAt = now
	} else if quote.CreatedAt.IsZero() {
		// keep the original creation time on updates when the client drops it
		if existing, err := s.storage.GetQuote(ctx, agencyID, quote.ID); err == nil {
			quote.CreatedAt = existing.CreatedAt
		} else {
			quote.CreatedAt = now
		}
	}
	quote.UpdatedAt = now
	quote.Params = quote.Params.Normalized()

	if err := s.storage.UpsertQuote(ctx, agencyID, quote); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save quote", slog.String("quoteID", quote.ID), slog.Any("error", err))
		writeJSONError(w, "failed to save quote", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "quote saved", slog.String("quoteID", quote.ID))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(quote); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleListQuotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agencyID := s.getAgencyID(r)

	quotes, err := s.storage.ListQuotes(ctx, agencyID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list quotes", slog.Any("error", err))
		writeJSONError(w, "failed to list quotes", http.StatusInternalServerError)
		return
	}
	if quotes == nil {
		quotes = []types.Quote{}
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(quotes); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agencyID := s.getAgencyID(r)
	quoteID := r.PathValue("id")

	quote, err := s.storage.GetQuote(ctx, agencyID, quoteID)
	if err != nil {
		if errors.Is(err, storage.ErrQuoteNotFound) {
			writeJSONError(w, "quote not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get quote", slog.String("quoteID", quoteID), slog.Any("error", err))
		writeJSONError(w, "failed to get quote", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(quote); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleDeleteQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agencyID := s.getAgencyID(r)
	quoteID := r.PathValue("id")

	if err := s.storage.DeleteQuote(ctx, agencyID, quoteID); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to delete quote", slog.String("quoteID", quoteID), slog.Any("error", err))
		writeJSONError(w, "failed to delete quote", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "quote deleted", slog.String("quoteID", quoteID))
	w.WriteHeader(http.StatusOK)
}
