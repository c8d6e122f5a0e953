package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"iso8583_parser/internal/enrichment"
	"iso8583_parser/internal/iso8583"
	"iso8583_parser/internal/storage"
)

// page holds the paging and success filters shared by the list endpoints.
type page struct {
	success *bool
	limit   int
	offset  int
	desc    bool
}

func readPage(q url.Values) (page, error) {
	p := page{desc: q.Get("order") != "asc"}
	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, errors.New("success must be true or false")
		}
		p.success = &b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			return p, errors.New("limit must be 1-1000")
		}
		p.limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, errors.New("offset must be a non-negative integer")
		}
		p.offset = n
	}
	return p, nil
}

// MessageResponse is an archived record with its decoded result.
type MessageResponse struct {
	storage.Record
	Result *iso8583.ParseResult `json:"result"`
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}

	q := r.URL.Query()
	pg, err := readPage(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := storage.QueryParams{
		MTI:       q.Get("mti"),
		Source:    q.Get("source"),
		ErrorCode: q.Get("error_code"),
		Success:   pg.success,
		Limit:     pg.limit,
		Offset:    pg.offset,
		OrderDesc: pg.desc,
	}

	records, err := s.archive.Query(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for i := range records {
		records[i].ResultJSON = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": records, "count": len(records)})
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	rec, err := s.archive.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}

	res, err := rec.Result()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rec.ResultJSON = ""
	writeJSON(w, http.StatusOK, MessageResponse{Record: *rec, Result: res})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}
	stats, err := s.archive.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// IssuerResponse is the result of an issuer lookup.
type IssuerResponse struct {
	MaskedPAN string               `json:"masked_pan"`
	LuhnValid bool                 `json:"luhn_valid"`
	Found     bool                 `json:"found"`
	Issuer    *storage.IssuerRange `json:"issuer,omitempty"`
}

func (s *Server) handleIssuer(w http.ResponseWriter, r *http.Request) {
	if s.issuers == nil {
		writeError(w, http.StatusServiceUnavailable, "issuer ranges not configured")
		return
	}

	pan := chi.URLParam(r, "pan")
	if len(pan) < 6 || len(pan) > 19 {
		writeError(w, http.StatusBadRequest, "pan must be 6-19 digits")
		return
	}
	for i := 0; i < len(pan); i++ {
		if pan[i] < '0' || pan[i] > '9' {
			writeError(w, http.StatusBadRequest, "pan must be 6-19 digits")
			return
		}
	}

	rng, ok, err := s.issuers.Lookup(r.Context(), pan)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := IssuerResponse{
		MaskedPAN: enrichment.MaskPAN(pan),
		LuhnValid: enrichment.LuhnValid(pan),
		Found:     ok,
	}
	if ok {
		resp.Issuer = &rng
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyticsMessages(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		writeError(w, http.StatusServiceUnavailable, "analytics not configured")
		return
	}

	q := r.URL.Query()
	pg, err := readPage(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := storage.CHQueryParams{
		MTI:       q.Get("mti"),
		Source:    q.Get("source"),
		Success:   pg.success,
		Limit:     pg.limit,
		Offset:    pg.offset,
		OrderDesc: pg.desc,
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 time")
			return
		}
		p.Since = t
	}

	records, err := s.analytics.Query(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for i := range records {
		records[i].ResultJSON = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": records, "count": len(records)})
}

func (s *Server) handleAnalyticsStats(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		writeError(w, http.StatusServiceUnavailable, "analytics not configured")
		return
	}
	stats, err := s.analytics.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
