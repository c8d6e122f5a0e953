package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"iso8583_parser/internal/enrichment"
	"iso8583_parser/internal/iso8583"
	"iso8583_parser/internal/registry"
	"iso8583_parser/internal/storage"
)

// DecodeRequest is the JSON form of a decode request. A body that is not a
// JSON object is taken as raw hex.
type DecodeRequest struct {
	Hex     string `json:"hex"`
	Profile string `json:"profile,omitempty"`
	Source  string `json:"source,omitempty"`
}

// readDecodeRequest accepts either raw hex or a DecodeRequest. The profile
// query parameter applies when the body names none.
func readDecodeRequest(w http.ResponseWriter, r *http.Request) (DecodeRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return DecodeRequest{}, fmt.Errorf("read body: %w", err)
	}

	var req DecodeRequest
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(body, &req); err != nil {
			return req, fmt.Errorf("invalid JSON: %w", err)
		}
	} else {
		req.Hex = trimmed
	}

	if req.Profile == "" {
		req.Profile = r.URL.Query().Get("profile")
	}
	if req.Source == "" {
		req.Source = "api"
	}
	return req, nil
}

// decode runs the request against its profile and sets req.Profile to the
// registered name. It writes the error response itself and returns nil when
// the request cannot be served.
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*DecodeRequest, *iso8583.ParseResult) {
	req, err := readDecodeRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, nil
	}

	profile, err := s.profiles.Lookup(req.Profile)
	if errors.Is(err, registry.ErrProfileNotFound) {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, nil
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, nil
	}
	req.Profile = profile.Name

	dec, err := s.profiles.Decoder(profile.Name, s.charset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, nil
	}

	return &req, dec.Decode(req.Hex)
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	req, res := s.decode(w, r)
	if res == nil {
		return
	}

	if s.archive != nil && s.archiveDecodes {
		s.store(w, req, res)
	}

	// Unsuccessful decodes are still results, not request failures.
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) store(w http.ResponseWriter, req *DecodeRequest, res *iso8583.ParseResult) {
	rec, err := storage.NewRecord(req.Source, req.Profile, time.Now(), res)
	if err != nil {
		s.log.WithError(err).Warn("build archive record")
		return
	}
	id, err := s.archive.Insert(rec)
	if err != nil {
		s.log.WithError(err).Warn("archive decode")
		return
	}
	w.Header().Set("X-Record-ID", fmt.Sprint(id))
	s.log.WithFields(logrus.Fields{"id": id, "mti": rec.MTI, "success": rec.Success}).Debug("archived decode")
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	_, res := s.decode(w, r)
	if res == nil {
		return
	}

	var b strings.Builder
	_ = iso8583.WriteReport(&b, res)
	_ = enrichment.WriteNotes(&b, enrichment.Annotate(r.Context(), res, s.issuers))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, b.String())
}
