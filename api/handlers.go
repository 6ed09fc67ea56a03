package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"rentscout/fetcher"
	"rentscout/models"
	"rentscout/search"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	searcher Searcher
	lister   Lister
	history  History
	watch    PauseReporter
	logger   *logrus.Logger
}

type searchResponse struct {
	Properties []models.RawRecord `json:"properties"`
	Count      int                `json:"count"`
	Stage      search.Stage       `json:"stage"`
}

type listingsResponse struct {
	Properties []models.RawRecord `json:"properties"`
	TotalCount int                `json:"totalCount"`
	TotalPages int                `json:"totalPages"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]string{"status": "ok"}
	if h.watch != nil {
		body["watch"] = "running"
		if h.watch.IsPaused() {
			body["watch"] = "paused"
		}
	}
	respondJSON(w, http.StatusOK, body)
}

func (h *handlers) showAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.searcher.ShowAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toResponse(res))
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	var c models.FilterCriteria
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid filter criteria: "+err.Error())
		return
	}

	res, err := h.searcher.Run(r.Context(), c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toResponse(res))
}

func (h *handlers) listings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := fetcher.ListQuery{
		Search:       q.Get("search"),
		Bedrooms:     q.Get("bedrooms"),
		PropertyType: q.Get("propertyType"),
	}

	var err error
	if query.MinPrice, err = floatParam(q.Get("minPrice")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid minPrice")
		return
	}
	if query.MaxPrice, err = floatParam(q.Get("maxPrice")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid maxPrice")
		return
	}
	if query.Page, err = intParam(q.Get("page")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	if query.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	res, err := h.lister.ListAll(r.Context(), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	props := res.Records
	if props == nil {
		props = []models.RawRecord{}
	}
	respondJSON(w, http.StatusOK, listingsResponse{Properties: props, TotalCount: res.TotalCount, TotalPages: res.TotalPages})
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WithError(err).WithField("path", r.URL.Path).Error("Upstream request failed")
	writeError(w, http.StatusBadGateway, search.ErrorMessage(err))
}

func toResponse(res search.Result) searchResponse {
	return searchResponse{
		Properties: models.Records(res.Records),
		Count:      len(res.Records),
		Stage:      res.Stage,
	}
}

func floatParam(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
