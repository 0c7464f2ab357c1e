package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/models"
)

const maxBody = 1 << 20

type shopRequest struct {
	Query  string   `json:"query" validate:"required"`
	Size   string   `json:"size"`
	Brands []string `json:"brands" validate:"required,min=1,dive,required"`
	// Cap is in dollars; omitted means the configured default.
	Cap      *float64 `json:"cap" validate:"omitempty,gte=0"`
	Limit    int      `json:"limit" validate:"gte=0,lte=40"`
	MaxPrice float64  `json:"maxPrice" validate:"gte=0"`
	Save     bool     `json:"save"`
}

func (h *handler) shop(w http.ResponseWriter, r *http.Request) {
	const op = "api.shop"
	log := h.log.With(slog.String("op", op), slog.String("request_id", middleware.GetReqID(r.Context())))

	var req shopRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "failed to decode request")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		invalid(w, r, err)
		return
	}

	brandIDs := make([]models.BrandID, 0, len(req.Brands))
	for _, b := range req.Brands {
		id, err := models.ParseBrand(b)
		if err != nil {
			fail(w, r, http.StatusBadRequest, err.Error())
			return
		}
		brandIDs = append(brandIDs, id)
	}
	budgetCap := h.opts.DefaultCap
	if req.Cap != nil {
		budgetCap = models.FromDollars(*req.Cap)
	}
	sreq, err := models.NewScrapeRequest(req.Query, req.Size, brandIDs, budgetCap, req.Limit, models.FromDollars(req.MaxPrice))
	if err != nil {
		fail(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if h.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.RunTimeout)
		defer cancel()
	}

	res, err := h.runner.Run(ctx, sreq, req.Save && h.store != nil)
	switch {
	case err == nil:
	case res != nil:
		log.Warn("run interrupted, returning partial result", logging.Err(err))
		render.JSON(w, r, models.NewPartialShopResponse(res, err))
		return
	case errors.Is(err, models.ErrProviderUnavailable):
		log.Error("run failed", logging.Err(err))
		fail(w, r, http.StatusServiceUnavailable, "browser provider unavailable")
		return
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("run timed out", logging.Err(err))
		fail(w, r, http.StatusGatewayTimeout, "run timed out")
		return
	default:
		log.Error("run failed", logging.Err(err))
		fail(w, r, http.StatusInternalServerError, "run failed")
		return
	}

	render.JSON(w, r, models.NewShopResponse(res))
}

type saveRequest struct {
	Items []models.Record `json:"items" validate:"required,min=1,dive"`
}

type saveResponse struct {
	Results []models.WriteResult `json:"results"`
	Upserts int                  `json:"upserts"`
}

func (h *handler) save(w http.ResponseWriter, r *http.Request) {
	const op = "api.save"
	if h.store == nil {
		fail(w, r, http.StatusServiceUnavailable, "no record store configured")
		return
	}

	var req saveRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "failed to decode request")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		invalid(w, r, err)
		return
	}

	results, err := h.store.Write(r.Context(), req.Items)
	if err != nil {
		h.log.Error("save failed", slog.String("op", op), logging.Err(err))
		fail(w, r, http.StatusBadGateway, "record store failed")
		return
	}
	resp := saveResponse{Results: results}
	for _, res := range results {
		if res.Action == models.ActionCreated || res.Action == models.ActionUpdated {
			resp.Upserts++
		}
	}
	render.JSON(w, r, resp)
}

func (h *handler) budget(w http.ResponseWriter, r *http.Request) {
	const op = "api.budget"
	if h.store == nil {
		fail(w, r, http.StatusServiceUnavailable, "no record store configured")
		return
	}

	month := r.URL.Query().Get("month")
	if month == "" {
		month = models.MonthKey(h.now())
	} else if _, err := time.Parse(time.DateOnly, month); err != nil {
		fail(w, r, http.StatusBadRequest, "month must be YYYY-MM-DD")
		return
	}

	budgetCap := h.opts.DefaultCap
	if raw := r.URL.Query().Get("cap"); raw != "" {
		dollars, err := strconv.ParseFloat(raw, 64)
		if err != nil || dollars < 0 {
			fail(w, r, http.StatusBadRequest, "cap must be a non-negative number")
			return
		}
		budgetCap = models.FromDollars(dollars)
	}

	sum, err := h.store.Summary(r.Context(), month, budgetCap)
	if err != nil {
		h.log.Error("summary failed", slog.String("op", op), logging.Err(err))
		fail(w, r, http.StatusBadGateway, "record store failed")
		return
	}
	render.JSON(w, r, sum)
}
