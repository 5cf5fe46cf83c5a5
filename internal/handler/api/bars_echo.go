package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	models "github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
	domrepo "github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/repository"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/service/calendar"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/service/gapscan"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/usecase"
	xhttp "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/http"
	xlogger "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/logger"
	xutil "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/util"
)

// BarsEchoHandler exposes the read side of the store: resampled
// candles, gap reports, coverage and the symbol registry.
type BarsEchoHandler struct {
	logger    *xlogger.Logger
	resampled *usecase.ResampledUseCase
	analyzer  *gapscan.Analyzer
	calendars *calendar.Provider
	store     domrepo.BarStore
}

func NewBarsEchoHandler(
	logger *xlogger.Logger,
	resampled *usecase.ResampledUseCase,
	analyzer *gapscan.Analyzer,
	calendars *calendar.Provider,
	store domrepo.BarStore,
) *BarsEchoHandler {
	return &BarsEchoHandler{
		logger:    logger,
		resampled: resampled,
		analyzer:  analyzer,
		calendars: calendars,
		store:     store,
	}
}

func (h *BarsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/candles", h.Candles)
	g.GET("/gaps", h.Gaps)
	g.GET("/coverage", h.Coverage)
	g.GET("/symbols", h.Symbols)
}

func (h *BarsEchoHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := parseBounds(req.From, req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	tf := domrepo.NormalizeTimeframe(req.TF)
	width, err := domrepo.Width(tf)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	// align bounds to bucket edges so overlapping queries share buckets
	// and cache entries
	from, to = xutil.AlignFromTo(from, to, width)

	res, err := h.resampled.GetResampled(c.Request().Context(), usecase.GetResampledParams{
		Symbol:    req.Symbol,
		From:      from,
		To:        to,
		Timeframe: tf,
		Limit:     req.Limit,
	})
	if err != nil {
		return h.domainError(c, "candles", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *BarsEchoHandler) Gaps(c echo.Context) error {
	req := &models.GapsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := parseBounds(req.From, req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	r := models.NewTimeRange(xutil.MinuteFloor(from), xutil.MinuteCeil(to))

	cal := h.calendars.ForSymbol(req.Symbol)
	gaps, err := h.analyzer.FindGaps(c.Request().Context(), req.Symbol, r, cal)
	if err != nil {
		return h.domainError(c, "gaps", err)
	}

	type gapView struct {
		From    time.Time `json:"from"`
		To      time.Time `json:"to"`
		Minutes int       `json:"minutes"`
	}
	views := make([]gapView, 0, len(gaps))
	for _, g := range gaps {
		views = append(views, gapView{From: g.Range.Start, To: g.Range.End, Minutes: g.Minutes()})
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbol": req.Symbol,
		"from":   r.Start,
		"to":     r.End,
		"count":  len(views),
		"gaps":   views,
	})
}

func (h *BarsEchoHandler) Coverage(c echo.Context) error {
	req := &models.CoverageRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := parseBounds(req.From, req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	r := models.NewTimeRange(xutil.MinuteFloor(from), xutil.MinuteCeil(to))

	cal := h.calendars.ForSymbol(req.Symbol)
	cov, err := h.analyzer.Coverage(c.Request().Context(), req.Symbol, r, cal)
	if err != nil {
		return h.domainError(c, "coverage", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbol":   req.Symbol,
		"from":     r.Start,
		"to":       r.End,
		"coverage": cov,
	})
}

func (h *BarsEchoHandler) Symbols(c echo.Context) error {
	syms, err := h.store.Symbols(c.Request().Context())
	if err != nil {
		return h.domainError(c, "symbols", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"count":   len(syms),
		"symbols": syms,
	})
}

func (h *BarsEchoHandler) domainError(c echo.Context, op string, err error) error {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return xhttp.BadRequestResponse(c, verr.Error())
	case errors.Is(err, models.ErrUnknownSymbol):
		return xhttp.NotFoundResponse(c, err.Error())
	default:
		h.logger.Error(op+" error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
}

// parseBounds accepts RFC3339 or unix-seconds bounds and returns them
// in UTC.
func parseBounds(from, to string) (time.Time, time.Time, error) {
	f, err := parseTime(from)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("from: " + err.Error())
	}
	t, err := parseTime(to)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("to: " + err.Error())
	}
	return f, t, nil
}

func parseTime(s string) (time.Time, error) {
	if t, ok := xutil.ParseTime(s); ok {
		return t, nil
	}
	return time.Time{}, errors.New("want RFC3339, YYYY-MM-DD or unix seconds")
}
