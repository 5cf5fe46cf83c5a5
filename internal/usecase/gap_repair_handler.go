package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
	domrepo "github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/repository"
	pkgkafka "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/kafka"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/logger"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/util"
)

// GapRepairHandler consumes on-demand repair requests and backfills the
// requested window. Requests for unregistered symbols are dropped, not
// retried.
type GapRepairHandler struct {
	topic   string
	updater *Updater
	store   domrepo.BarStore
	metrics domrepo.Metrics
	l       *logger.Logger
}

func NewGapRepairHandler(topic string, updater *Updater, store domrepo.BarStore, metrics domrepo.Metrics, l *logger.Logger) *GapRepairHandler {
	return &GapRepairHandler{topic: topic, updater: updater, store: store, metrics: metrics, l: l}
}

func (h *GapRepairHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, from, to} with RFC3339 bounds
func (h *GapRepairHandler) Handle(ctx context.Context, b []byte) error {
	var m models.GapRepairRequest
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("repair_unmarshal")
		return err
	}
	from, err := time.Parse(time.RFC3339, m.From)
	if err != nil {
		h.metrics.RecordError("repair_bounds")
		return fmt.Errorf("parse from: %w", err)
	}
	to, err := time.Parse(time.RFC3339, m.To)
	if err != nil {
		h.metrics.RecordError("repair_bounds")
		return fmt.Errorf("parse to: %w", err)
	}
	// bounds may carry seconds; the store only knows whole minutes
	r := models.NewTimeRange(util.MinuteFloor(from), util.MinuteCeil(to))
	if r.IsEmpty() {
		h.metrics.RecordError("repair_bounds")
		return fmt.Errorf("empty repair window %s", r)
	}

	known, err := h.knownSymbol(ctx, m.Symbol)
	if err != nil {
		return err
	}
	if !known {
		h.l.Warn("repair request for unknown symbol", logger.String("symbol", m.Symbol))
		h.metrics.RecordError("repair_unknown_symbol")
		return nil
	}

	// Repair windows have no age cutoff: the request is explicit.
	found, filled, skipped, stored, err := h.updater.FillGaps(ctx, m.Symbol, r, 0)
	if err != nil {
		h.metrics.RecordError("repair_fill")
		return fmt.Errorf("repair %s %s: %w", m.Symbol, r, err)
	}
	h.metrics.RecordGaps(m.Symbol, found, filled, skipped)
	h.l.Info("gap repair done",
		logger.String("symbol", m.Symbol),
		logger.Int("gaps_found", found),
		logger.Int("gaps_filled", filled),
		logger.Int("gaps_skipped", skipped),
		logger.Int("bars_stored", stored))
	return nil
}

func (h *GapRepairHandler) knownSymbol(ctx context.Context, symbol string) (bool, error) {
	syms, err := h.store.Symbols(ctx)
	if err != nil {
		return false, err
	}
	for _, s := range syms {
		if s.Name == symbol {
			return true, nil
		}
	}
	return false, nil
}

var _ pkgkafka.MessageHandler = (*GapRepairHandler)(nil)
