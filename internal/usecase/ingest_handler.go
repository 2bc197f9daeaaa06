package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"Pasture/internal/domain/models"
	drepo "Pasture/internal/domain/repository"
	pkgkafka "Pasture/pkg/kafka"
	"Pasture/pkg/logger"
	"Pasture/pkg/queue"
)

// PriceInvalidator drops cached price windows.
type PriceInvalidator interface {
	Invalidate(ctx context.Context) error
}

// IngestHandler turns upstream load notices into queued rebuild jobs.
type IngestHandler struct {
	topic   string
	queue   queue.QueueService
	prices  PriceInvalidator
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewIngestHandler(topic string, q queue.QueueService, prices PriceInvalidator, metrics drepo.Metrics, lgr *logger.Logger) *IngestHandler {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &IngestHandler{topic: topic, queue: q, prices: prices, metrics: metrics, log: lgr}
}

func (h *IngestHandler) Topic() string { return h.topic }

// incoming message schema: {source, account_id}
func (h *IngestHandler) Handle(ctx context.Context, b []byte) error {
	var n models.IngestNotice
	if err := json.Unmarshal(b, &n); err != nil {
		h.metrics.RecordError("ingest_unmarshal")
		return fmt.Errorf("decode ingest notice: %w", err)
	}

	var jobs []string
	switch n.Source {
	case "trades", "rates":
		jobs = []string{JobSettlement}
	case "orders":
		jobs = []string{JobHolding}
	case "prices":
		if h.prices != nil {
			if err := h.prices.Invalidate(ctx); err != nil {
				h.metrics.RecordError("ingest_invalidate")
				h.log.Warn("price cache invalidation failed", logger.Error(err))
			}
		}
		jobs = []string{JobHolding}
	default:
		h.log.Warn("unknown ingest source", logger.String("source", n.Source))
		return nil
	}

	payload := models.JobPayload{AccountID: n.AccountID}
	for _, job := range jobs {
		if err := h.queue.Enqueue(ctx, job, payload); err != nil {
			h.metrics.RecordError("ingest_enqueue")
			return fmt.Errorf("enqueue %s: %w", job, err)
		}
	}
	h.log.Debug("ingest notice handled",
		logger.String("source", n.Source),
		logger.String("account_id", n.AccountID),
		logger.Strings("jobs", jobs))
	return nil
}

var _ pkgkafka.MessageHandler = (*IngestHandler)(nil)
