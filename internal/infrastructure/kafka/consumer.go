package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adnancrnovrsanin/seatsync/internal/domain"
	"github.com/adnancrnovrsanin/seatsync/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// Store is the slice of persistence the consumer needs: a snapshot read
// and the fenced reservation.
type Store interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	ReserveAndInsertOnce(ctx context.Context, messageID string, tickets []domain.Ticket) (reserved bool, duplicate bool, err error)
}

type Config struct {
	Brokers     []string
	GroupID     string
	Topic       string
	DLQTopic    string
	PollBackoff time.Duration
}

// Consumer is the purchase-requests pipeline: fetch a record, parse it,
// decide, reserve, and either commit the offset or dead-letter the raw
// payload first. Offsets are committed manually and only after the
// record's effect is durable or the record has been redirected to the
// DLQ.
type Consumer struct {
	reader      *kafkago.Reader
	dlq         *kafkago.Writer
	store       Store
	pollBackoff time.Duration
}

func NewConsumer(cfg Config, store Store) *Consumer {
	backoff := cfg.PollBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Consumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       cfg.Topic,
			StartOffset: kafkago.FirstOffset,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     500 * time.Millisecond,
		}),
		dlq: &kafkago.Writer{
			Addr:     kafkago.TCP(cfg.Brokers...),
			Topic:    cfg.DLQTopic,
			Balancer: &kafkago.LeastBytes{},
		},
		store:       store,
		pollBackoff: backoff,
	}
}

// Start runs the poll loop until ctx is cancelled, then releases the
// consumer handle.
func (c *Consumer) Start(ctx context.Context) {
	log := logger.Logger.With().Str("component", "kafka_consumer").Logger()

	go func() {
		defer func() {
			_ = c.reader.Close()
			_ = c.dlq.Close()
			log.Info().Msg("consumer stopped")
		}()

		log.Info().Str("topic", c.reader.Config().Topic).Msg("consumer started")

		for {
			if ctx.Err() != nil {
				return
			}

			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// Transient broker trouble: back off and poll again.
				log.Warn().Err(err).Msg("fetch failed; backing off")
				if !sleep(ctx, c.pollBackoff) {
					return
				}
				continue
			}

			c.handleMessage(ctx, msg)
		}
	}()
}

// handleMessage drives one record to a terminal state. Storage errors
// are retried in place so a record is never silently dropped; every
// other path ends in a dead-letter publish or a successful reservation,
// followed by the offset commit.
func (c *Consumer) handleMessage(ctx context.Context, msg kafkago.Message) {
	log := logger.Logger.With().
		Str("component", "kafka_consumer").
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Logger()

	messageID := fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)

	for {
		disp, err := decide(ctx, c.store, msg.Value, messageID, time.Now())
		if err == nil {
			switch disp {
			case dispositionReserved:
				log.Info().Msg("purchase applied")
			case dispositionDuplicate:
				log.Info().Msg("duplicate delivery ignored")
			case dispositionDeadLetter:
				if !c.deadLetter(ctx, msg, log) {
					return // ctx cancelled mid-publish; offset stays uncommitted
				}
			}
			break
		}

		// Transient storage failure: retry the same record.
		log.Warn().Err(err).Msg("processing failed; retrying record")
		if !sleep(ctx, c.pollBackoff) {
			return
		}
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		// At-least-once: the effect is durable, the commit is not. The
		// record will be redelivered and the fence will absorb it.
		log.Warn().Err(err).Msg("offset commit failed")
	}
}

// deadLetter publishes the original payload unmodified, keyed the same
// as the input record. Returns false only when ctx is cancelled.
func (c *Consumer) deadLetter(ctx context.Context, msg kafkago.Message, log zerolog.Logger) bool {
	for {
		err := c.dlq.WriteMessages(ctx, kafkago.Message{Key: msg.Key, Value: msg.Value})
		if err == nil {
			log.Info().Msg("dead-lettered")
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		log.Warn().Err(err).Msg("dlq publish failed; retrying")
		if !sleep(ctx, c.pollBackoff) {
			return false
		}
	}
}

type disposition int

const (
	dispositionReserved disposition = iota
	dispositionDuplicate
	dispositionDeadLetter
)

// decide runs parse -> lookup -> purchase -> fenced reservation for one
// payload. A returned error is transient and means "retry this record";
// every other outcome is terminal.
func decide(ctx context.Context, store Store, payload []byte, messageID string, now time.Time) (disposition, error) {
	req, err := parsePurchase(payload)
	if err != nil {
		// Malformed input is terminal for the message; the engine never
		// sees it.
		return dispositionDeadLetter, nil
	}

	event, err := store.GetEvent(ctx, req.EventID)
	if err != nil {
		return 0, err
	}

	tickets, err := domain.Purchase(event, domain.PurchaseRequest{
		UserID:   req.UserID,
		EventID:  req.EventID,
		Quantity: req.Quantity,
	}, now)
	if err != nil {
		// Domain rejection: expected, not a failure.
		return dispositionDeadLetter, nil
	}

	reserved, duplicate, err := store.ReserveAndInsertOnce(ctx, messageID, tickets)
	switch {
	case errors.Is(err, domain.ErrCapacityConflict):
		return dispositionDeadLetter, nil
	case err != nil:
		return 0, err
	case duplicate:
		return dispositionDuplicate, nil
	case reserved:
		return dispositionReserved, nil
	default:
		return dispositionDeadLetter, nil
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
