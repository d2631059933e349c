package sale

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the consuming side of a Kafka reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Recorder records one sale. *Ledger implements it.
type Recorder interface {
	RecordSale(ctx context.Context, seller Seller, menuItemID string, quantity float64) (*Receipt, error)
}

// SaleEvent is a sale pushed by a point-of-sale terminal.
type SaleEvent struct {
	EventID         string  `json:"event_id"`
	EstablishmentID string  `json:"establishment_id"`
	UserID          string  `json:"user_id"`
	MenuItemID      string  `json:"menu_item_id"`
	Quantity        float64 `json:"quantity"`
}

func (e SaleEvent) valid() bool {
	return e.EstablishmentID != "" && e.MenuItemID != "" && e.Quantity > 0
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
}

// Listener turns sale events into ledger entries.
type Listener struct {
	reader     MessageReader
	ledger     Recorder
	log        *zap.Logger
	retryDelay time.Duration
}

func NewListener(reader MessageReader, ledger Recorder, log *zap.Logger) *Listener {
	return &Listener{
		reader:     reader,
		ledger:     ledger,
		log:        log.Named("sale_listener"),
		retryDelay: time.Second,
	}
}

// Start consumes until ctx is cancelled. Malformed events are logged and skipped.
func (l *Listener) Start(ctx context.Context) {
	l.log.Info("sale listener started")
	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.log.Info("sale listener stopped")
				return
			}
			l.log.Error("read sale event", zap.Error(err))
			select {
			case <-ctx.Done():
				l.log.Info("sale listener stopped")
				return
			case <-time.After(l.retryDelay):
			}
			continue
		}
		l.handle(ctx, msg)
	}
}

func (l *Listener) handle(ctx context.Context, msg kafka.Message) {
	var ev SaleEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		l.log.Warn("skipping undecodable sale event",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}
	if !ev.valid() {
		l.log.Warn("skipping invalid sale event",
			zap.String("event_id", ev.EventID),
			zap.Int64("offset", msg.Offset),
		)
		return
	}

	receipt, err := l.ledger.RecordSale(ctx, Seller{EstablishmentID: ev.EstablishmentID, UserID: ev.UserID}, ev.MenuItemID, ev.Quantity)
	if err != nil {
		level := l.log.Error
		if errors.Is(err, ErrMenuItemNotFound) {
			level = l.log.Warn
		}
		level("sale event not recorded",
			zap.String("event_id", ev.EventID),
			zap.String("menu_item_id", ev.MenuItemID),
			zap.Error(err),
		)
		return
	}
	l.log.Debug("sale event recorded",
		zap.String("event_id", ev.EventID),
		zap.String("sale_id", receipt.Sale.ID),
	)
}

func (l *Listener) Close() error {
	return l.reader.Close()
}
