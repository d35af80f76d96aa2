package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/reservoir-volume-etl/internal/config"
	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

const annualKey = "annual"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes synthesis reports to a Kafka topic.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured report topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaReportTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishReport writes one message per synthesis row, keyed by station id,
// followed by one message carrying the annual totals, in a single
// WriteMessages call.
func (w *Writer) PublishReport(ctx context.Context, report domain.Report, annual domain.AnnualPivot) error {
	msgs := make([]kafkago.Message, 0, len(report.Rows)+1)
	for i := range report.Rows {
		msg, err := serializeRow(report.ReferenceDate, report.Rows[i])
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	msg, err := serializeAnnual(report.ReferenceDate, annual)
	if err != nil {
		return err
	}
	msgs = append(msgs, msg)

	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	w.logger.Info("report published", "reference_date", report.ReferenceDate.Format("2006-01"), "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeRow marshals a SynthesisRow into a Kafka message.
func serializeRow(refDate time.Time, row domain.SynthesisRow) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize synthesis row %s: %w", row.StationID, err)
	}
	return kafkago.Message{
		Key:   []byte(row.StationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "reference_date", Value: []byte(refDate.Format("2006-01"))},
			{Key: "status", Value: []byte(row.Status)},
		},
	}, nil
}

func serializeAnnual(refDate time.Time, p domain.AnnualPivot) (kafkago.Message, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize annual totals: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(annualKey),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "reference_date", Value: []byte(refDate.Format("2006-01"))},
		},
	}, nil
}
