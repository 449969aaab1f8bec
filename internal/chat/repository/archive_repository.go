package repository

import (
	"context"
	"encoding/json"

	"campus_chat_service/pkg/wire"

	"github.com/segmentio/kafka-go"
)

// ArchiveWriter side feed of accepted messages for the analytics service.
// Failures here never fail a send.
type ArchiveWriter interface {
	Archive(ctx context.Context, msg *wire.Message) error
}

type kafkaArchiveWriter struct {
	writer *kafka.Writer
}

// NewKafkaArchiveWriter create an ArchiveWriter publishing to the
// configured topic, keyed by room so per-room order is preserved
func NewKafkaArchiveWriter(writer *kafka.Writer) ArchiveWriter {
	return &kafkaArchiveWriter{writer: writer}
}

func (w *kafkaArchiveWriter) Archive(ctx context.Context, msg *wire.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Room),
		Value: data,
	})
}
