package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/OCAP2/roverwatch/pkg/core"
	"github.com/OCAP2/roverwatch/pkg/streaming"
)

// ErrUnsealed is returned when streaming a dataset that was never sealed.
var ErrUnsealed = errors.New("dataset is not sealed")

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams collection runs over WebSocket to an ingest server.
// It implements storage.Backend but not storage.Reader.
type Backend struct {
	stream *stream
	cfg    Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		stream: newStream(logger),
		cfg:    cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	return b.stream.open(ctx, b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.stream.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope writes one Envelope without waiting for an ack.
func (b *Backend) sendEnvelope(ctx context.Context, msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.stream.write(ctx, data)
}

// sendEnvelopeAndWait marshals the payload and waits for a server ack.
func (b *Backend) sendEnvelopeAndWait(ctx context.Context, msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.stream.request(ctx, data, msgType, ackTimeout)
}

// SaveDataset streams a sealed run: start_run (acked), one message per
// record in export order, then end_run (acked).
func (b *Backend) SaveDataset(ctx context.Context, d *core.Dataset) error {
	if d == nil || !d.Sealed() {
		return ErrUnsealed
	}

	start, err := marshalEnvelope(streaming.TypeStartRun, streaming.StartRunPayload{
		RunID:      d.RunID,
		MissionURL: d.MissionURL,
		StartedAt:  d.StartedAt,
	})
	if err != nil {
		return err
	}

	b.stream.beginRun(start)
	defer b.stream.endRun()

	if err := b.stream.request(ctx, start, streaming.TypeStartRun, ackTimeout); err != nil {
		return err
	}

	records := d.Records()
	for _, r := range records {
		msgType := streaming.TypeWaypoint
		if r.Kind == core.KindSummary {
			msgType = streaming.TypeSummary
		}
		err := b.sendEnvelope(ctx, msgType, streaming.RecordPayload{RunID: d.RunID, Key: r.Key, Fields: r.Fields})
		if err != nil {
			return fmt.Errorf("send %s %d: %w", msgType, r.Key, err)
		}
	}

	return b.sendEnvelopeAndWait(ctx, streaming.TypeEndRun, streaming.EndRunPayload{
		RunID:      d.RunID,
		FinishedAt: d.FinishedAt,
		Records:    len(records),
	})
}
