package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/crisisfeed/internal/model"
)

type recordingWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var now = time.Date(2025, 8, 2, 12, 0, 0, 0, time.UTC)

func newTestPublisher(w MessageWriter) *Publisher {
	return NewPublisher(w, clockwork.NewFakeClockAt(now), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := newTestPublisher(w)
	dctx := model.DisasterContext{Tags: []string{"flood"}, LocationName: "Houston, TX"}
	records := []model.Update{{Title: "Flood warning", Source: "National Weather Service"}}

	require.NoError(t, p.Publish(context.Background(), "updates", dctx, records, len(records), true))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, []byte(dctx.Fingerprint()), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "service", msg.Headers[0].Key)
	assert.Equal(t, []byte("updates"), msg.Headers[0].Value)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "updates", body["service"])
	assert.Equal(t, true, body["fromCache"])
	assert.Len(t, body["records"], 1)
}

func TestPublisher_SkipsEmpty(t *testing.T) {
	w := &recordingWriter{}
	p := newTestPublisher(w)

	require.NoError(t, p.Publish(context.Background(), "posts", model.DisasterContext{}, []model.Post{}, 0, false))
	assert.Empty(t, w.msgs)
}

func TestPublisher_WriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := newTestPublisher(w)

	err := p.Publish(context.Background(), "posts", model.DisasterContext{}, []model.Post{{ID: "1"}}, 1, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestPublisher_Close(t *testing.T) {
	w := &recordingWriter{}
	require.NoError(t, newTestPublisher(w).Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher_RequiresTopic(t *testing.T) {
	_, err := NewKafkaPublisher(model.KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	assert.Error(t, err)
}
