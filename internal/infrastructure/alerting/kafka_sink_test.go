package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/pkg/constants"
	"github.com/perimetra/sentinel/pkg/logger"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testEvent() models.SecurityEvent {
	return models.SecurityEvent{
		ID:          "evt_1700000000000_abcd",
		Timestamp:   time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		Type:        constants.EventBruteForceAttempt,
		Severity:    constants.SeverityCritical,
		Source:      "auth",
		Description: "repeated login failures",
	}
}

func TestKafkaSinkDispatch(t *testing.T) {
	fw := &fakeWriter{}
	sink := &KafkaSink{writer: fw, logger: logger.NewNopLogger()}

	event := testEvent()
	require.NoError(t, sink.Dispatch(context.Background(), event))

	require.Len(t, fw.messages, 1)
	assert.Equal(t, []byte(constants.EventBruteForceAttempt), fw.messages[0].Key)

	var got models.SecurityEvent
	require.NoError(t, json.Unmarshal(fw.messages[0].Value, &got))
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, event.Severity, got.Severity)
}

func TestKafkaSinkDispatchWriteError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker unavailable")}
	sink := &KafkaSink{writer: fw, logger: logger.NewNopLogger()}

	err := sink.Dispatch(context.Background(), testEvent())
	assert.Error(t, err)
}

func TestKafkaSinkClose(t *testing.T) {
	fw := &fakeWriter{}
	sink := &KafkaSink{writer: fw, logger: logger.NewNopLogger()}

	require.NoError(t, sink.Close())
	assert.True(t, fw.closed)
}
