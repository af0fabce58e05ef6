package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	last []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.last = append([]kafka.Message{}, msgs...)
	return w.err
}

func TestProducer_Publish(t *testing.T) {
	fw := &fakeWriter{}
	p := newProducerWithWriter(fw)

	require.NoError(t, p.Publish(context.Background(), "inventory.item_sold", []byte("AN-1"), []byte(`{"item_id":"AN-1"}`)))
	require.Len(t, fw.last, 1)
	require.Equal(t, "inventory.item_sold", fw.last[0].Topic)
	require.Equal(t, []byte("AN-1"), fw.last[0].Key)
	require.Equal(t, []byte(`{"item_id":"AN-1"}`), fw.last[0].Value)
	require.NoError(t, p.Close())
}

func TestProducer_PublishError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	p := newProducerWithWriter(fw)

	err := p.Publish(context.Background(), "t", nil, []byte("v"))
	require.ErrorContains(t, err, "kafka publish")
	require.ErrorContains(t, err, "broker down")
}

func TestNewProducer(t *testing.T) {
	p := NewProducer([]string{"localhost:0"})
	require.NotNil(t, p)
	require.NoError(t, p.Close())
}
