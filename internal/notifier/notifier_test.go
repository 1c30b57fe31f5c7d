package notifier

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/internal/infrastructure/outbox"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

type fakeSNS struct {
	inputs []*sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

func testEvent() domain.ChangeEvent {
	return domain.ChangeEvent{
		TenantID:   "T1",
		Module:     domain.ModuleFeatureFlags,
		Action:     domain.ActionToggle,
		Version:    3,
		OccurredAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPublishFansOut(t *testing.T) {
	kw := &fakeWriter{}
	sn := &fakeSNS{}
	n := New([]Sink{NewKafkaSink(kw), NewSNSSink(sn, "arn:aws:sns:us-east-1:000:settings")}, nil, time.Second, nil)

	n.Publish(context.Background(), testEvent())

	require.Len(t, kw.msgs, 1)
	assert.Equal(t, "settings:featureFlags", string(kw.msgs[0].Key))

	var got domain.ChangeEvent
	require.NoError(t, json.Unmarshal(kw.msgs[0].Value, &got))
	assert.Equal(t, testEvent(), got)

	require.Len(t, sn.inputs, 1)
	assert.Equal(t, "arn:aws:sns:us-east-1:000:settings", aws.ToString(sn.inputs[0].TopicArn))
	assert.Equal(t, "settings:featureFlags", aws.ToString(sn.inputs[0].MessageAttributes["channel"].StringValue))
}

func TestFailedDeliveryGoesToOutbox(t *testing.T) {
	box, err := outbox.Open(filepath.Join(t.TempDir(), "outbox.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = box.Close() })

	ok := &fakeWriter{}
	broken := &fakeWriter{err: errors.New("broker unavailable")}
	n := New([]Sink{NewKafkaSink(ok), NewKafkaSink(broken)}, box, time.Second, nil)

	n.Publish(context.Background(), testEvent())

	assert.Len(t, ok.msgs, 1)
	items, err := box.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "settings:featureFlags", items[0].Channel)
}

func TestDeliverAggregatesErrors(t *testing.T) {
	n := New([]Sink{
		NewKafkaSink(&fakeWriter{err: errors.New("a")}),
		NewKafkaSink(&fakeWriter{err: errors.New("b")}),
	}, nil, time.Second, nil)

	err := n.Deliver(context.Background(), "settings:role", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
}

func TestKafkaWriterFlushesSingleEvents(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "settings-changes")
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, kafkaBatchTimeout, w.BatchTimeout)
	assert.LessOrEqual(t, w.BatchTimeout, 10*time.Millisecond)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
}

func TestNilNotifierIsNoop(t *testing.T) {
	var n *Notifier
	n.Publish(context.Background(), testEvent())
}
