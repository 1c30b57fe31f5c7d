package notifier

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	redislib "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// Sink delivers one payload to one transport.
type Sink interface {
	Name() string
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisSink publishes on the Redis pub/sub channel itself.
type RedisSink struct {
	client redislib.UniversalClient
}

func NewRedisSink(client redislib.UniversalClient) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Publish(ctx context.Context, channel string, payload []byte) error {
	return s.client.Publish(ctx, channel, payload).Err()
}

// Writer is the part of *kafka.Writer the sink uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes events to one topic keyed by channel, so a module's events stay ordered.
type KafkaSink struct {
	writer Writer
}

// kafkaBatchTimeout bounds how long a synchronous write waits for a batch to fill. Each mutation
// publishes a single event and waits for it.
const kafkaBatchTimeout = 5 * time.Millisecond

// NewKafkaWriter builds the production writer for brokers and topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           kafkaBatchTimeout,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaSink(w Writer) *KafkaSink {
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Publish(ctx context.Context, channel string, payload []byte) error {
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(channel),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "channel", Value: []byte(channel)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
}

func (s *KafkaSink) Close() error { return s.writer.Close() }

// SNSPublisher is the part of *sns.Client the sink uses.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSink fans events out through an SNS topic; subscribers filter on the channel attribute.
type SNSSink struct {
	client   SNSPublisher
	topicARN string
}

func NewSNSSink(client SNSPublisher, topicARN string) *SNSSink {
	return &SNSSink{client: client, topicARN: topicARN}
}

func (s *SNSSink) Name() string { return "sns" }

func (s *SNSSink) Publish(ctx context.Context, channel string, payload []byte) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"channel":      {DataType: aws.String("String"), StringValue: aws.String(channel)},
			"content-type": {DataType: aws.String("String"), StringValue: aws.String("application/json")},
		},
	})
	return err
}
