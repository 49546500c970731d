package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"parley/internal/infra/bus"
)

// Producer writes bus event envelopes to a Kafka topic, keyed by channel so
// every event for one conversation or inbox lands in the same partition.
type Producer struct {
	sync sarama.SyncProducer
}

func NewProducer(brokers []string, cfg *sarama.Config) (*Producer, error) {
	sync, err := sarama.NewSyncProducer(brokers, producerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}
	return &Producer{sync: sync}, nil
}

// producerConfig shapes cfg for exactly-once production. The idempotent
// producer requires acks from all replicas and a single in-flight request;
// sarama rejects the config before dialing otherwise.
func producerConfig(cfg *sarama.Config) *sarama.Config {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// Produce marshals the envelope and sends it to topic, carrying the event
// name as a record header so consumers can filter without decoding.
func (p *Producer) Produce(topic string, ev bus.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, _, err = p.sync.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(ev.Channel),
		Value: sarama.ByteEncoder(raw),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(ev.Event)},
		},
	})
	return err
}

func (p *Producer) Close() error {
	if p.sync == nil {
		return nil
	}
	return p.sync.Close()
}
