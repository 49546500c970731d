package kafka

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"parley/internal/infra/bus"
)

// sarama validates the producer config before dialing any broker; an
// idempotent producer with more than one in-flight request is rejected
// outright, which would make NewProducer fail on every startup.
func TestProducerConfigPassesValidation(t *testing.T) {
	cfg := producerConfig(nil)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default producer config rejected: %v", err)
	}
	if cfg.Net.MaxOpenRequests != 1 {
		t.Fatalf("Net.MaxOpenRequests = %d, want 1 for idempotent production", cfg.Net.MaxOpenRequests)
	}
	if !cfg.Producer.Idempotent || cfg.Producer.RequiredAcks != sarama.WaitForAll || !cfg.Producer.Return.Successes {
		t.Fatalf("producer settings = idempotent=%v acks=%v successes=%v",
			cfg.Producer.Idempotent, cfg.Producer.RequiredAcks, cfg.Producer.Return.Successes)
	}

	// A caller-supplied config gets the same invariants applied.
	custom := sarama.NewConfig()
	custom.Net.MaxOpenRequests = 5
	shaped := producerConfig(custom)
	if err := shaped.Validate(); err != nil {
		t.Fatalf("shaped caller config rejected: %v", err)
	}
	if shaped.Net.MaxOpenRequests != 1 {
		t.Fatalf("caller's MaxOpenRequests not overridden: %d", shaped.Net.MaxOpenRequests)
	}
}

func TestProduceSendsEnvelopeKeyedByChannel(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(raw []byte) error {
		var ev bus.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return err
		}
		if ev.Channel != "conversation:c1" || ev.Event != "new" {
			t.Errorf("envelope = %+v", ev)
		}
		return nil
	})
	producer := &Producer{sync: mock}

	ev, err := bus.Envelope("conversation:c1", "new", map[string]string{"id": "m1"})
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if err := producer.Produce("chat-events", ev); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if err := mock.Close(); err != nil {
		t.Fatalf("unmet producer expectations: %v", err)
	}
}
