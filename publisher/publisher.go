// Package publisher implements the Change Publisher (§4 C9): a
// fire-and-forget broadcast of persisted changes onto per-kind Kafka
// topics, grounded on the teacher's direct dependency on
// github.com/segmentio/kafka-go — otherwise unwired in the teacher's own
// zk/ sync path, which talks to L1 and to its embedded KV store only.
package publisher

import (
	"context"
	"encoding/json"

	"github.com/ledgerwatch/log/v3"
	"github.com/segmentio/kafka-go"

	"github.com/traitmeta/evmindexer/chainmodel"
)

// Kind names the row kinds §6's topic allow-list recognizes. A kind with
// no configured topic is simply never published.
type Kind string

const (
	KindBlock          Kind = "block"
	KindTransaction    Kind = "transaction"
	KindTokenTransfer  Kind = "token_transfer"
	KindAddressBalance Kind = "address_balance"
)

// Publisher owns one async kafka.Writer per configured topic. Async:true
// maps directly onto §4 C9's fire-and-forget requirement — a publish
// failure is logged, never propagated back to the caller that just
// committed the underlying row.
type Publisher struct {
	writers map[Kind]*kafka.Writer
	logger  log.Logger
}

// New builds a Publisher from a kind->topic map; kinds absent from topics
// are silently unpublished.
func New(brokers []string, topics map[string]string, logger log.Logger) *Publisher {
	writers := make(map[Kind]*kafka.Writer, len(topics))
	for kindName, topic := range topics {
		writers[Kind(kindName)] = &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
			Async:    true,
		}
	}
	return &Publisher{writers: writers, logger: logger}
}

// Close flushes and closes every writer. Called once at shutdown.
func (p *Publisher) Close() {
	for _, w := range p.writers {
		if err := w.Close(); err != nil {
			p.logger.Warn("closing kafka writer", "err", err)
		}
	}
}

// Publish fire-and-forgets value under key onto kind's topic, if one is
// configured. The caller's commit has already succeeded by the time this
// is called — §4 C9 never gates persistence on publish success.
func (p *Publisher) Publish(ctx context.Context, kind Kind, key chainmodel.Hash, value interface{}) {
	w, ok := p.writers[kind]
	if !ok {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		p.logger.Error("marshaling change event", "kind", kind, "err", err)
		return
	}
	if err := w.WriteMessages(ctx, kafka.Message{Key: key[:], Value: payload}); err != nil {
		p.logger.Warn("publishing change event", "kind", kind, "key", key, "err", err)
	}
}
