package infra

import (
	"context"
	"encoding/json"
	"log"

	"pixel-mural/mural/domain"

	"github.com/redis/go-redis/v9"
)

// RedisFanout publica updates num canal pub/sub compartilhado por todos os
// processos cooperantes. O processo que origina a escrita também assina o
// canal, então o caminho de entrega é um só, local ou remoto.
type RedisFanout struct {
	rdb     *redis.Client
	channel string
	buffer  int
}

type RedisFanoutOption func(*RedisFanout)

func WithFanoutChannel(name string) RedisFanoutOption {
	return func(f *RedisFanout) { f.channel = name }
}

func WithRedisFanoutBuffer(n int) RedisFanoutOption {
	return func(f *RedisFanout) { f.buffer = n }
}

func NewRedisFanout(rdb *redis.Client, opts ...RedisFanoutOption) *RedisFanout {
	f := &RedisFanout{
		rdb:     rdb,
		channel: "mural:updates",
		buffer:  256,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *RedisFanout) Publish(ctx context.Context, u domain.Update) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, f.channel, raw).Err()
}

func (f *RedisFanout) Subscribe(ctx context.Context) (<-chan domain.Update, error) {
	pubsub := f.rdb.Subscribe(ctx, f.channel)
	// força o SUBSCRIBE antes de prometer o canal ao chamador
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan domain.Update, f.buffer)
	msgs := pubsub.Channel()

	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var u domain.Update
				if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
					log.Printf("fanout: malformed update payload: %v", err)
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
