package store

import (
	"context"
	"hash/fnv"

	"github.com/couchcryptid/frcm-service/internal/domain"
)

const lockShards = 256

// keyLocks is a fixed pool of channel mutexes indexed by fingerprint. Writers
// of different fingerprints rarely share a shard, and a waiter can give up when
// its context ends.
type keyLocks struct {
	shards [lockShards]chan struct{}
}

func newKeyLocks() *keyLocks {
	l := &keyLocks{}
	for i := range l.shards {
		l.shards[i] = make(chan struct{}, 1)
		l.shards[i] <- struct{}{}
	}
	return l
}

// lock acquires the shard for fp. The returned function releases it.
func (l *keyLocks) lock(ctx context.Context, fp domain.Fingerprint) (func(), error) {
	shard := l.shards[shardOf(fp)]
	select {
	case <-shard:
		return func() { shard <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func shardOf(fp domain.Fingerprint) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(fp[:])
	return h.Sum32() % lockShards
}
