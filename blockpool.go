package sggc

import (
	"github.com/gostdlib/base/concurrency/sync"
	"github.com/gostdlib/base/context"
	"github.com/gostdlib/base/values/sizes"
)

// blockPools hands out []byte buffers for segment data and aux blocks,
// size-classed the same way as this module's other byte-buffer pools, so
// that repeated big-object grow/free cycles don't thrash the host Go
// runtime's allocator. The collector itself never moves or shares these
// buffers across segments; pooling only recycles the backing array once a
// segment's data has been freed during sweep.
type blockPools struct {
	_64B  *sync.Pool[*[]byte]
	_256B *sync.Pool[*[]byte]
	_1K   *sync.Pool[*[]byte]
	_4K   *sync.Pool[*[]byte]
	_16K  *sync.Pool[*[]byte]
	_64K  *sync.Pool[*[]byte]
	_256K *sync.Pool[*[]byte]
	_1M   *sync.Pool[*[]byte]
}

func newBlockPools() *blockPools {
	ctx := context.Background()
	mk := func(name string, n int) *sync.Pool[*[]byte] {
		return sync.NewPool(ctx, name, func() *[]byte {
			b := make([]byte, n)
			return &b
		}, sync.WithBuffer(64))
	}
	return &blockPools{
		_64B:  mk("sggc_block_64B", 64),
		_256B: mk("sggc_block_256B", 256),
		_1K:   mk("sggc_block_1K", int(1*sizes.KiB)),
		_4K:   mk("sggc_block_4K", int(4*sizes.KiB)),
		_16K:  mk("sggc_block_16K", int(16*sizes.KiB)),
		_64K:  mk("sggc_block_64K", int(64*sizes.KiB)),
		_256K: mk("sggc_block_256K", int(256*sizes.KiB)),
		_1M:   mk("sggc_block_1M", int(1*sizes.MiB)),
	}
}

// get returns a zeroed []byte of at least n bytes.
func (p *blockPools) get(ctx context.Context, n int) []byte {
	var b []byte
	switch {
	case n <= 64:
		b = *p._64B.Get(ctx)
	case n <= 256:
		b = *p._256B.Get(ctx)
	case n <= int(1*sizes.KiB):
		b = *p._1K.Get(ctx)
	case n <= int(4*sizes.KiB):
		b = *p._4K.Get(ctx)
	case n <= int(16*sizes.KiB):
		b = *p._16K.Get(ctx)
	case n <= int(64*sizes.KiB):
		b = *p._64K.Get(ctx)
	case n <= int(256*sizes.KiB):
		b = *p._256K.Get(ctx)
	case n <= int(1*sizes.MiB):
		b = *p._1M.Get(ctx)
	default:
		return make([]byte, n)
	}
	if len(b) < n {
		return make([]byte, n)
	}
	clear(b)
	return b[:n]
}

// put returns b to the pool matching its capacity, if any.
func (p *blockPools) put(ctx context.Context, b []byte) {
	switch {
	case cap(b) == 64:
		p._64B.Put(ctx, &b)
	case cap(b) == 256:
		p._256B.Put(ctx, &b)
	case cap(b) == int(1*sizes.KiB):
		p._1K.Put(ctx, &b)
	case cap(b) == int(4*sizes.KiB):
		p._4K.Put(ctx, &b)
	case cap(b) == int(16*sizes.KiB):
		p._16K.Put(ctx, &b)
	case cap(b) == int(64*sizes.KiB):
		p._64K.Put(ctx, &b)
	case cap(b) == int(256*sizes.KiB):
		p._256K.Put(ctx, &b)
	case cap(b) == int(1*sizes.MiB):
		p._1M.Put(ctx, &b)
	default:
		// Not one of our size classes (or a one-off oversized block); let
		// the host runtime reclaim it.
	}
}
