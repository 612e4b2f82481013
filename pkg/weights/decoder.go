// Package weights decodes encoded weight streams into the single float32
// buffer an inference runtime reads tensors from.
//
// A decode call validates the memory layout, frames the stream into one
// block per allocation, decodes the blocks in parallel into their disjoint
// sub-ranges of a fresh buffer and settles a Future with the result. Any
// failure rejects the whole call; a partially filled buffer is never
// returned.
package weights

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/weightdecode/internal/logger"
	"github.com/samcharles93/weightdecode/pkg/layout"
	"github.com/samcharles93/weightdecode/pkg/wdb"
)

// Decoder decodes weight streams. It is immutable after construction and
// safe for concurrent use; calls share no mutable state.
type Decoder struct {
	cfg      Config
	variants variantTable
}

// New returns a decoder configured by opts.
func New(opts ...Option) *Decoder {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig returns a decoder for cfg, filling unset fields with defaults.
func NewWithConfig(cfg Config) *Decoder {
	cfg = cfg.withDefaults()
	return &Decoder{
		cfg:      cfg,
		variants: newVariantTable(cfg.Variants),
	}
}

var defaultDecoder = New()

// Decode decodes data with a decoder using the default configuration.
func Decode(ctx context.Context, data []byte, ml *layout.MemoryLayout) *Future {
	return defaultDecoder.Decode(ctx, data, ml)
}

// Config returns the effective configuration.
func (d *Decoder) Config() Config {
	return d.cfg
}

// Decode starts decoding data into a buffer laid out by ml and returns
// immediately. ctx only supplies the logger: cancelling it does not stop the
// decode. data and ml must not be modified until the future settles.
func (d *Decoder) Decode(ctx context.Context, data []byte, ml *layout.MemoryLayout) *Future {
	f := newFuture()
	log := d.logger(ctx).With("decode_id", f.id)
	go func() {
		f.resolve(d.run(log, data, ml))
	}()
	return f
}

// DecodeSync decodes on the calling goroutine.
func (d *Decoder) DecodeSync(ctx context.Context, data []byte, ml *layout.MemoryLayout) ([]float32, error) {
	log := d.logger(ctx).With("decode_id", uuid.NewString())
	return d.run(log, data, ml)
}

func (d *Decoder) logger(ctx context.Context) logger.Logger {
	if d.cfg.Logger != nil {
		return d.cfg.Logger
	}
	return logger.FromContext(ctx)
}

func (d *Decoder) run(log logger.Logger, data []byte, ml *layout.MemoryLayout) (out []float32, err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("weights: panic during decode: %v", rec)
		}
		if err != nil {
			log.Warn("weight decode failed", "kind", Kind(err), "error", err, "elapsed", time.Since(start))
		}
	}()

	if err := ml.Validate(); err != nil {
		return nil, err
	}
	if ml.TotalSize > d.cfg.MaxElements {
		return nil, &layout.Error{Reason: fmt.Sprintf("total_size %d exceeds decoder limit %d", ml.TotalSize, d.cfg.MaxElements)}
	}

	format := d.cfg.Format
	if format == FormatAuto {
		format = FormatPlain
		if wdb.HasMagic(data) {
			format = FormatContainer
		}
	}
	log.Debug("weight decode started",
		"format", format.String(),
		"total_size", ml.TotalSize,
		"allocations", ml.Len(),
		"bytes", len(data),
	)

	var (
		blocks   []block
		trailing int
	)
	switch format {
	case FormatPlain:
		blocks, trailing, err = d.planPlain(data, ml, d.cfg.Encoding)
	case FormatContainer:
		blocks, err = d.planContainer(data, ml)
	default:
		err = fmt.Errorf("weights: unknown format %s", format)
	}
	if err != nil {
		return nil, err
	}

	out = make([]float32, ml.TotalSize)
	if err := d.decodeBlocks(out, blocks); err != nil {
		return nil, err
	}

	if trailing > 0 {
		log.Warn("ignoring trailing bytes after final block", "bytes", trailing)
	}
	log.Debug("weight decode finished", "blocks", len(blocks), "elapsed", time.Since(start))
	return out, nil
}

// decodeBlocks fills out from blocks using up to cfg.Workers goroutines.
//
// The returned error is the one of the earliest failing block in plan order,
// the same error a sequential decode would stop at. Blocks after a known
// failure are skipped; blocks before it always run.
func (d *Decoder) decodeBlocks(out []float32, blocks []block) error {
	if len(blocks) == 0 {
		return nil
	}
	errs := make([]error, len(blocks))
	var firstFailed atomic.Int64
	firstFailed.Store(int64(len(blocks)))

	var g errgroup.Group
	g.SetLimit(min(d.cfg.Workers, len(blocks)))
	for i := range blocks {
		g.Go(func() error {
			if int64(i) > firstFailed.Load() {
				return nil
			}
			err := d.decodeBlock(out, &blocks[i])
			if err == nil {
				return nil
			}
			errs[i] = err
			for {
				cur := firstFailed.Load()
				if int64(i) >= cur || firstFailed.CompareAndSwap(cur, int64(i)) {
					break
				}
			}
			return err
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) decodeBlock(out []float32, b *block) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = b.wrap(fmt.Errorf("panic in %s decoder: %v", b.encoding, rec))
		}
	}()

	payload, err := wdb.Decompress(b.compression, b.payload, d.inflateLimit(b))
	if err != nil {
		return b.wrap(err)
	}
	size, err := b.variant.Frame(payload, b.entry.Size)
	if err != nil {
		return b.wrap(err)
	}
	if size != len(payload) {
		return b.wrap(fmt.Errorf("%w: payload is %d bytes, encoding uses %d", ErrSizeMismatch, len(payload), size))
	}

	lo, hi := b.entry.Offset, b.entry.End()
	return b.wrap(b.variant.Decode(out[lo:hi:hi], payload))
}

// inflateLimit is the most bytes a compressed block may inflate to: the
// variant's bound for the allocation when it has one, capped by MaxBlockBytes.
func (d *Decoder) inflateLimit(b *block) uint64 {
	limit := d.cfg.MaxBlockBytes
	if fb, ok := b.variant.(FrameBounder); ok {
		if size, ok := fb.MaxFrame(b.entry.Size); ok {
			limit = min(limit, uint64(size))
		}
	}
	return limit
}
