// Package transport implements the staged byte-ingest pipeline shared by
// every HANTAS wire dialect (spec.md §4.4): an asynchronous I/O callback
// feeds a chunk queue, a fixed-period tick drains chunks into an analyze
// ring buffer, classifies complete frames out of it, and fires observer
// sinks outside the buffer's lock.
//
// Concrete dialects (serial, tcp, legacyeth) own the connection and the
// I/O callback goroutine; they hold a *Pipeline for the shared staging
// logic and supply a Classifier closure bound to their own framing rules.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/KyungtackKim/hantas-torque-link/internal/obs"
	"github.com/KyungtackKim/hantas-torque-link/ringbuf"
	"github.com/KyungtackKim/hantas-torque-link/wire"
)

// Classifier attempts to classify the head of an analyze buffer snapshot.
// Implementations close over whatever a given dialect needs (e.g. the
// expected RTU device id); the pipeline never inspects deviceID itself.
type Classifier func(buf []byte) wire.Classification

// Config tunes the pipeline's timing. Zero values are replaced by the
// spec.md §4.4 defaults in NewPipeline.
type Config struct {
	// AnalyzeBufferSize is the ring buffer capacity backing the analyze
	// stage; rounded up to a power of two by ringbuf.New.
	AnalyzeBufferSize int
	// TickPeriod is how often the pipeline drains chunks and classifies.
	TickPeriod time.Duration
	// TryLockTimeout bounds how long a tick waits for the analyze-buffer
	// lock before yielding.
	TryLockTimeout time.Duration
	// InterByteTimeout clears a stale partial frame once this long has
	// elapsed since the last byte arrived.
	InterByteTimeout time.Duration
	// ValidateCRC enables RTU-style trailing CRC-16 validation on every
	// extracted frame. TCP/MBAP framing has no CRC and leaves this false.
	ValidateCRC bool
}

const (
	defaultAnalyzeBufferSize = 4096
	defaultTickPeriod        = 50 * time.Millisecond
	defaultTryLockTimeout    = 200 * time.Millisecond
	defaultInterByteTimeout  = 500 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.AnalyzeBufferSize <= 0 {
		c.AnalyzeBufferSize = defaultAnalyzeBufferSize
	}
	if c.TickPeriod <= 0 {
		c.TickPeriod = defaultTickPeriod
	}
	if c.TryLockTimeout <= 0 {
		c.TryLockTimeout = defaultTryLockTimeout
	}
	if c.InterByteTimeout <= 0 {
		c.InterByteTimeout = defaultInterByteTimeout
	}
	return c
}

// Pipeline is the shared staged-ingest engine. It is safe for one producer
// goroutine (PushChunk) and one internally-owned tick goroutine.
type Pipeline struct {
	cfg       Config
	classify  Classifier
	sinks     Sinks
	ring      *ringbuf.Ring
	lockCh    chan struct{} // capacity-1 token: non-blocking mutex for the analyze buffer
	chunkMu   sync.Mutex
	chunks    [][]byte
	analyzeAt time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPipeline constructs a Pipeline. classify is called with a read-only
// snapshot of the analyze buffer's pending bytes on every tick.
func NewPipeline(cfg Config, classify Classifier, sinks Sinks) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		cfg:      cfg,
		classify: classify,
		sinks:    sinks,
		ring:     ringbuf.New(cfg.AnalyzeBufferSize),
		lockCh:   make(chan struct{}, 1),
	}
}

// Start begins the tick goroutine. Calling Start twice without an
// intervening Stop is a caller error.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.analyzeAt = time.Now()
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop cancels the tick goroutine, waits for it to exit, and clears both
// buffers, returning pooled resources (spec.md §4.4 "Cancellation").
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.chunkMu.Lock()
	p.chunks = nil
	p.chunkMu.Unlock()
	select {
	case p.lockCh <- struct{}{}:
		p.ring.Clear()
		<-p.lockCh
	default:
	}
}

func (p *Pipeline) run(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// PushChunk is Stage 1: the I/O callback goroutine hands off a freshly
// read buffer. The bytes are copied so the caller's buffer may be reused
// immediately. If a raw-data sink is registered, a separate owned copy is
// published to it.
func (p *Pipeline) PushChunk(data []byte) {
	if len(data) == 0 {
		return
	}
	owned := append([]byte(nil), data...)
	p.chunkMu.Lock()
	p.chunks = append(p.chunks, owned)
	p.chunkMu.Unlock()
	p.sinks.emitReceivedRaw(data)
}

func (p *Pipeline) drainChunks() [][]byte {
	p.chunkMu.Lock()
	defer p.chunkMu.Unlock()
	if len(p.chunks) == 0 {
		return nil
	}
	out := p.chunks
	p.chunks = nil
	return out
}

// tick is Stage 2 + Stage 3: try-acquire the analyze buffer, drain chunks
// into it, apply the inter-byte timeout, classify as many complete frames
// as are available, then fire all resulting events outside the lock.
func (p *Pipeline) tick() {
	select {
	case p.lockCh <- struct{}{}:
	case <-time.After(p.cfg.TryLockTimeout):
		return
	}

	var dataEvents []wire.DataEvent
	var errEvents []wire.ErrorEvent
	func() {
		defer func() { <-p.lockCh }()

		if chunks := p.drainChunks(); len(chunks) > 0 {
			for _, c := range chunks {
				p.ring.Write(c)
			}
			p.analyzeAt = time.Now()
		}

		if p.ring.Len() > 0 && time.Since(p.analyzeAt) > p.cfg.InterByteTimeout {
			cleared := p.ring.Len()
			p.ring.Clear()
			errEvents = append(errEvents, wire.ErrorEvent{Kind: wire.ErrKindTimeout, Param: cleared})
			return
		}

		for {
			buf := p.ring.PeekAll()
			if len(buf) == 0 {
				return
			}
			c := p.classify(buf)
			switch c.Action {
			case wire.ActionWait:
				return
			case wire.ActionResync:
				p.ring.Remove(1)
			case wire.ActionFrame:
				frame := p.ring.Read(c.Length)
				p.analyzeAt = time.Now()
				if p.cfg.ValidateCRC && !wire.ValidateCRC(frame) {
					errEvents = append(errEvents, wire.ErrorEvent{Kind: wire.ErrKindInvalidCRC})
					continue
				}
				dataEvents = append(dataEvents, wire.DataEvent{Code: c.Code, Frame: frame})
			}
		}
	}()

	for _, ev := range dataEvents {
		p.sinks.emitReceivedData(ev)
	}
	for _, ev := range errEvents {
		p.sinks.emitReceivedError(ev)
		obs.Debugf(obs.ComponentTransport, nil, "analyze buffer event: %s", ev.Kind)
	}
}
