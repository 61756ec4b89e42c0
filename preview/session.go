package preview

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/divanvisagie/Photograph"
	"github.com/divanvisagie/Photograph/backend"
	"github.com/divanvisagie/Photograph/encode"
)

// Frame is one completed preview render, tagged with the generation
// token of the edit that requested it.
type Frame struct {
	Token uint64
	Image *photograph.Image
}

// Session renders previews for a single source image as its edit state
// changes. Every Update bumps a generation token; at most one render runs
// at a time and intermediate states are coalesced, so a burst of slider
// movements produces one render of the final position. A completed render
// is published only when its token is still the latest, which keeps a
// slow render from overwriting a newer one.
type Session struct {
	exec   *backend.Executor
	source *photograph.Image
	cache  *Cache

	requested atomic.Uint64
	frames    chan Frame

	mu       sync.Mutex
	pending  *pendingRender
	inFlight bool
	closed   bool
	done     sync.WaitGroup

	// onFatal handles a mid-run backend policy violation. The default
	// logs and exits with backend.ExitPolicyViolation.
	onFatal func(error)
}

type pendingRender struct {
	state photograph.EditState
	token uint64
}

// Option configures a Session.
type Option func(*Session)

// WithCacheCapacity sets the preview cache size.
func WithCacheCapacity(n int) Option {
	return func(s *Session) {
		s.cache.Close()
		if c, err := NewCache(n); err == nil {
			s.cache = c
		}
	}
}

// WithFatalHandler overrides the policy-violation handler. Tests use this
// to observe the failure instead of exiting.
func WithFatalHandler(fn func(error)) Option {
	return func(s *Session) { s.onFatal = fn }
}

// WithMaxPreviewEdge downscales the source so its longer edge is at most
// n pixels before any render. Interactive previews do not need full
// resolution, and a smaller source keeps slider feedback under the
// device's size limit as well.
func WithMaxPreviewEdge(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.source = encode.Resize(s.source, n)
		}
	}
}

// NewSession creates a preview session over the given source image.
func NewSession(exec *backend.Executor, source *photograph.Image, opts ...Option) (*Session, error) {
	cache, err := NewCache(0)
	if err != nil {
		return nil, err
	}
	s := &Session{
		exec:   exec,
		source: source,
		cache:  cache,
		frames: make(chan Frame, 1),
		onFatal: func(err error) {
			photograph.Logger().Error("backend policy violation", "error", err)
			os.Exit(backend.ExitPolicyViolation)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Frames delivers completed previews. The channel holds only the newest
// frame; a consumer that falls behind sees the latest state, not a
// backlog.
func (s *Session) Frames() <-chan Frame { return s.frames }

// Token returns the most recently requested generation.
func (s *Session) Token() uint64 { return s.requested.Load() }

// Update schedules a render of the given state and returns its token.
// If a render is already running the state is queued, replacing any
// previously queued state.
func (s *Session) Update(state photograph.EditState) uint64 {
	token := s.requested.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return token
	}
	s.pending = &pendingRender{state: state, token: token}
	if !s.inFlight {
		s.inFlight = true
		s.done.Add(1)
		go s.renderLoop()
	}
	return token
}

func (s *Session) renderLoop() {
	defer s.done.Done()
	for {
		s.mu.Lock()
		next := s.pending
		s.pending = nil
		if next == nil {
			s.inFlight = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.renderOne(next.state, next.token)
	}
}

func (s *Session) renderOne(state photograph.EditState, token uint64) {
	log := photograph.Logger()
	srcW, srcH := s.source.Width(), s.source.Height()

	img := s.cache.Get(&state, srcW, srcH)
	if img == nil {
		var err error
		img, err = s.exec.Render(s.source, state)
		if err != nil {
			if errors.Is(err, backend.ErrPolicyViolation) {
				s.onFatal(err)
				return
			}
			log.Error("preview render failed", "token", token, "error", err)
			return
		}
		s.cache.Put(&state, srcW, srcH, img)
	}

	if s.requested.Load() != token {
		// A newer edit arrived while rendering; this frame is stale.
		log.Debug("dropping stale preview", "token", token, "latest", s.requested.Load())
		return
	}
	s.publish(Frame{Token: token, Image: img})
}

// publish keeps only the newest frame in the channel.
func (s *Session) publish(f Frame) {
	for {
		select {
		case s.frames <- f:
			return
		default:
			select {
			case <-s.frames:
			default:
			}
		}
	}
}

// Close stops the session after any in-flight render finishes. No frames
// are delivered after Close returns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.pending = nil
	s.mu.Unlock()

	s.done.Wait()
	s.cache.Close()
}

// CacheStats exposes preview cache hit/miss counters for diagnostics.
func (s *Session) CacheStats() (hits, misses uint64) { return s.cache.Stats() }
