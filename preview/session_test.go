package preview

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/divanvisagie/Photograph"
	"github.com/divanvisagie/Photograph/backend"
	"github.com/divanvisagie/Photograph/transform"
)

const waitTimeout = 5 * time.Second

// gatedRenderer blocks each render until released, letting tests control
// exactly when a render completes.
type gatedRenderer struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int64
}

func newGatedRenderer() *gatedRenderer {
	return &gatedRenderer{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (g *gatedRenderer) Name() string { return "gated" }

func (g *gatedRenderer) Render(img *photograph.Image, state photograph.EditState) (*photograph.Image, error) {
	g.calls.Add(1)
	g.started <- struct{}{}
	<-g.release
	return transform.Apply(img, state)
}

func sourceImage(t *testing.T) *photograph.Image {
	t.Helper()
	img, err := photograph.NewImage(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	p := img.Pix()
	for i := range p {
		p[i] = uint8(i * 3)
	}
	return img
}

func cpuExecutor() *backend.Executor {
	return &backend.Executor{Mode: backend.ModeCPU, CPU: transform.Renderer{}}
}

func waitFrame(t *testing.T, s *Session) Frame {
	t.Helper()
	select {
	case f := <-s.Frames():
		return f
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

func stateWithExposure(v float32) photograph.EditState {
	s := photograph.Neutral()
	s.Exposure = v
	return s
}

func TestUpdateDeliversFrame(t *testing.T) {
	s, err := NewSession(cpuExecutor(), sourceImage(t))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	token := s.Update(stateWithExposure(0.5))
	f := waitFrame(t, s)
	if f.Token != token {
		t.Errorf("frame token = %d, want %d", f.Token, token)
	}
	if f.Image == nil {
		t.Fatal("frame has no image")
	}
}

func TestTokensAreMonotonic(t *testing.T) {
	s, err := NewSession(cpuExecutor(), sourceImage(t))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var last uint64
	for i := 0; i < 5; i++ {
		tok := s.Update(stateWithExposure(float32(i) * 0.1))
		if tok <= last {
			t.Fatalf("token %d not greater than previous %d", tok, last)
		}
		last = tok
	}
}

func TestCoalescingDropsIntermediateStates(t *testing.T) {
	g := newGatedRenderer()
	exec := &backend.Executor{Mode: backend.ModeCPU, CPU: g}
	s, err := NewSession(exec, sourceImage(t))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.Update(stateWithExposure(0.1))
	<-g.started // first render is now in flight

	s.Update(stateWithExposure(0.2))
	last := s.Update(stateWithExposure(0.3))

	g.release <- struct{}{} // finish first render; its token is stale
	<-g.started             // loop picked up the coalesced final state
	g.release <- struct{}{}

	f := waitFrame(t, s)
	if f.Token != last {
		t.Errorf("frame token = %d, want %d", f.Token, last)
	}
	if got := g.calls.Load(); got != 2 {
		t.Errorf("render calls = %d, want 2 (intermediate state coalesced)", got)
	}
}

func TestStaleFrameNotPublished(t *testing.T) {
	g := newGatedRenderer()
	exec := &backend.Executor{Mode: backend.ModeCPU, CPU: g}
	s, err := NewSession(exec, sourceImage(t))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.Update(stateWithExposure(0.1))
	<-g.started
	last := s.Update(stateWithExposure(0.2))
	g.release <- struct{}{}
	<-g.started
	g.release <- struct{}{}

	f := waitFrame(t, s)
	if f.Token != last {
		t.Errorf("received stale frame token %d, want %d", f.Token, last)
	}
	select {
	case extra := <-s.Frames():
		t.Errorf("unexpected extra frame with token %d", extra.Token)
	default:
	}
}

func TestCacheServesRepeatedState(t *testing.T) {
	g := newGatedRenderer()
	close(g.release) // renders complete immediately
	exec := &backend.Executor{Mode: backend.ModeCPU, CPU: g}
	s, err := NewSession(exec, sourceImage(t))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	state := stateWithExposure(0.5)
	s.Update(state)
	waitFrame(t, s)

	// Navigate away and back to the same state.
	s.Update(stateWithExposure(0.9))
	waitFrame(t, s)
	s.Update(state)
	f := waitFrame(t, s)

	if f.Image == nil {
		t.Fatal("cached frame has no image")
	}
	if got := g.calls.Load(); got != 2 {
		t.Errorf("render calls = %d, want 2 (third update cached)", got)
	}
	if hits, _ := s.CacheStats(); hits != 1 {
		t.Errorf("cache hits = %d, want 1", hits)
	}
}

type failingRenderer struct{ err error }

func (f failingRenderer) Name() string { return "failing" }

func (f failingRenderer) Render(*photograph.Image, photograph.EditState) (*photograph.Image, error) {
	return nil, f.err
}

func TestPolicyViolationTriggersFatal(t *testing.T) {
	exec := &backend.Executor{
		Mode: backend.ModeGPU,
		GPU:  failingRenderer{err: errors.New("device lost")},
		CPU:  transform.Renderer{},
	}
	fatal := make(chan error, 1)
	s, err := NewSession(exec, sourceImage(t),
		WithFatalHandler(func(err error) { fatal <- err }))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.Update(stateWithExposure(0.5))
	select {
	case err := <-fatal:
		if !errors.Is(err, backend.ErrPolicyViolation) {
			t.Errorf("fatal err = %v, want ErrPolicyViolation", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("fatal handler not invoked")
	}
}

func TestTransientErrorDoesNotKillSession(t *testing.T) {
	exec := &backend.Executor{Mode: backend.ModeCPU, CPU: failingRenderer{err: errors.New("boom")}}
	s, err := NewSession(exec, sourceImage(t))
	if err != nil {
		t.Fatal(err)
	}

	s.Update(stateWithExposure(0.5))
	s.Close() // must not deadlock waiting on a failed render

	select {
	case f := <-s.Frames():
		t.Errorf("unexpected frame %d after render failure", f.Token)
	default:
	}
}

func TestMaxPreviewEdgeDownscalesSource(t *testing.T) {
	img, err := photograph.NewImage(64, 32)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewSession(cpuExecutor(), img, WithMaxPreviewEdge(16))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.Update(stateWithExposure(0.5))
	f := waitFrame(t, s)
	if f.Image.Width() != 16 || f.Image.Height() != 8 {
		t.Errorf("preview dims = %dx%d, want 16x8", f.Image.Width(), f.Image.Height())
	}
}
