// Package analytics forwards tracking calls to an event transport only while
// the visitor's consent allows it.
package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"blockhost-portal/internal/common/logger"
	"blockhost-portal/internal/consent"

	"github.com/google/uuid"
)

type State int

const (
	Uninitialized State = iota
	Enabled
	Disabled
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	EventPageView = "page_view"
)

type Event struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Timestamp time.Time              `json:"@timestamp"`
}

// Transport is the external event sink. Init is called at most once per Gate.
type Transport interface {
	Init(ctx context.Context) error
	SetOptOut(optOut bool)
	Send(ctx context.Context, event Event) error
}

// Gate is constructed once per process and shared by reference.
type Gate struct {
	mu        sync.Mutex
	transport Transport
	logger    logger.Logger
	state     State
	initTried bool
	lastPath  string
}

func NewGate(transport Transport, log logger.Logger) *Gate {
	return &Gate{transport: transport, logger: log}
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Apply moves the gate to match rec. Turning analytics on initializes the
// transport the first time only; turning it off sets the transport's opt-out
// flag and leaves it loaded.
func (g *Gate) Apply(ctx context.Context, rec consent.Record) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case rec.Analytics && g.state == Uninitialized:
		if g.initTried {
			return
		}
		g.initTried = true
		if err := g.safeInit(ctx); err != nil {
			g.logger.Warn("analytics transport init failed", map[string]interface{}{"error": err})
			return
		}
		g.state = Enabled
	case rec.Analytics && g.state == Disabled:
		g.transport.SetOptOut(false)
		g.state = Enabled
	case !rec.Analytics && g.state == Enabled:
		g.transport.SetOptOut(true)
		g.state = Disabled
	}
}

func (g *Gate) safeInit(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport init panicked: %v", r)
		}
	}()
	return g.transport.Init(ctx)
}

// TrackEvent never fails; transport errors and panics are logged and dropped.
func (g *Gate) TrackEvent(ctx context.Context, name string, params map[string]interface{}) {
	if g.State() != Enabled {
		return
	}
	g.send(ctx, Event{
		ID:        uuid.NewString(),
		Name:      name,
		Params:    params,
		Timestamp: time.Now().UTC(),
	})
}

// TrackPageView records a navigation. Repeated calls for the current path
// are ignored.
func (g *Gate) TrackPageView(ctx context.Context, path string) {
	g.mu.Lock()
	if g.state != Enabled || path == g.lastPath {
		g.mu.Unlock()
		return
	}
	g.lastPath = path
	g.mu.Unlock()

	g.send(ctx, Event{
		ID:        uuid.NewString(),
		Name:      EventPageView,
		Params:    map[string]interface{}{"page_path": path},
		Timestamp: time.Now().UTC(),
	})
}

func (g *Gate) send(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("analytics transport panicked", map[string]interface{}{"event": ev.Name, "panic": fmt.Sprint(r)})
		}
	}()
	if err := g.transport.Send(ctx, ev); err != nil {
		g.logger.Debug("analytics event dropped", map[string]interface{}{"event": ev.Name, "error": err})
	}
}
