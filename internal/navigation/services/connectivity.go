package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tacoshare-tracking-api/internal/navigation/models"
	"tacoshare-tracking-api/pkg/gmaps"
)

// Prober checks whether the mapping provider can be reached.
// Any error means offline.
type Prober interface {
	Probe(ctx context.Context) error
}

// HTTPProber issues a lightweight HEAD request
type HTTPProber struct {
	client *http.Client
	url    string
}

// NewHTTPProber creates a prober for url
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{client: &http.Client{Timeout: timeout}, url: url}
}

// Probe returns nil when the endpoint answers below 500
func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe %s: status %d", p.url, resp.StatusCode)
	}
	return nil
}

// ConnectivityConfig tunes the monitor
type ConnectivityConfig struct {
	// ProbeInterval is the time between liveness probes
	ProbeInterval time.Duration
	// ProbeTimeout bounds a single probe
	ProbeTimeout time.Duration
	// RecentlyBackWindow is how long RecentlyBack stays true after reconnecting
	RecentlyBackWindow time.Duration
}

// DefaultConnectivityConfig returns a 30 s probe and a 10 s recently-back window
func DefaultConnectivityConfig() ConnectivityConfig {
	return ConnectivityConfig{
		ProbeInterval:      30 * time.Second,
		ProbeTimeout:       5 * time.Second,
		RecentlyBackWindow: 10 * time.Second,
	}
}

// ConnectivityMonitor tracks whether the mapping provider is reachable and
// derives the capabilities every route calculation checks.
type ConnectivityMonitor struct {
	prober Prober
	cfg    ConnectivityConfig
	logger *slog.Logger
	now    func() time.Time

	mu          sync.RWMutex
	online      bool
	backAt      time.Time
	caps        models.Capabilities
	subscribers map[int]func(models.Capabilities)
	nextID      int
	backTimer   *time.Timer
}

// NewConnectivityMonitor creates a monitor that starts online.
// prober may be nil, leaving transitions to SetOnline.
func NewConnectivityMonitor(prober Prober, cfg ConnectivityConfig, logger *slog.Logger) *ConnectivityMonitor {
	defaults := DefaultConnectivityConfig()
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = defaults.ProbeInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaults.ProbeTimeout
	}
	if cfg.RecentlyBackWindow <= 0 {
		cfg.RecentlyBackWindow = defaults.RecentlyBackWindow
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &ConnectivityMonitor{
		prober:      prober,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "connectivity")),
		now:         time.Now,
		online:      true,
		subscribers: make(map[int]func(models.Capabilities)),
	}
	m.caps = m.computeLocked()
	return m
}

// Online reports the current state
func (m *ConnectivityMonitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// RecentlyBack reports whether the monitor reconnected within the window
func (m *ConnectivityMonitor) RecentlyBack() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recentlyBackLocked()
}

// Capabilities returns the capability set for the current state
func (m *ConnectivityMonitor) Capabilities() models.Capabilities {
	m.mu.RLock()
	defer m.mu.RUnlock()
	caps := m.caps
	caps.RecentlyBack = m.recentlyBackLocked()
	return caps
}

// Subscribe registers fn to receive the capabilities after every change.
// The returned function removes the subscription.
func (m *ConnectivityMonitor) Subscribe(fn func(models.Capabilities)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// SetOnline records a connectivity event. Repeating the current state is a no-op.
func (m *ConnectivityMonitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}

	m.online = online
	if online {
		m.backAt = m.now()
		if m.backTimer != nil {
			m.backTimer.Stop()
		}
		m.backTimer = time.AfterFunc(m.cfg.RecentlyBackWindow, m.recentlyBackExpired)
	} else {
		m.backAt = time.Time{}
		if m.backTimer != nil {
			m.backTimer.Stop()
			m.backTimer = nil
		}
	}
	m.caps = m.computeLocked()
	caps, subs := m.snapshotLocked()
	m.mu.Unlock()

	if online {
		m.logger.Info("mapping provider reachable again")
	} else {
		m.logger.Warn("mapping provider unreachable, switching to offline mode")
	}
	notify(subs, caps)
}

// ReportProviderResult feeds the outcome of a provider call into the monitor.
// Only transport failures flip it offline; a successful call flips it back.
func (m *ConnectivityMonitor) ReportProviderResult(err error) {
	switch {
	case err == nil:
		m.SetOnline(true)
	case gmaps.IsUnreachable(err):
		m.SetOnline(false)
	}
}

// Run probes until ctx is done. Probe errors are the offline signal.
func (m *ConnectivityMonitor) Run(ctx context.Context) {
	if m.prober == nil {
		return
	}

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			if m.backTimer != nil {
				m.backTimer.Stop()
			}
			m.mu.Unlock()
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *ConnectivityMonitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	err := m.prober.Probe(probeCtx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		m.logger.Debug("connectivity probe failed", slog.String("error", err.Error()))
	}
	m.SetOnline(err == nil)
}

func (m *ConnectivityMonitor) recentlyBackExpired() {
	m.mu.Lock()
	if !m.online {
		m.mu.Unlock()
		return
	}
	caps, subs := m.snapshotLocked()
	m.mu.Unlock()
	notify(subs, caps)
}

func (m *ConnectivityMonitor) recentlyBackLocked() bool {
	return m.online && !m.backAt.IsZero() && m.now().Sub(m.backAt) < m.cfg.RecentlyBackWindow
}

func (m *ConnectivityMonitor) computeLocked() models.Capabilities {
	return models.Capabilities{
		Online:             m.online,
		CanCalculateRoutes: m.online,
		CanGeocode:         m.online,
		CanUseGPS:          true,
		CanNavigate:        true,
	}
}

func (m *ConnectivityMonitor) snapshotLocked() (models.Capabilities, []func(models.Capabilities)) {
	caps := m.caps
	caps.RecentlyBack = m.recentlyBackLocked()
	subs := make([]func(models.Capabilities), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	return caps, subs
}

func notify(subs []func(models.Capabilities), caps models.Capabilities) {
	for _, fn := range subs {
		fn(caps)
	}
}
