package connectivity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"publish-pipeline/domain/model"
	"publish-pipeline/infrastructure/logger"
	"publish-pipeline/infrastructure/utils"
)

const maxHealthBody = 64 << 10

// Probe owns the process-wide view of remote reachability. Nothing else writes it.
type Probe struct {
	client   *http.Client
	url      string
	timeout  time.Duration
	interval time.Duration

	mu              sync.Mutex
	reachable       bool
	lastReachableAt *time.Time
	probing         int
	issued          uint64 // checks started
	applied         uint64 // newest check whose result was recorded
	listeners       []func()
	lostListeners   []func()
}

// NewProbe checks healthURL. The initial state is unreachable.
func NewProbe(client *http.Client, healthURL string, timeout, interval time.Duration) *Probe {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Probe{
		client:   client,
		url:      healthURL,
		timeout:  timeout,
		interval: interval,
	}
}

// OnRestored registers fn to run on every unreachable to reachable edge.
func (p *Probe) OnRestored(fn func()) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// OnLost registers fn to run on every reachable to unreachable edge.
func (p *Probe) OnLost(fn func()) {
	p.mu.Lock()
	p.lostListeners = append(p.lostListeners, fn)
	p.mu.Unlock()
}

func (p *Probe) Snapshot() model.ConnectivitySnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := model.ConnectivitySnapshot{Reachable: p.reachable, Probing: p.probing > 0}
	if p.lastReachableAt != nil {
		t := *p.lastReachableAt
		snap.LastReachableAt = &t
	}
	return snap
}

// IsReachable performs one bounded round trip and records the outcome.
// Failures are reported as false, never as errors. Cancelling ctx does not cut the
// check short; it is bounded by the probe timeout alone.
func (p *Probe) IsReachable(ctx context.Context) bool {
	p.mu.Lock()
	p.probing++
	p.issued++
	seq := p.issued
	p.mu.Unlock()

	ok := p.check(context.WithoutCancel(ctx))
	p.record(seq, ok)
	return ok
}

// Run probes on the configured interval until ctx is done.
func (p *Probe) Run(ctx context.Context) error {
	p.IsReachable(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.IsReachable(ctx)
		}
	}
}

func (p *Probe) check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		logger.GetLogger().WithField("error", err).Debug("Probe request build failed")
		return false
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		logger.GetLogger().WithField("error", err).Debug("Probe round trip failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.GetLogger().WithField("status", resp.StatusCode).Debug("Probe got non-success status")
		return false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHealthBody))
	if err != nil {
		return false
	}
	return healthy(body)
}

// healthy accepts an empty body or a JSON object whose status, if set, is "ok".
func healthy(body []byte) bool {
	if len(strings.TrimSpace(string(body))) == 0 {
		return true
	}
	var payload struct {
		Status *string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.GetLogger().WithField("error", err).Debug("Probe got malformed body")
		return false
	}
	if payload.Status == nil {
		return true
	}
	return strings.EqualFold(*payload.Status, "ok")
}

// record applies the outcome of check seq. Results older than one already
// recorded are dropped.
func (p *Probe) record(seq uint64, ok bool) {
	p.mu.Lock()
	p.probing--
	if seq < p.applied {
		p.mu.Unlock()
		return
	}
	p.applied = seq
	was := p.reachable
	p.reachable = ok
	var fire []func()
	if ok {
		now := utils.GetCurrentTime()
		p.lastReachableAt = &now
		if !was {
			fire = append(fire, p.listeners...)
		}
	} else if was {
		fire = append(fire, p.lostListeners...)
	}
	p.mu.Unlock()

	if ok != was {
		logger.GetLogger().WithField("reachable", ok).Info("Connectivity changed")
	}
	for _, fn := range fire {
		go fn()
	}
}
