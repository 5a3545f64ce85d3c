// Package memory provides an in-process Gateway implementation.
//
// It stands in for the real account service in local runs and tests: each
// opened handshake issues a synthetic challenge URL and confirms itself
// after a configurable delay, or never. Behavior is controlled per Gateway,
// and individual handshakes can be driven manually via Confirm.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"qrlink/internal/linker/gateway"
	"qrlink/internal/linker/models"
)

// Gateway implements gateway.Gateway in memory.
type Gateway struct {
	mu         sync.Mutex
	handshakes []*Handshake

	// OpenErr, when set, fails every Open with this error.
	OpenErr error
	// RejectProfiles fails Open with ErrProfileRejected for these profile names.
	RejectProfiles map[string]bool
	// ConfirmAfter auto-confirms each handshake after this delay. Zero
	// means never; confirm manually with Handshake.Confirm.
	ConfirmAfter time.Duration
	// Authorize controls what Authorized reports after confirmation.
	Authorize bool
	// Identity is returned from Handshake.Identity when IdentityErr is nil.
	Identity gateway.Identity
	// IdentityErr, when set, makes the enrichment fetch fail.
	IdentityErr error
}

// New returns a Gateway whose handshakes confirm after confirmAfter and
// authorize successfully.
func New(confirmAfter time.Duration) *Gateway {
	return &Gateway{ConfirmAfter: confirmAfter, Authorize: true}
}

// Open implements gateway.Gateway.
func (g *Gateway) Open(ctx context.Context, profile models.APIProfile, dev models.DeviceProfile) (gateway.Handshake, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.OpenErr != nil {
		return nil, g.OpenErr
	}
	if g.RejectProfiles[profile.Name] {
		return nil, fmt.Errorf("%w: %s", gateway.ErrProfileRejected, profile.Name)
	}

	h := &Handshake{
		gw:        g,
		url:       "tg://login?token=" + uuid.NewString(),
		device:    dev,
		profile:   profile,
		confirmed: make(chan struct{}),
	}
	if g.ConfirmAfter > 0 {
		h.timer = time.AfterFunc(g.ConfirmAfter, h.Confirm)
	}
	g.handshakes = append(g.handshakes, h)
	return h, nil
}

// Last returns the most recently opened handshake, or nil.
func (g *Gateway) Last() *Handshake {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.handshakes) == 0 {
		return nil
	}
	return g.handshakes[len(g.handshakes)-1]
}

// Opened returns how many handshakes this gateway has opened.
func (g *Gateway) Opened() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.handshakes)
}

// Handshake implements gateway.Handshake in memory.
type Handshake struct {
	gw      *Gateway
	url     string
	device  models.DeviceProfile
	profile models.APIProfile
	timer   *time.Timer

	confirmOnce sync.Once
	confirmed   chan struct{}
	disconnects atomic.Int64
}

// Confirm marks the challenge as scanned. Safe to call more than once.
func (h *Handshake) Confirm() {
	h.confirmOnce.Do(func() { close(h.confirmed) })
}

// Device returns the device profile the handshake was opened with.
func (h *Handshake) Device() models.DeviceProfile { return h.device }

// Disconnects reports how many times Disconnect ran.
func (h *Handshake) Disconnects() int64 { return h.disconnects.Load() }

func (h *Handshake) ChallengeURL() string { return h.url }

func (h *Handshake) Wait(ctx context.Context) error {
	select {
	case <-h.confirmed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handshake) Authorized(ctx context.Context) (bool, error) {
	return h.gw.Authorize, nil
}

func (h *Handshake) ExportCredential(ctx context.Context) (string, error) {
	return "mem-credential-" + h.url[len(h.url)-12:], nil
}

func (h *Handshake) Identity(ctx context.Context) (gateway.Identity, error) {
	if h.gw.IdentityErr != nil {
		return gateway.Identity{}, h.gw.IdentityErr
	}
	return h.gw.Identity, nil
}

func (h *Handshake) Disconnect(ctx context.Context) error {
	if h.timer != nil {
		h.timer.Stop()
	}
	h.disconnects.Add(1)
	return nil
}
