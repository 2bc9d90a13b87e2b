package signer

import (
	"context"
	"sync"

	"github.com/tonsigner/tonsigner/internal/keystone"
)

// Route names a confirmation screen.
type Route string

const (
	RouteSignerConfirm   Route = "/signer-confirm"
	RouteLedgerConfirm   Route = "/ledger-confirm"
	RouteKeystoneConfirm Route = "/keystone-confirm"
)

// PresentationResult is what a screen reports back.
type PresentationResult struct {
	// Signature is hex: a signature, or for Ledger transactions the signed body BOC.
	Signature string
	Canceled  bool
}

// PresentationRequest asks the UI to show a confirmation screen. Exactly one
// of Resolve and Close takes effect.
type PresentationRequest struct {
	Route    Route
	WalletID string

	// Deeplink is set for signer-confirm.
	Deeplink string

	// Message is the BOC (or proof buffer) being signed.
	Message     []byte
	MessageType keystone.MessageType

	// Keystone is the ton-sign-request for keystone-confirm.
	Keystone *keystone.SignRequest

	// Ledger is set when a full transaction is confirmed on the device.
	Ledger *LedgerTransaction

	once    sync.Once
	outcome PresentationResult
	done    chan struct{}
}

// NewPresentationRequest creates an unsettled request for route.
func NewPresentationRequest(route Route, walletID string) *PresentationRequest {
	return &PresentationRequest{
		Route:    route,
		WalletID: walletID,
		done:     make(chan struct{}),
	}
}

func (r *PresentationRequest) settle(res PresentationResult) bool {
	settled := false
	r.once.Do(func() {
		r.outcome = res
		close(r.done)
		settled = true
	})
	return settled
}

// Resolve completes the request with a hex signature. It reports whether
// this call settled the request.
func (r *PresentationRequest) Resolve(hexSignature string) bool {
	return r.settle(PresentationResult{Signature: hexSignature})
}

// Close cancels the request. It reports whether this call settled it.
func (r *PresentationRequest) Close() bool {
	return r.settle(PresentationResult{Canceled: true})
}

// Done is closed once the request is settled by either side.
func (r *PresentationRequest) Done() <-chan struct{} {
	return r.done
}

// Outcome returns the result once Done is closed.
func (r *PresentationRequest) Outcome() (PresentationResult, bool) {
	select {
	case <-r.done:
		return r.outcome, true
	default:
		return PresentationResult{}, false
	}
}

// ChannelPresenter publishes requests on a channel for whatever UI consumes it.
type ChannelPresenter struct {
	requests chan *PresentationRequest

	mu     sync.Mutex
	active map[Route]*PresentationRequest
}

// NewChannelPresenter creates a presenter with the given channel buffer.
func NewChannelPresenter(buffer int) *ChannelPresenter {
	return &ChannelPresenter{
		requests: make(chan *PresentationRequest, buffer),
		active:   make(map[Route]*PresentationRequest),
	}
}

// Requests is the stream of screens to show.
func (p *ChannelPresenter) Requests() <-chan *PresentationRequest {
	return p.requests
}

// Present queues req until the UI takes it or ctx is done.
func (p *ChannelPresenter) Present(ctx context.Context, req *PresentationRequest) error {
	p.mu.Lock()
	p.active[req.Route] = req
	p.mu.Unlock()

	go func() {
		<-req.Done()
		p.mu.Lock()
		if p.active[req.Route] == req {
			delete(p.active, req.Route)
		}
		p.mu.Unlock()
	}()

	select {
	case p.requests <- req:
		return nil
	case <-ctx.Done():
		req.Close()
		return ctx.Err()
	}
}

// Dismiss closes the screen currently shown on route, if any.
func (p *ChannelPresenter) Dismiss(route Route) {
	p.mu.Lock()
	req := p.active[route]
	delete(p.active, route)
	p.mu.Unlock()

	if req != nil {
		req.Close()
	}
}

// Active returns the unsettled request on route.
func (p *ChannelPresenter) Active(route Route) (*PresentationRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	req, ok := p.active[route]
	return req, ok
}
