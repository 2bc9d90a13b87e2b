package keystone

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("keystone")

// ScanState is the outcome of one camera scan.
type ScanState int

const (
	ScanSuccess ScanState = iota
	ScanFailed
)

// ScanStatus is returned to the scanner screen after each scan.
type ScanStatus struct {
	State        ScanState
	ErrorMessage string
}

func scanFailed(msg string) ScanStatus {
	return ScanStatus{State: ScanFailed, ErrorMessage: msg}
}

var scanOK = ScanStatus{State: ScanSuccess}

// ConfirmSession models the confirm screen: it owns the outgoing request
// and accepts scanned replies until one succeeds. Failed scans never change
// its state, so the user can simply scan again.
type ConfirmSession struct {
	mu      sync.Mutex
	request SignRequest
	ur      *UR
	done    bool
	onDone  func(hexSignature string)
}

// NewConfirmSession encodes req (assigning a request id if missing).
func NewConfirmSession(req SignRequest, onDone func(hexSignature string)) (*ConfirmSession, error) {
	if req.RequestID == uuid.Nil {
		req.RequestID = uuid.New()
	}
	if req.Origin == "" {
		req.Origin = DefaultOrigin
	}
	ur, err := req.ToUR()
	if err != nil {
		return nil, err
	}
	return &ConfirmSession{request: req, ur: ur, onDone: onDone}, nil
}

// Request returns the outgoing request.
func (s *ConfirmSession) Request() SignRequest {
	return s.request
}

// UR returns the outgoing ton-sign-request UR.
func (s *ConfirmSession) UR() *UR {
	return s.ur
}

// Encoder returns a fresh frame encoder for the outgoing UR.
func (s *ConfirmSession) Encoder(maxFragmentLen int) (*Encoder, error) {
	return NewEncoder(s.ur, maxFragmentLen)
}

// Done reports whether a signature has been accepted.
func (s *ConfirmSession) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// HandleScan processes one scanned UR.
func (s *ConfirmSession) HandleScan(ur *UR) ScanStatus {
	if ur == nil || ur.Type != TypeSignature {
		return scanFailed(ErrInvalidScanType.Error())
	}

	sig, err := ParseSignature(ur)
	if err != nil {
		log.Debug("keystone signature rejected", "error", err)
		return scanFailed(err.Error())
	}
	if sig.RequestID != uuid.Nil && sig.RequestID != s.request.RequestID {
		return scanFailed("signature belongs to another request")
	}

	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return scanOK
	}
	s.done = true
	onDone := s.onDone
	s.mu.Unlock()

	if onDone != nil {
		onDone(sig.Signature)
	}
	return scanOK
}

// HandleScanText parses a single-part scanned string and handles it.
func (s *ConfirmSession) HandleScanText(text string) ScanStatus {
	ur, err := ParseUR(text)
	if err != nil {
		if errors.Is(err, ErrInvalidUR) {
			return scanFailed("invalid qrcode")
		}
		return scanFailed(err.Error())
	}
	return s.HandleScan(ur)
}
