package ui

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/skip2/go-qrcode"
	"github.com/tonsigner/tonsigner/internal/keystone"
	"github.com/tonsigner/tonsigner/internal/signer"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

var errMissingKeystoneRequest = errors.New("keystone screen without a sign request")

// ConfirmOptions tunes the Keystone QR animation.
type ConfirmOptions struct {
	FragmentSize  int
	FrameInterval time.Duration
	// Clock drives the animation; nil means the system clock.
	Clock mclock.Clock
	// PlainFrames renders UR text instead of a terminal QR code.
	PlainFrames bool
}

type frameMsg string

type settledMsg struct{}

// ConfirmModel is the terminal version of the three confirm screens. It
// settles its PresentationRequest exactly once: with a pasted result, or by
// closing it on Esc.
type ConfirmModel struct {
	req    *signer.PresentationRequest
	opts   ConfirmOptions
	prompt Prompt

	session  *keystone.ConfirmSession
	decoder  *keystone.Decoder
	animator *keystone.Animator
	frames   chan string
	frame    string

	status   string
	failed   bool
	finished bool
	width    int
}

// NewConfirmModel prepares the screen for req.
func NewConfirmModel(req *signer.PresentationRequest, opts ConfirmOptions) (ConfirmModel, error) {
	if opts.FragmentSize <= 0 {
		opts.FragmentSize = keystone.DefaultMaxFragmentLen
	}

	m := ConfirmModel{req: req, opts: opts, width: 80}
	switch req.Route {
	case signer.RouteSignerConfirm:
		m.prompt = NewPrompt("paste the signature or the tonkeeper://publish link")
	case signer.RouteLedgerConfirm:
		m.prompt = NewPrompt("paste the signed result from the device (hex)")
	case signer.RouteKeystoneConfirm:
		if req.Keystone == nil {
			return ConfirmModel{}, errMissingKeystoneRequest
		}
		session, err := keystone.NewConfirmSession(*req.Keystone, func(sig string) { req.Resolve(sig) })
		if err != nil {
			return ConfirmModel{}, err
		}
		enc, err := session.Encoder(opts.FragmentSize)
		if err != nil {
			return ConfirmModel{}, err
		}
		m.session = session
		m.decoder = keystone.NewDecoder()
		m.animator = keystone.NewAnimator(enc, opts.Clock, opts.FrameInterval)
		m.frames = make(chan string, 1)
		m.prompt = NewPrompt("paste the ur:ton-signature scanned from the device")
	default:
		return ConfirmModel{}, fmt.Errorf("unknown route %q", req.Route)
	}
	return m, nil
}

func (m ConfirmModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, waitSettled(m.req)}
	if m.animator != nil {
		frames := m.frames
		m.animator.Start(func(part string) { pushFrame(frames, part) })
		cmds = append(cmds, m.waitFrame())
	}
	return tea.Batch(cmds...)
}

// pushFrame keeps only the newest frame.
func pushFrame(ch chan string, part string) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- part:
	default:
	}
}

func (m ConfirmModel) waitFrame() tea.Cmd {
	frames, done := m.frames, m.req.Done()
	return func() tea.Msg {
		select {
		case part := <-frames:
			return frameMsg(part)
		case <-done:
			return settledMsg{}
		}
	}
}

func waitSettled(req *signer.PresentationRequest) tea.Cmd {
	return func() tea.Msg {
		<-req.Done()
		return settledMsg{}
	}
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		if m.finished {
			return m, nil
		}
		m.frame = string(msg)
		return m, m.waitFrame()

	case settledMsg:
		return m.finish()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.prompt.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.req.Close()
			return m.finish()
		case tea.KeyEnter:
			value := m.prompt.Value()
			m.prompt.Reset()
			if value == "" {
				return m, nil
			}
			m.submit(value)
			if m.finished {
				return m.finish()
			}
			return m, nil
		}
	}

	_, cmd := m.prompt.Update(msg)
	return m, cmd
}

func (m ConfirmModel) finish() (tea.Model, tea.Cmd) {
	m.finished = true
	if m.animator != nil {
		m.animator.Stop()
	}
	return m, tea.Quit
}

// submit handles one pasted value and sets finished when the request settled.
func (m *ConfirmModel) submit(value string) {
	switch m.req.Route {
	case signer.RouteSignerConfirm:
		sig := value
		if strings.Contains(value, "://") {
			parsed, err := signer.ParsePublishLink(value)
			if err != nil {
				m.fail(err.Error())
				return
			}
			sig = parsed
		}
		m.resolveHex(sig)
	case signer.RouteLedgerConfirm:
		m.resolveHex(value)
	case signer.RouteKeystoneConfirm:
		m.scan(value)
	}
}

func (m *ConfirmModel) resolveHex(sig string) {
	if err := signer.ValidateSignatureHex(sig); err != nil {
		m.fail(err.Error())
		return
	}
	m.req.Resolve(sig)
	m.finished = true
}

// scan feeds one UR frame. Failed scans leave the session open.
func (m *ConfirmModel) scan(text string) {
	if err := m.decoder.Receive(strings.ToLower(text)); err != nil {
		m.decoder = keystone.NewDecoder()
		m.fail("invalid qrcode")
		return
	}
	if !m.decoder.IsComplete() {
		m.status, m.failed = fmt.Sprintf("received %.0f%%", m.decoder.Progress()*100), false
		return
	}

	ur, err := m.decoder.Result()
	m.decoder = keystone.NewDecoder()
	if err != nil {
		m.fail(err.Error())
		return
	}
	status := m.session.HandleScan(ur)
	if status.State == keystone.ScanFailed {
		m.fail(status.ErrorMessage)
		return
	}
	m.finished = true
}

func (m *ConfirmModel) fail(msg string) {
	m.status, m.failed = msg, true
}

// Status is the last scan or paste message.
func (m ConfirmModel) Status() (string, bool) {
	return m.status, m.failed
}

// Frame is the UR part currently on screen.
func (m ConfirmModel) Frame() string {
	return m.frame
}

func (m ConfirmModel) View() string {
	if m.finished {
		return ""
	}

	var b strings.Builder
	switch m.req.Route {
	case signer.RouteSignerConfirm:
		b.WriteString(TitleStyle.Render("Confirm in Signer"))
		b.WriteString("\n\n")
		if m.req.Deeplink != "" {
			b.WriteString(HelpStyle.Render("Open this link on the device running Signer:"))
			b.WriteString("\n")
			b.WriteString(DeeplinkStyle.Render(m.req.Deeplink))
			b.WriteString("\n")
		}
	case signer.RouteLedgerConfirm:
		b.WriteString(TitleStyle.Render("Confirm on Ledger"))
		b.WriteString("\n\n")
		b.WriteString(ledgerSummary(m.req))
	case signer.RouteKeystoneConfirm:
		b.WriteString(TitleStyle.Render("Scan with Keystone"))
		b.WriteString("\n\n")
		b.WriteString(m.renderFrame())
	}

	b.WriteString("\n")
	if m.status != "" {
		if m.failed {
			b.WriteString(ErrorStyle.Render(SymbolCross + " " + m.status))
		} else {
			b.WriteString(SuccessStyle.Render(SymbolFrame + " " + m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.prompt.View())
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("enter submit, esc cancel"))
	return b.String()
}

func (m ConfirmModel) renderFrame() string {
	if m.frame == "" {
		return ""
	}
	if m.opts.PlainFrames {
		return QRStyle.Render(m.frame) + "\n"
	}
	// Upper case keeps the QR in alphanumeric mode.
	code, err := qrcode.New(strings.ToUpper(m.frame), qrcode.Low)
	if err != nil {
		return QRStyle.Render(m.frame) + "\n"
	}
	return code.ToSmallString(false)
}

func ledgerSummary(req *signer.PresentationRequest) string {
	var b strings.Builder
	if tx := req.Ledger; tx != nil {
		fmt.Fprintf(&b, "%s %s\n", HelpStyle.Render("to:     "), tx.To.String())
		fmt.Fprintf(&b, "%s %s TON\n", HelpStyle.Render("amount: "), tx.Amount.String())
		if tx.Comment != "" {
			fmt.Fprintf(&b, "%s %s\n", HelpStyle.Render("comment:"), tx.Comment)
		}
		return b.String()
	}
	if c, err := cell.FromBOC(req.Message); err == nil {
		fmt.Fprintf(&b, "%s %s\n", HelpStyle.Render("message hash:"), hex.EncodeToString(c.Hash()))
	}
	return b.String()
}
