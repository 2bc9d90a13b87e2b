package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/tonsigner/tonsigner/internal/signer"
)

var log = logger.GetOrCreate("ui")

// Runner shows every request the presenter publishes, one screen at a time.
type Runner struct {
	requests    <-chan *signer.PresentationRequest
	opts        ConfirmOptions
	programOpts []tea.ProgramOption
}

// NewRunner consumes presenter's requests.
func NewRunner(presenter *signer.ChannelPresenter, opts ConfirmOptions, programOpts ...tea.ProgramOption) *Runner {
	return &Runner{requests: presenter.Requests(), opts: opts, programOpts: programOpts}
}

// Run blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-r.requests:
			if err := r.show(ctx, req); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				log.Warn("confirm screen failed", "route", string(req.Route), "error", err)
			}
		}
	}
}

func (r *Runner) show(ctx context.Context, req *signer.PresentationRequest) error {
	// Whatever happens on screen, the request must not stay open.
	defer req.Close()

	if _, settled := req.Outcome(); settled {
		return nil
	}
	m, err := NewConfirmModel(req, r.opts)
	if err != nil {
		return err
	}

	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, r.programOpts...)
	_, err = tea.NewProgram(m, opts...).Run()
	return err
}
