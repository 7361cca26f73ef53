// Package wizard implements the interactive EasyCA loop.
//
// The wizard is a small state machine. It forces the creation of a root CA
// when none exists, then offers to create a request (for a sub-CA or a
// leaf host) or to sign a pending one. All work is done through Operations,
// so the loop is tested with scripted input and the lifecycle without a
// terminal.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/remiblancher/easyca/internal/ca"
	"github.com/remiblancher/easyca/internal/caerr"
	"github.com/remiblancher/easyca/internal/cli"
	"github.com/remiblancher/easyca/internal/config"
	"github.com/remiblancher/easyca/internal/names"
	"github.com/remiblancher/easyca/internal/toolkit"
)

// Operations is what the wizard needs from the lifecycle layer.
// *ca.Manager implements it.
type Operations interface {
	FindRoot(ctx context.Context) (string, bool, error)
	SigningCandidates(ctx context.Context) ([]ca.CAEntry, error)
	PendingCSRs() ([]string, error)
	CreateCA(ctx context.Context, req ca.CARequest) (*toolkit.CertInfo, error)
	CreateCSR(ctx context.Context, req ca.CSRRequest) error
	SignCSR(ctx context.Context, req ca.SignRequest) (*toolkit.CertInfo, error)
	Issue(ctx context.Context, req ca.SignRequest) (*toolkit.CertInfo, error)
	PromoteToSubCA(ctx context.Context, csrName string) error
}

var _ Operations = (*ca.Manager)(nil)

// State is a step of the wizard loop.
type State int

const (
	StateNeedRoot State = iota
	StateMainMenu
	StateCreateCSR
	StateSignCSR
	StateExit
)

func (s State) String() string {
	switch s {
	case StateNeedRoot:
		return "need-root"
	case StateMainMenu:
		return "main-menu"
	case StateCreateCSR:
		return "create-csr"
	case StateSignCSR:
		return "sign-csr"
	case StateExit:
		return "exit"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Wizard drives Operations from answers read by a Prompter.
type Wizard struct {
	ops      Operations
	p        *Prompter
	subject  config.SubjectDefaults
	caDays   int
	certDays int
}

// New returns a Wizard reading from in and writing to out.
func New(ops Operations, cfg config.Config, in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		ops:      ops,
		p:        NewPrompter(in, out),
		subject:  cfg.Subject,
		caDays:   cfg.CADays,
		certDays: cfg.CertDays,
	}
}

// Run loops until the user exits. Invalid input or a name already taken
// restarts the current step; any other error ends the loop and is returned.
func (w *Wizard) Run(ctx context.Context) error {
	out := w.p.Out()
	cli.Heading(out, "Welcome to the EasyCA wizard!")
	cli.Infof(out, "This tool will guide you through the process of creating a CA and signing certificates.")

	state := StateNeedRoot
	for state != StateExit {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, err := w.step(ctx, state)
		switch {
		case err == nil:
		case caerr.IsUserInput(err):
			cli.Warnf(out, "Invalid input: %v", err)
			continue
		case errors.Is(err, caerr.ErrAlreadyExists):
			cli.Warnf(out, "Name already in use: %v", err)
			continue
		default:
			return err
		}
		state = next
	}
	return nil
}

func (w *Wizard) step(ctx context.Context, state State) (State, error) {
	switch state {
	case StateNeedRoot:
		return w.needRoot(ctx)
	case StateMainMenu:
		return w.mainMenu(ctx)
	case StateCreateCSR:
		return w.createCSR(ctx)
	case StateSignCSR:
		return w.signCSR(ctx)
	default:
		return StateExit, nil
	}
}

func (w *Wizard) needRoot(ctx context.Context) (State, error) {
	if _, ok, err := w.ops.FindRoot(ctx); err != nil || ok {
		return StateMainMenu, err
	}

	out := w.p.Out()
	cli.Infof(out, "No root CA found. Let's create one.")
	d, err := w.askDetails(true)
	if err != nil {
		return StateNeedRoot, err
	}
	cli.Infof(out, "Creating CA '%s'...", d.name)
	if _, err := w.ops.CreateCA(ctx, ca.CARequest{Name: d.name, Subject: d.subject, Days: d.days}); err != nil {
		return StateNeedRoot, err
	}
	cli.Successf(out, "CA %s has been created.", d.name)
	return StateMainMenu, nil
}

func (w *Wizard) mainMenu(ctx context.Context) (State, error) {
	root, ok, err := w.ops.FindRoot(ctx)
	if err != nil {
		return StateMainMenu, err
	}
	if !ok {
		return StateNeedRoot, nil
	}

	idx, err := w.p.Choose(
		fmt.Sprintf("Root CA: %s\nAvailable actions:", root),
		[]string{"Create CSR", "Sign CSR", "Exit"},
		"Choose an action",
	)
	if err != nil {
		return StateMainMenu, err
	}
	return []State{StateCreateCSR, StateSignCSR, StateExit}[idx], nil
}

func (w *Wizard) createCSR(ctx context.Context) (State, error) {
	idx, err := w.p.Choose("Is this CSR for a sub-CA?", []string{"Yes", "No"}, "Choose an option")
	if err != nil {
		return StateCreateCSR, err
	}
	if idx == 0 {
		return w.createSubCA(ctx)
	}

	d, err := w.askDetails(false)
	if err != nil {
		return StateCreateCSR, err
	}
	out := w.p.Out()
	cli.Infof(out, "Creating CSR for '%s'...", d.name)
	if err := w.ops.CreateCSR(ctx, ca.CSRRequest{Name: d.name, Subject: d.subject, SubjectAltNames: d.sans}); err != nil {
		return StateCreateCSR, err
	}
	cli.Successf(out, "CSR for %s has been created.", d.name)
	return StateMainMenu, nil
}

func (w *Wizard) createSubCA(ctx context.Context) (State, error) {
	d, err := w.askDetails(true)
	if err != nil {
		return StateCreateCSR, err
	}
	out := w.p.Out()
	cli.Infof(out, "Creating CSR for '%s'...", d.name)
	if err := w.ops.CreateCSR(ctx, ca.CSRRequest{Name: d.name, Subject: d.subject, CA: true}); err != nil {
		return StateCreateCSR, err
	}

	caName, err := w.chooseCA(ctx)
	if err != nil {
		return StateMainMenu, err
	}
	cli.Infof(out, "Signing CSR '%s' with CA '%s'...", d.name, caName)
	if _, err := w.ops.SignCSR(ctx, ca.SignRequest{CAName: caName, CSRName: d.name, Days: d.days, IsCA: true}); err != nil {
		return StateMainMenu, err
	}
	if err := w.ops.PromoteToSubCA(ctx, d.name); err != nil {
		return StateMainMenu, err
	}
	cli.Successf(out, "Sub-CA %s has been created.", d.name)
	return StateMainMenu, nil
}

func (w *Wizard) signCSR(ctx context.Context) (State, error) {
	out := w.p.Out()
	pending, err := w.ops.PendingCSRs()
	if err != nil {
		return StateMainMenu, err
	}
	if len(pending) == 0 {
		cli.Warnf(out, "No CSRs found.")
		return StateMainMenu, nil
	}

	idx, err := w.p.Choose("Choose a CSR to sign:", pending, "Enter the index of the CSR to sign")
	if err != nil {
		return StateMainMenu, err
	}
	csrName := pending[idx]

	caName, err := w.chooseCA(ctx)
	if err != nil {
		return StateMainMenu, err
	}
	cli.Infof(out, "Signing CSR '%s' with CA '%s'...", csrName, caName)
	if _, err := w.ops.Issue(ctx, ca.SignRequest{CAName: caName, CSRName: csrName, Days: w.certDays}); err != nil {
		return StateMainMenu, err
	}
	cli.Successf(out, "Certificate for %s has been signed.", csrName)
	return StateMainMenu, nil
}

func (w *Wizard) chooseCA(ctx context.Context) (string, error) {
	candidates, err := w.ops.SigningCandidates(ctx)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", caerr.Newf("sign-csr", "", caerr.ErrNotFound, "no CA can sign")
	}
	options := make([]string, len(candidates))
	for i, c := range candidates {
		options[i] = fmt.Sprintf("%s (%s)", c.Name, cli.FormatKind(c.Kind.String()))
	}
	idx, err := w.p.Choose("Choose Signing CA:", options, "Enter the index of the CA to sign with")
	if err != nil {
		return "", err
	}
	return candidates[idx].Name, nil
}

type details struct {
	name    string
	subject toolkit.Subject
	days    int
	sans    []string
}

// askDetails asks for the subject; a CA also gets a validity, a leaf its SANs.
func (w *Wizard) askDetails(forCA bool) (details, error) {
	var d details
	var err error
	if d.name, err = w.p.Ask("Enter the common name (CN)"); err != nil {
		return d, err
	}
	fields := []struct {
		label string
		def   string
		dst   *string
	}{
		{"Enter the country (C)", w.subject.Country, &d.subject.Country},
		{"Enter the state (ST)", w.subject.State, &d.subject.State},
		{"Enter the locality (L)", w.subject.Locality, &d.subject.Locality},
		{"Enter the organization (O)", w.subject.Organization, &d.subject.Organization},
	}
	for _, f := range fields {
		if *f.dst, err = w.p.AskDefault(f.label, f.def); err != nil {
			return d, err
		}
	}

	if forCA {
		d.days, err = w.p.AskDays("Enter the validity period in days", w.caDays)
		return d, err
	}
	list, err := w.p.Ask("Enter the subject alternative names (SANs), separated by commas")
	if err != nil {
		return d, err
	}
	d.sans = names.SplitList(list)
	return d, nil
}
