package ca

import (
	"context"
	"errors"
	"fmt"

	"github.com/remiblancher/easyca/internal/caerr"
	"github.com/remiblancher/easyca/internal/inspect"
	"github.com/remiblancher/easyca/internal/names"
)

// move is one relocation of the promotion transaction.
type move struct {
	step     string
	src, dst string
}

// PromoteToSubCA turns a signed CA request into ca/<name>/.
//
// The certificate and the request key are moved into a staging directory
// which is renamed into place only once both are there. Any failure before
// that rename puts the files back. The request file is removed last.
func (m *Manager) PromoteToSubCA(ctx context.Context, csrName string) (err error) {
	name, err := names.CommonName(csrName)
	if err != nil {
		return err
	}
	certPath := m.store.CertPath(name)
	keyPath, reqPath := m.store.CSRPaths(name)
	for _, p := range []string{certPath, keyPath, reqPath} {
		if !m.store.Exists(p) {
			return caerr.Newf("promote", name, caerr.ErrNotFound, "%s missing", p)
		}
	}
	if err := m.caDirFree("promote", name); err != nil {
		return err
	}
	info, err := m.inspector.ParseFile(certPath)
	if err != nil {
		return err
	}
	if !inspect.IsCA(info) {
		return caerr.New("promote", name, caerr.ErrNotACA, nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	defer func() {
		err = audited(err, func(opErr error) error {
			return m.audit.SubCAPromoted(name, m.store.CADir(name), opErr)
		})
	}()

	staging, err := m.store.NewStaging()
	if err != nil {
		return err
	}
	stagedKey, stagedCert := m.store.StagedCAPaths(staging)
	moves := []move{
		{step: "move certificate", src: certPath, dst: stagedCert},
		{step: "move key", src: keyPath, dst: stagedKey},
	}

	var done []move
	for _, mv := range moves {
		if err := m.store.Relocate(mv.src, mv.dst); err != nil {
			return m.rollback(name, staging, done, err)
		}
		done = append(done, mv)
	}
	if err := m.store.Commit(staging, name); err != nil {
		return m.rollback(name, staging, done, err)
	}

	if err := m.store.Remove(reqPath); err != nil {
		return &caerr.PartialTransactionError{
			Name:      name,
			Committed: []string{"move certificate", "move key", "commit"},
			Pending:   []string{"remove request"},
			Err:       err,
		}
	}

	if m.index != nil {
		if err := m.index.MarkPromoted(name); err != nil && !errors.Is(err, caerr.ErrNotFound) {
			return fmt.Errorf("sub-CA promoted but index not updated: %w", err)
		}
	}
	return nil
}

// rollback undoes the moves in reverse order and drops the staging
// directory. If a file cannot be put back the store is left inconsistent
// and a PartialTransactionError says which steps still hold.
func (m *Manager) rollback(name, staging string, done []move, cause error) error {
	for i := len(done) - 1; i >= 0; i-- {
		mv := done[i]
		if err := m.store.Relocate(mv.dst, mv.src); err != nil {
			committed := make([]string, 0, i+1)
			for _, d := range done[:i+1] {
				committed = append(committed, d.step)
			}
			return &caerr.PartialTransactionError{
				Name:      name,
				Committed: committed,
				Pending:   []string{"commit", "remove request"},
				Err:       errors.Join(cause, fmt.Errorf("rollback of %s: %w", mv.step, err)),
			}
		}
	}
	if err := m.store.DiscardStaging(staging); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}
