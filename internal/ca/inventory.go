package ca

import (
	"context"

	"github.com/remiblancher/easyca/internal/index"
)

// CAStatus is a CA directory and what the resolver makes of it.
type CAStatus struct {
	Name string
	Kind Kind
	Err  error // set when the CA could not be classified
}

// Inventory summarises a base directory.
type Inventory struct {
	CAs         []CAStatus
	PendingCSRs []string
	Issued      []index.Entry // empty when no index is attached
}

// Inventory lists the CAs with their classification, the pending requests
// and the certificates recorded in the index.
func (m *Manager) Inventory(ctx context.Context) (*Inventory, error) {
	names, err := m.store.ListCAs()
	if err != nil {
		return nil, err
	}
	inv := &Inventory{}
	for _, name := range names {
		kind, err := m.Classify(ctx, name)
		inv.CAs = append(inv.CAs, CAStatus{Name: name, Kind: kind, Err: err})
	}

	inv.PendingCSRs, err = m.store.ListPendingCSRs()
	if err != nil {
		return nil, err
	}

	if m.index != nil {
		inv.Issued, err = m.index.List("")
		if err != nil {
			return nil, err
		}
	}
	return inv, nil
}
