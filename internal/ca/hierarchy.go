package ca

import (
	"context"
	"sort"

	"github.com/remiblancher/easyca/internal/caerr"
	"github.com/remiblancher/easyca/internal/inspect"
	"github.com/remiblancher/easyca/internal/store"
	"github.com/remiblancher/easyca/internal/toolkit"
)

// Kind is the position of a CA in the hierarchy.
type Kind int

const (
	KindNotACA Kind = iota
	KindRoot
	KindSub
)

// String returns the display name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindSub:
		return "sub"
	default:
		return "not-a-ca"
	}
}

// CAEntry is a CA that can sign requests.
type CAEntry struct {
	Name string
	Kind Kind
	Info *toolkit.CertInfo
}

// Resolver answers hierarchy questions from the certificates in ca/.
//
// A "sub" CA is any CA that is not the designated root. The resolver does
// not validate chains: with several self-signed CAs in one store, the
// answer depends on directory order.
type Resolver struct {
	store     *store.Store
	inspector *inspect.Inspector
}

// NewResolver returns a Resolver over s.
func NewResolver(s *store.Store, inspector *inspect.Inspector) *Resolver {
	return &Resolver{store: s, inspector: inspector}
}

// FindRoot returns the first self-signed CA in directory order.
// CAs without a certificate are skipped; a malformed certificate is an error.
// A self-signed certificate without the CA flag is never the root.
func (r *Resolver) FindRoot(ctx context.Context) (string, bool, error) {
	names, err := r.store.ListCAs()
	if err != nil {
		return "", false, err
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		_, certPath := r.store.CAPaths(name)
		if !r.store.Exists(certPath) {
			continue
		}
		info, err := r.inspector.ParseFile(certPath)
		if err != nil {
			return "", false, err
		}
		if inspect.IsSelfSigned(info) && inspect.IsCA(info) {
			return name, true, nil
		}
	}
	return "", false, nil
}

// Classify reports whether name is the root or a sub CA.
func (r *Resolver) Classify(ctx context.Context, name string) (Kind, error) {
	_, certPath := r.store.CAPaths(name)
	if !r.store.Exists(certPath) {
		return KindNotACA, caerr.Newf("classify", name, caerr.ErrNotFound, "no CA certificate")
	}
	info, err := r.inspector.ParseFile(certPath)
	if err != nil {
		return KindNotACA, err
	}
	if !inspect.IsCA(info) {
		return KindNotACA, caerr.New("classify", name, caerr.ErrNotACA, nil)
	}

	root, ok, err := r.FindRoot(ctx)
	if err != nil {
		return KindNotACA, err
	}
	if ok && root == name {
		return KindRoot, nil
	}
	return KindSub, nil
}

// SigningCandidates lists the CAs able to sign: the root first, then the
// sub CAs by name. Directories without a certificate or whose certificate
// lacks the CA flag are left out.
func (r *Resolver) SigningCandidates(ctx context.Context) ([]CAEntry, error) {
	names, err := r.store.ListCAs()
	if err != nil {
		return nil, err
	}
	root, _, err := r.FindRoot(ctx)
	if err != nil {
		return nil, err
	}

	var entries []CAEntry
	for _, name := range names {
		_, certPath := r.store.CAPaths(name)
		if !r.store.Exists(certPath) {
			continue
		}
		info, err := r.inspector.ParseFile(certPath)
		if err != nil {
			return nil, err
		}
		if !inspect.IsCA(info) {
			continue
		}
		kind := KindSub
		if name == root {
			kind = KindRoot
		}
		entries = append(entries, CAEntry{Name: name, Kind: kind, Info: info})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if (entries[i].Kind == KindRoot) != (entries[j].Kind == KindRoot) {
			return entries[i].Kind == KindRoot
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}
