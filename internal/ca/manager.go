// Package ca implements the EasyCA lifecycle: root creation, certificate
// signing requests, signing, archival of issued keys and sub-CA promotion.
//
// Every artifact lives in a store.Store. The cryptography is delegated to a
// toolkit.Toolkit whose calls are bounded by the configured timeout.
package ca

import (
	"context"
	"errors"
	"fmt"

	"github.com/remiblancher/easyca/internal/audit"
	"github.com/remiblancher/easyca/internal/caerr"
	"github.com/remiblancher/easyca/internal/config"
	"github.com/remiblancher/easyca/internal/index"
	"github.com/remiblancher/easyca/internal/inspect"
	"github.com/remiblancher/easyca/internal/names"
	"github.com/remiblancher/easyca/internal/store"
	"github.com/remiblancher/easyca/internal/toolkit"
)

// Manager runs the lifecycle operations against one base directory.
type Manager struct {
	*Resolver

	cfg       config.Config
	store     *store.Store
	tk        toolkit.Toolkit
	inspector *inspect.Inspector
	audit     *audit.Logger
	index     *index.Index
}

// Option configures a Manager.
type Option func(*Manager)

// WithAudit records lifecycle events in l.
func WithAudit(l *audit.Logger) Option {
	return func(m *Manager) { m.audit = l }
}

// WithIndex records issued certificates in x.
func WithIndex(x *index.Index) Option {
	return func(m *Manager) { m.index = x }
}

// NewManager returns a Manager for cfg.BaseDir using tk for cryptography.
func NewManager(cfg config.Config, tk toolkit.Toolkit, opts ...Option) *Manager {
	tk = toolkit.WithTimeout(tk, cfg.Timeout)
	s := store.New(cfg.BaseDir)
	insp := inspect.New(tk)
	m := &Manager{
		Resolver:  NewResolver(s, insp),
		cfg:       cfg,
		store:     s,
		tk:        tk,
		inspector: insp,
		audit:     audit.NewLogger(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() *store.Store {
	return m.store
}

// PendingCSRs lists the requests waiting in csr/.
func (m *Manager) PendingCSRs() ([]string, error) {
	return m.store.ListPendingCSRs()
}

// Inspect parses the certificate at path.
func (m *Manager) Inspect(path string) (*toolkit.CertInfo, error) {
	return m.inspector.ParseFile(path)
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() config.Config {
	return m.cfg
}

// audited logs the outcome of an operation. A failed audit write fails a
// successful operation; an operation error always wins.
func audited(opErr error, log func(error) error) error {
	if err := log(opErr); err != nil && opErr == nil {
		return err
	}
	return opErr
}

// CARequest describes a new root CA.
type CARequest struct {
	Name      string
	Subject   toolkit.Subject // CommonName is taken from Name
	Days      int             // 0 means the configured CA validity
	Algorithm toolkit.AlgorithmID
}

// CreateCA creates a self-signed root CA in ca/<name>/.
func (m *Manager) CreateCA(ctx context.Context, req CARequest) (info *toolkit.CertInfo, err error) {
	name, err := names.CommonName(req.Name)
	if err != nil {
		return nil, err
	}
	days := req.Days
	if days == 0 {
		days = m.cfg.CADays
	}
	alg := req.Algorithm
	if alg == "" {
		alg = m.cfg.CAKeyAlgorithm
	}
	if days < 0 {
		return nil, caerr.Newf("create-ca", name, caerr.ErrUserInput, "validity must be positive, got %d days", days)
	}
	if err := m.caDirFree("create-ca", name); err != nil {
		return nil, err
	}

	subject := req.Subject
	subject.CommonName = name
	defer func() {
		err = audited(err, func(opErr error) error {
			var subj string
			if info != nil {
				subj = info.Subject
			}
			return m.audit.CACreated(name, subj, alg.String(), days, opErr)
		})
		if err != nil {
			info = nil
		}
	}()

	km, err := m.tk.NewSelfSignedCA(ctx, toolkit.CARequest{Subject: subject, Days: days, Algorithm: alg})
	if err != nil {
		return nil, err
	}

	// Both files appear in ca/<name>/ together or not at all.
	staging, err := m.store.NewStaging()
	if err != nil {
		return nil, err
	}
	keyPath, certPath := m.store.StagedCAPaths(staging)
	err = m.store.WriteFile(keyPath, km.KeyPEM, store.PermKey)
	if err == nil {
		err = m.store.WriteFile(certPath, km.PEM, store.PermCert)
	}
	if err == nil {
		err = m.store.Commit(staging, name)
	}
	if err != nil {
		return nil, errors.Join(err, m.store.DiscardStaging(staging))
	}
	return m.inspector.Parse(km.PEM)
}

// CSRRequest describes a new pending request.
type CSRRequest struct {
	Name            string
	Subject         toolkit.Subject // CommonName is taken from Name
	SubjectAltNames []string
	CA              bool
	Algorithm       toolkit.AlgorithmID // empty means the configured default
}

// CreateCSR generates a key and a request in csr/.
func (m *Manager) CreateCSR(ctx context.Context, req CSRRequest) (err error) {
	name, err := names.CommonName(req.Name)
	if err != nil {
		return err
	}
	sans, err := names.SubjectAltNames(req.SubjectAltNames)
	if err != nil {
		return err
	}
	alg := req.Algorithm
	if alg == "" {
		alg = m.cfg.KeyAlgorithm
		if req.CA {
			alg = m.cfg.CAKeyAlgorithm
		}
	}
	keyPath, reqPath := m.store.CSRPaths(name)
	if m.store.Exists(reqPath) {
		return caerr.Newf("create-csr", name, caerr.ErrAlreadyExists, "request %s exists", reqPath)
	}
	if req.CA {
		if err := m.caDirFree("create-csr", name); err != nil {
			return err
		}
		if certPath := m.store.CertPath(name); m.store.Exists(certPath) {
			return caerr.Newf("create-csr", name, caerr.ErrAlreadyExists, "certificate %s exists", certPath)
		}
	}

	defer func() {
		err = audited(err, func(opErr error) error {
			return m.audit.CSRCreated(name, alg.String(), opErr)
		})
	}()

	subject := req.Subject
	subject.CommonName = name
	km, err := m.tk.NewCSR(ctx, toolkit.CSRRequest{Subject: subject, DNSNames: sans, CA: req.CA, Algorithm: alg})
	if err != nil {
		return err
	}
	if err := m.store.WriteFile(keyPath, km.KeyPEM, store.PermKey); err != nil {
		return err
	}
	if err := m.store.WriteFile(reqPath, km.PEM, store.PermCert); err != nil {
		_ = m.store.Remove(keyPath)
		return err
	}
	return nil
}

// SignRequest selects a pending request and the CA that signs it.
type SignRequest struct {
	CAName    string // empty means the root
	CSRName   string
	Days      int // 0 means the configured certificate validity
	IsCA      bool
	Overwrite bool
}

// SignCSR signs csr/<CSRName>.csr with the selected CA and writes
// certs/<CSRName>.crt. The request and its key stay in place.
func (m *Manager) SignCSR(ctx context.Context, req SignRequest) (info *toolkit.CertInfo, err error) {
	csrName, err := names.CommonName(req.CSRName)
	if err != nil {
		return nil, err
	}
	caName := req.CAName
	if caName == "" {
		root, ok, err := m.FindRoot(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, caerr.Newf("sign-csr", csrName, caerr.ErrNotFound, "no root CA in %s", m.store.BasePath())
		}
		caName = root
	} else if caName, err = names.CommonName(caName); err != nil {
		return nil, err
	}
	days := req.Days
	if days == 0 {
		days = m.cfg.CertDays
	}
	if days < 0 {
		return nil, caerr.Newf("sign-csr", csrName, caerr.ErrUserInput, "validity must be positive, got %d days", days)
	}

	caKeyPath, caCertPath := m.store.CAPaths(caName)
	caCert, err := m.readInput(caName, caCertPath, "no CA certificate")
	if err != nil {
		return nil, err
	}
	_, reqPath := m.store.CSRPaths(csrName)
	csr, err := m.readInput(csrName, reqPath, "no pending request")
	if err != nil {
		return nil, err
	}
	caInfo, err := m.inspector.Parse(caCert)
	if err != nil {
		return nil, err
	}
	if !inspect.IsCA(caInfo) {
		return nil, caerr.New("sign-csr", caName, caerr.ErrNotACA, nil)
	}
	if req.IsCA {
		if err := m.caDirFree("sign-csr", csrName); err != nil {
			return nil, err
		}
	}
	certPath := m.store.CertPath(csrName)
	if !req.Overwrite && m.store.Exists(certPath) {
		return nil, caerr.Newf("sign-csr", csrName, caerr.ErrAlreadyExists, "certificate %s exists", certPath)
	}
	caKey, err := m.readInput(caName, caKeyPath, "no CA key")
	if err != nil {
		return nil, err
	}

	defer func() {
		err = audited(err, func(opErr error) error {
			var serial, subject string
			if info != nil {
				serial, subject = info.SerialNumber, info.Subject
			}
			return m.audit.CertIssued(caName, csrName, serial, subject, days, opErr)
		})
		if err != nil {
			info = nil
		}
	}()

	certPEM, err := m.tk.SignCSR(ctx, toolkit.SignRequest{
		CSR:    csr,
		CACert: caCert,
		CAKey:  caKey,
		Days:   days,
		IsCA:   req.IsCA,
	})
	if err != nil {
		return nil, signingError(csrName, err)
	}
	info, err = m.inspector.Parse(certPEM)
	if err != nil {
		return nil, err
	}
	if err := m.serialUnused(caName, info.SerialNumber); err != nil {
		return nil, err
	}
	if err := m.store.WriteFile(certPath, certPEM, store.PermCert); err != nil {
		return nil, err
	}

	if m.index != nil {
		kind := index.KindLeaf
		if req.IsCA {
			kind = index.KindSubCA
		}
		if err := m.index.Record(index.Entry{
			CA:       caName,
			Name:     csrName,
			Serial:   info.SerialNumber,
			Subject:  info.Subject,
			Kind:     kind,
			NotAfter: info.NotAfter,
		}); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// serialUnused fails when caName already issued serial. Without an index
// there is nothing to check against.
func (m *Manager) serialUnused(caName, serial string) error {
	if m.index == nil {
		return nil
	}
	prev, err := m.index.Get(caName, serial)
	switch {
	case err == nil:
		return caerr.Newf("sign-csr", prev.Name, caerr.ErrSigning, "serial %s already issued by %s", serial, caName)
	case errors.Is(err, caerr.ErrNotFound):
		return nil
	default:
		return err
	}
}

// caDirFree fails when ca/<name> exists, so a CA certificate is never
// issued for a name that cannot be promoted.
func (m *Manager) caDirFree(op, name string) error {
	if dir := m.store.CADir(name); m.store.Exists(dir) {
		return caerr.Newf(op, name, caerr.ErrAlreadyExists, "CA directory %s exists", dir)
	}
	return nil
}

func (m *Manager) readInput(name, path, missing string) ([]byte, error) {
	data, err := m.store.ReadFile(path)
	if errors.Is(err, caerr.ErrNotFound) {
		return nil, caerr.New("sign-csr", name, caerr.ErrNotFound, errors.New(missing))
	}
	return data, err
}

// signingError gives toolkit failures without a kind the signing kind.
func signingError(name string, err error) error {
	for _, kind := range []error{caerr.ErrSigning, caerr.ErrToolkit, caerr.ErrCertificateParse} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return caerr.New("sign-csr", name, caerr.ErrSigning, err)
}

// Issue signs a leaf request, archives its key in keys/ and removes the
// request. The key only moves once the certificate is on disk.
func (m *Manager) Issue(ctx context.Context, req SignRequest) (*toolkit.CertInfo, error) {
	req.IsCA = false
	info, err := m.SignCSR(ctx, req)
	if err != nil {
		return nil, err
	}

	name, _ := names.CommonName(req.CSRName)
	keyPath, reqPath := m.store.CSRPaths(name)
	archived := m.store.ArchivedKeyPath(name)
	err = m.store.Relocate(keyPath, archived)
	if auditErr := m.audit.KeyArchived(name, archived, err); err == nil && auditErr != nil {
		return nil, auditErr
	}
	if err != nil {
		return nil, fmt.Errorf("certificate issued but key not archived: %w", err)
	}
	if err := m.store.Remove(reqPath); err != nil {
		return nil, fmt.Errorf("certificate issued but request not removed: %w", err)
	}
	return info, nil
}

// ShowCertificate renders certs/<name>.crt.
func (m *Manager) ShowCertificate(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := names.CommonName(name)
	if err != nil {
		return "", err
	}
	return m.inspector.Render(m.store.CertPath(name))
}
