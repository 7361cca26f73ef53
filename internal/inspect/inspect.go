// Package inspect reads certificates from the store and answers the two
// questions the CA hierarchy depends on: is it self-signed, and is it a CA.
package inspect

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/remiblancher/easyca/internal/caerr"
	"github.com/remiblancher/easyca/internal/toolkit"
)

// Inspector wraps the toolkit's parse and render capabilities.
type Inspector struct {
	tk toolkit.Toolkit
}

// New returns an Inspector backed by tk.
func New(tk toolkit.Toolkit) *Inspector {
	return &Inspector{tk: tk}
}

// Parse parses PEM certificate bytes.
func (i *Inspector) Parse(certPEM []byte) (*toolkit.CertInfo, error) {
	info, err := i.tk.ParseCertificate(certPEM)
	if err != nil {
		if errors.Is(err, caerr.ErrCertificateParse) {
			return nil, err
		}
		return nil, caerr.New("inspect", "", caerr.ErrCertificateParse, err)
	}
	return info, nil
}

// ParseFile parses the certificate stored at path.
func (i *Inspector) ParseFile(path string) (*toolkit.CertInfo, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	info, err := i.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

// Render returns the human-readable form of the certificate at path.
// A missing file fails before the toolkit is called.
func (i *Inspector) Render(path string) (string, error) {
	data, err := readFile(path)
	if err != nil {
		return "", err
	}
	return i.tk.RenderCertificate(data)
}

// IsSelfSigned reports whether the issuer and subject fingerprints match.
// This is the only rule used to detect a root CA.
func IsSelfSigned(info *toolkit.CertInfo) bool {
	return info.IssuerFingerprint == info.SubjectFingerprint
}

// IsCA reports the Basic Constraints CA flag. A self-signed certificate
// without the flag is not a CA.
func IsCA(info *toolkit.CertInfo) bool {
	return info.IsCA
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, caerr.New("inspect", path, caerr.ErrNotFound, err)
		}
		return nil, caerr.New("inspect", path, caerr.ErrStorage, err)
	}
	return data, nil
}
