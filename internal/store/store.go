// Package store implements the on-disk layout of an EasyCA directory.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/remiblancher/easyca/internal/caerr"
)

// Store manages PKI artifacts on the filesystem.
// Directory structure:
//
//	{base}/
//	  ├── ca/
//	  │   └── {name}/
//	  │       ├── ca.crt   # CA certificate
//	  │       └── ca.key   # CA private key
//	  ├── csr/
//	  │   ├── {name}.csr   # pending request
//	  │   └── {name}.key   # key of the pending request
//	  ├── certs/
//	  │   └── {name}.crt   # issued certificate
//	  └── keys/
//	      └── {name}.key   # key archived after signing
//
// Directories are created lazily. The store does no locking: two
// processes working on the same base directory can race.
type Store struct {
	basePath string
}

const (
	dirCA    = "ca"
	dirCSR   = "csr"
	dirCerts = "certs"
	dirKeys  = "keys"

	extCert = ".crt"
	extKey  = ".key"
	extCSR  = ".csr"

	caCertFile = "ca.crt"
	caKeyFile  = "ca.key"

	stagingPrefix = ".staging-"

	// File permissions.
	PermKey  fs.FileMode = 0600
	PermCert fs.FileMode = 0644
	permDir  fs.FileMode = 0755
)

// New creates a store rooted at basePath.
func New(basePath string) *Store {
	return &Store{basePath: basePath}
}

// BasePath returns the base directory of the store.
func (s *Store) BasePath() string {
	return s.basePath
}

// CADir returns the directory of the named CA.
func (s *Store) CADir(name string) string {
	return filepath.Join(s.basePath, dirCA, name)
}

// CAPaths returns the key and certificate paths of the named CA.
func (s *Store) CAPaths(name string) (keyPath, certPath string) {
	dir := s.CADir(name)
	return filepath.Join(dir, caKeyFile), filepath.Join(dir, caCertFile)
}

// CSRPaths returns the key and request paths of a pending CSR.
func (s *Store) CSRPaths(name string) (keyPath, reqPath string) {
	dir := filepath.Join(s.basePath, dirCSR)
	return filepath.Join(dir, name+extKey), filepath.Join(dir, name+extCSR)
}

// CertPath returns the path of an issued certificate.
func (s *Store) CertPath(name string) string {
	return filepath.Join(s.basePath, dirCerts, name+extCert)
}

// ArchivedKeyPath returns where the key of a signed CSR is archived.
func (s *Store) ArchivedKeyPath(name string) string {
	return filepath.Join(s.basePath, dirKeys, name+extKey)
}

// ListCAs returns the names of the CA directories in directory order.
// Entries starting with '.' (staging directories) are skipped.
func (s *Store) ListCAs() ([]string, error) {
	entries, err := s.readDir(dirCA)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ListPendingCSRs returns the stems of the pending request files.
func (s *Store) ListPendingCSRs() ([]string, error) {
	return s.listStems(dirCSR, extCSR)
}

// ListCertificates returns the stems of the issued certificate files.
func (s *Store) ListCertificates() ([]string, error) {
	return s.listStems(dirCerts, extCert)
}

func (s *Store) listStems(dir, ext string) ([]string, error) {
	entries, err := s.readDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ext) && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, strings.TrimSuffix(e.Name(), ext))
		}
	}
	return names, nil
}

// readDir lists a top-level directory, creating it if absent.
func (s *Store) readDir(name string) ([]os.DirEntry, error) {
	dir := filepath.Join(s.basePath, name)
	if err := os.MkdirAll(dir, permDir); err != nil {
		return nil, caerr.New("store", dir, caerr.ErrStorage, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, caerr.New("store", dir, caerr.ErrStorage, err)
	}
	return entries, nil
}

// Exists reports whether path exists.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadFile reads an artifact, mapping a missing file to caerr.ErrNotFound.
func (s *Store) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, caerr.New("store", path, caerr.ErrNotFound, err)
		}
		return nil, caerr.New("store", path, caerr.ErrStorage, err)
	}
	return data, nil
}

// WriteFile writes data next to path under a temporary name and renames it
// into place, so readers never see a half-written artifact.
func (s *Store) WriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, permDir); err != nil {
		return caerr.New("store", dir, caerr.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return caerr.New("store", path, caerr.ErrStorage, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		cleanup()
		return caerr.New("store", path, caerr.ErrStorage, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return caerr.New("store", path, caerr.ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return caerr.New("store", path, caerr.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return caerr.New("store", path, caerr.ErrStorage, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return caerr.New("store", path, caerr.ErrStorage, err)
	}
	return nil
}

// Relocate moves src to dst, creating the parents of dst.
func (s *Store) Relocate(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return caerr.New("relocate", src, caerr.ErrStorage, err)
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, permDir); err != nil {
		return caerr.New("relocate", dir, caerr.ErrStorage, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return caerr.New("relocate", src, caerr.ErrStorage, err)
	}
	return nil
}

// Remove deletes a file. Removing a missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return caerr.New("remove", path, caerr.ErrStorage, err)
	}
	return nil
}

// NewStaging creates an empty staging directory inside ca/.
// ListCAs never reports it.
func (s *Store) NewStaging() (string, error) {
	dir := filepath.Join(s.basePath, dirCA, stagingPrefix+uuid.NewString())
	if err := os.MkdirAll(dir, permDir); err != nil {
		return "", caerr.New("staging", dir, caerr.ErrStorage, err)
	}
	return dir, nil
}

// StagedCAPaths returns the key and certificate paths inside a staging directory.
func (s *Store) StagedCAPaths(staging string) (keyPath, certPath string) {
	return filepath.Join(staging, caKeyFile), filepath.Join(staging, caCertFile)
}

// Commit renames a staging directory to ca/<name>.
func (s *Store) Commit(staging, name string) error {
	target := s.CADir(name)
	if s.Exists(target) {
		return caerr.Newf("commit", name, caerr.ErrAlreadyExists, "CA directory %s exists", target)
	}
	if err := os.Rename(staging, target); err != nil {
		return caerr.New("commit", name, caerr.ErrStorage, fmt.Errorf("rename %s: %w", staging, err))
	}
	return nil
}

// DiscardStaging removes a staging directory and whatever is left in it.
func (s *Store) DiscardStaging(staging string) error {
	if !strings.HasPrefix(filepath.Base(staging), stagingPrefix) {
		return caerr.Newf("staging", staging, caerr.ErrStorage, "not a staging directory")
	}
	if err := os.RemoveAll(staging); err != nil {
		return caerr.New("staging", staging, caerr.ErrStorage, err)
	}
	return nil
}
