package toolkit

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/awnumar/memguard"

	"github.com/remiblancher/easyca/internal/caerr"
)

const (
	pemCertificate = "CERTIFICATE"
	pemRequest     = "CERTIFICATE REQUEST"
	pemPrivateKey  = "PRIVATE KEY"

	// backdate absorbs clock skew between issuer and relying party.
	backdate = time.Minute
)

var oidBasicConstraints = asn1.ObjectIdentifier{2, 5, 29, 19}

// basicConstraints mirrors the RFC 5280 BasicConstraints structure.
type basicConstraints struct {
	IsCA       bool `asn1:"optional"`
	MaxPathLen int  `asn1:"optional,default:-1"`
}

// Native implements Toolkit with crypto/x509.
type Native struct {
	Random io.Reader
	Now    func() time.Time
}

var _ Toolkit = (*Native)(nil)

// NewNative returns a Native toolkit using crypto/rand and the wall clock.
func NewNative() *Native {
	return &Native{Random: rand.Reader, Now: time.Now}
}

func (n *Native) random() io.Reader {
	if n.Random == nil {
		return rand.Reader
	}
	return n.Random
}

func (n *Native) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

// NewSelfSignedCA generates a key pair and a self-signed CA certificate.
func (n *Native) NewSelfSignedCA(ctx context.Context, req CARequest) (*KeyMaterial, error) {
	if req.Days <= 0 {
		return nil, caerr.Newf("toolkit", req.Subject.CommonName, caerr.ErrToolkit, "validity must be positive, got %d days", req.Days)
	}
	priv, err := generateKey(n.random(), req.Algorithm)
	if err != nil {
		return nil, caerr.New("toolkit", req.Subject.CommonName, caerr.ErrToolkit, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, caerr.New("toolkit", req.Subject.CommonName, caerr.ErrToolkit, err)
	}

	serial, err := n.serialNumber()
	if err != nil {
		return nil, caerr.New("toolkit", req.Subject.CommonName, caerr.ErrToolkit, err)
	}

	now := n.now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               req.Subject.name(),
		NotBefore:             now.Add(-backdate),
		NotAfter:              now.AddDate(0, 0, req.Days),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(n.random(), tmpl, tmpl, priv.Public(), priv)
	if err != nil {
		return nil, caerr.New("toolkit", req.Subject.CommonName, caerr.ErrToolkit, fmt.Errorf("failed to create certificate: %w", err))
	}

	keyPEM, err := encodeKey(priv)
	if err != nil {
		return nil, caerr.New("toolkit", req.Subject.CommonName, caerr.ErrToolkit, err)
	}

	return &KeyMaterial{
		KeyPEM: keyPEM,
		PEM:    pem.EncodeToMemory(&pem.Block{Type: pemCertificate, Bytes: der}),
	}, nil
}

// NewCSR generates a key pair and a certificate signing request.
func (n *Native) NewCSR(ctx context.Context, req CSRRequest) (*KeyMaterial, error) {
	priv, err := generateKey(n.random(), req.Algorithm)
	if err != nil {
		return nil, caerr.New("toolkit", req.Subject.CommonName, caerr.ErrToolkit, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, caerr.New("toolkit", req.Subject.CommonName, caerr.ErrToolkit, err)
	}

	tmpl := &x509.CertificateRequest{
		Subject:  req.Subject.name(),
		DNSNames: req.DNSNames,
	}
	if req.CA {
		value, err := asn1.Marshal(basicConstraints{IsCA: true, MaxPathLen: -1})
		if err != nil {
			return nil, caerr.New("toolkit", req.Subject.CommonName, caerr.ErrToolkit, err)
		}
		tmpl.ExtraExtensions = append(tmpl.ExtraExtensions, pkix.Extension{
			Id:       oidBasicConstraints,
			Critical: true,
			Value:    value,
		})
	}

	der, err := x509.CreateCertificateRequest(n.random(), tmpl, priv)
	if err != nil {
		return nil, caerr.New("toolkit", req.Subject.CommonName, caerr.ErrToolkit, fmt.Errorf("failed to create CSR: %w", err))
	}

	keyPEM, err := encodeKey(priv)
	if err != nil {
		return nil, caerr.New("toolkit", req.Subject.CommonName, caerr.ErrToolkit, err)
	}

	return &KeyMaterial{
		KeyPEM: keyPEM,
		PEM:    pem.EncodeToMemory(&pem.Block{Type: pemRequest, Bytes: der}),
	}, nil
}

// SignCSR issues a certificate for the request, signed by the CA.
// req.CAKey is wiped once it has been moved into locked memory.
func (n *Native) SignCSR(ctx context.Context, req SignRequest) ([]byte, error) {
	keyBuf := memguard.NewBufferFromBytes(req.CAKey)
	defer keyBuf.Destroy()

	if req.Days <= 0 {
		return nil, caerr.Newf("toolkit", "", caerr.ErrSigning, "validity must be positive, got %d days", req.Days)
	}

	csr, err := parseCSR(req.CSR)
	if err != nil {
		return nil, caerr.New("toolkit", "", caerr.ErrSigning, err)
	}
	if err := csr.CheckSignature(); err != nil {
		return nil, caerr.New("toolkit", csr.Subject.CommonName, caerr.ErrSigning, fmt.Errorf("CSR signature invalid: %w", err))
	}

	caCert, err := parseCertificate(req.CACert)
	if err != nil {
		return nil, caerr.New("toolkit", csr.Subject.CommonName, caerr.ErrCertificateParse, err)
	}
	caKey, err := parsePrivateKey(keyBuf.Bytes())
	if err != nil {
		return nil, caerr.New("toolkit", csr.Subject.CommonName, caerr.ErrSigning, err)
	}
	if !publicKeysEqual(caKey.Public(), caCert.PublicKey) {
		return nil, caerr.Newf("toolkit", csr.Subject.CommonName, caerr.ErrSigning, "CA key does not match CA certificate")
	}
	if err := ctx.Err(); err != nil {
		return nil, caerr.New("toolkit", csr.Subject.CommonName, caerr.ErrToolkit, err)
	}

	serial, err := n.serialNumber()
	if err != nil {
		return nil, caerr.New("toolkit", csr.Subject.CommonName, caerr.ErrSigning, err)
	}

	now := n.now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               csr.Subject,
		NotBefore:             now.Add(-backdate),
		NotAfter:              now.AddDate(0, 0, req.Days),
		DNSNames:              csr.DNSNames,
		IPAddresses:           csr.IPAddresses,
		EmailAddresses:        csr.EmailAddresses,
		URIs:                  csr.URIs,
		BasicConstraintsValid: true,
	}
	if req.IsCA {
		tmpl.IsCA = true
		tmpl.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature
	} else {
		tmpl.KeyUsage = x509.KeyUsageDigitalSignature
		if _, ok := csr.PublicKey.(*rsa.PublicKey); ok {
			tmpl.KeyUsage |= x509.KeyUsageKeyEncipherment
		}
		tmpl.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}
	}

	der, err := x509.CreateCertificate(n.random(), tmpl, caCert, csr.PublicKey, caKey)
	if err != nil {
		return nil, caerr.New("toolkit", csr.Subject.CommonName, caerr.ErrSigning, fmt.Errorf("failed to sign certificate: %w", err))
	}

	return pem.EncodeToMemory(&pem.Block{Type: pemCertificate, Bytes: der}), nil
}

// ParseCertificate extracts the identity of a PEM certificate.
func (n *Native) ParseCertificate(certPEM []byte) (*CertInfo, error) {
	cert, err := parseCertificate(certPEM)
	if err != nil {
		return nil, caerr.New("toolkit", "", caerr.ErrCertificateParse, err)
	}
	sum := sha256.Sum256(cert.Raw)
	return &CertInfo{
		Subject:            cert.Subject.String(),
		Issuer:             cert.Issuer.String(),
		SubjectFingerprint: NameFingerprint(cert.RawSubject),
		IssuerFingerprint:  NameFingerprint(cert.RawIssuer),
		IsCA:               cert.BasicConstraintsValid && cert.IsCA,
		SerialNumber:       hex.EncodeToString(cert.SerialNumber.Bytes()),
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		DNSNames:           cert.DNSNames,
		SHA256:             hex.EncodeToString(sum[:]),
	}, nil
}

// RenderCertificate renders a PEM certificate as human-readable text.
func (n *Native) RenderCertificate(certPEM []byte) (string, error) {
	cert, err := parseCertificate(certPEM)
	if err != nil {
		return "", caerr.New("toolkit", "", caerr.ErrCertificateParse, err)
	}
	return render(cert), nil
}

func (n *Native) serialNumber() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(n.random(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	// Avoid a zero serial, which RFC 5280 forbids.
	return serial.Add(serial, big.NewInt(1)), nil
}

func (s Subject) name() pkix.Name {
	name := pkix.Name{CommonName: s.CommonName}
	if s.Country != "" {
		name.Country = []string{s.Country}
	}
	if s.State != "" {
		name.Province = []string{s.State}
	}
	if s.Locality != "" {
		name.Locality = []string{s.Locality}
	}
	if s.Organization != "" {
		name.Organization = []string{s.Organization}
	}
	return name
}

func encodeKey(priv crypto.Signer) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPrivateKey, Bytes: der}), nil
}

func decodePEM(data []byte, want string) ([]byte, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	if block.Type != want {
		return nil, fmt.Errorf("unexpected PEM type %q, want %q", block.Type, want)
	}
	return block.Bytes, nil
}

func parseCertificate(data []byte) (*x509.Certificate, error) {
	der, err := decodePEM(data, pemCertificate)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

func parseCSR(data []byte) (*x509.CertificateRequest, error) {
	der, err := decodePEM(data, pemRequest)
	if err != nil {
		return nil, err
	}
	csr, err := x509.ParseCertificateRequest(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSR: %w", err)
	}
	return csr, nil
}

// parsePrivateKey accepts PKCS#8 as well as the legacy PKCS#1 and SEC 1
// encodings written by older openssl versions.
func parsePrivateKey(data []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to decode private key PEM")
	}

	var key any
	var err error
	switch block.Type {
	case pemPrivateKey:
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unsupported private key PEM type %q", block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("private key type %T cannot sign", key)
	}
	return signer, nil
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	switch pub := a.(type) {
	case *rsa.PublicKey:
		return pub.Equal(b)
	case *ecdsa.PublicKey:
		return pub.Equal(b)
	case ed25519.PublicKey:
		return pub.Equal(b)
	}
	return false
}
