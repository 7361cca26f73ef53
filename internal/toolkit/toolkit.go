// Package toolkit is the cryptographic collaborator of EasyCA.
//
// The rest of the module only sees the Toolkit interface: generate a
// self-signed CA, generate a key and CSR, sign a CSR, parse a certificate
// into identity fingerprints, and render a certificate as text. Native
// implements it with crypto/x509; WithTimeout bounds every call.
package toolkit

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"
)

// Toolkit is the set of PKI primitives the lifecycle operations need.
// Inputs and outputs are PEM-encoded.
type Toolkit interface {
	NewSelfSignedCA(ctx context.Context, req CARequest) (*KeyMaterial, error)
	NewCSR(ctx context.Context, req CSRRequest) (*KeyMaterial, error)
	SignCSR(ctx context.Context, req SignRequest) ([]byte, error)
	ParseCertificate(certPEM []byte) (*CertInfo, error)
	RenderCertificate(certPEM []byte) (string, error)
}

// Subject holds the distinguished name fields EasyCA asks for.
type Subject struct {
	CommonName   string
	Country      string
	State        string
	Locality     string
	Organization string
}

// CARequest describes a new self-signed CA.
type CARequest struct {
	Subject   Subject
	Days      int
	Algorithm AlgorithmID
}

// CSRRequest describes a new key pair and signing request.
type CSRRequest struct {
	Subject   Subject
	DNSNames  []string // empty means no SAN extension
	CA        bool     // request Basic Constraints CA:TRUE
	Algorithm AlgorithmID
}

// SignRequest carries the PEM inputs for signing a CSR.
type SignRequest struct {
	CSR    []byte
	CACert []byte
	CAKey  []byte
	Days   int
	IsCA   bool
}

// KeyMaterial is a PEM private key and the PEM object generated with it
// (a certificate or a certificate request).
type KeyMaterial struct {
	KeyPEM []byte
	PEM    []byte
}

// Fingerprint identifies a distinguished name by value.
// Two names with identical DER encoding always have equal fingerprints.
type Fingerprint [32]byte

// NameFingerprint computes the SHA3-256 fingerprint of a DER-encoded name.
func NameFingerprint(rawName []byte) Fingerprint {
	return Fingerprint(sha3.Sum256(rawName))
}

// String returns the first eight bytes in hex, like `openssl -subject_hash`.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:8])
}

// CertInfo is the parsed identity of a certificate.
type CertInfo struct {
	Subject            string
	Issuer             string
	SubjectFingerprint Fingerprint
	IssuerFingerprint  Fingerprint
	IsCA               bool
	SerialNumber       string
	NotBefore          time.Time
	NotAfter           time.Time
	DNSNames           []string
	SHA256             string
}
