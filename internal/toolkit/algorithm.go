package toolkit

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"sort"
)

// AlgorithmID identifies a key generation algorithm.
type AlgorithmID string

// Supported key algorithms.
const (
	AlgECDSAP256 AlgorithmID = "ecdsa-p256"
	AlgECDSAP384 AlgorithmID = "ecdsa-p384"
	AlgECDSAP521 AlgorithmID = "ecdsa-p521"
	AlgEd25519   AlgorithmID = "ed25519"
	AlgRSA2048   AlgorithmID = "rsa-2048"
	AlgRSA3072   AlgorithmID = "rsa-3072"
	AlgRSA4096   AlgorithmID = "rsa-4096"
)

var rsaBits = map[AlgorithmID]int{
	AlgRSA2048: 2048,
	AlgRSA3072: 3072,
	AlgRSA4096: 4096,
}

var curves = map[AlgorithmID]elliptic.Curve{
	AlgECDSAP256: elliptic.P256(),
	AlgECDSAP384: elliptic.P384(),
	AlgECDSAP521: elliptic.P521(),
}

// IsValid reports whether the algorithm is supported.
func (a AlgorithmID) IsValid() bool {
	if a == AlgEd25519 {
		return true
	}
	if _, ok := rsaBits[a]; ok {
		return true
	}
	_, ok := curves[a]
	return ok
}

func (a AlgorithmID) String() string { return string(a) }

// Algorithms returns all supported algorithm names, sorted.
func Algorithms() []string {
	out := []string{string(AlgEd25519)}
	for a := range rsaBits {
		out = append(out, string(a))
	}
	for a := range curves {
		out = append(out, string(a))
	}
	sort.Strings(out)
	return out
}

// ParseAlgorithm validates an algorithm name.
func ParseAlgorithm(s string) (AlgorithmID, error) {
	a := AlgorithmID(s)
	if !a.IsValid() {
		return "", fmt.Errorf("unsupported key algorithm: %q", s)
	}
	return a, nil
}

// generateKey creates a private key for alg.
func generateKey(random io.Reader, alg AlgorithmID) (crypto.Signer, error) {
	if random == nil {
		random = rand.Reader
	}
	if bits, ok := rsaBits[alg]; ok {
		return rsa.GenerateKey(random, bits)
	}
	if curve, ok := curves[alg]; ok {
		return ecdsa.GenerateKey(curve, random)
	}
	if alg == AlgEd25519 {
		_, priv, err := ed25519.GenerateKey(random)
		if err != nil {
			return nil, err
		}
		return priv, nil
	}
	return nil, fmt.Errorf("key generation not implemented for: %s", alg)
}
