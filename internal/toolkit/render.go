package toolkit

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

func render(cert *x509.Certificate) string {
	var b strings.Builder
	line := func(label, format string, args ...any) {
		fmt.Fprintf(&b, "  %-16s%s\n", label+":", fmt.Sprintf(format, args...))
	}

	b.WriteString("Certificate:\n")
	line("Version", "%d", cert.Version)
	line("Serial Number", "%s", hex.EncodeToString(cert.SerialNumber.Bytes()))
	line("Subject", "%s", cert.Subject.String())
	line("Issuer", "%s", cert.Issuer.String())
	line("Subject Hash", "%s", NameFingerprint(cert.RawSubject))
	line("Issuer Hash", "%s", NameFingerprint(cert.RawIssuer))
	line("Not Before", "%s", cert.NotBefore.UTC().Format(timeLayout))
	line("Not After", "%s", cert.NotAfter.UTC().Format(timeLayout))
	line("Signature Alg", "%s", cert.SignatureAlgorithm.String())
	line("Public Key Alg", "%s", formatPublicKeyAlgorithm(cert))

	if cert.BasicConstraintsValid && cert.IsCA {
		line("CA", "true (path len: %s)", formatPathLen(cert))
	} else {
		line("CA", "false")
	}

	if cert.KeyUsage != 0 {
		line("Key Usage", "%s", formatKeyUsage(cert.KeyUsage))
	}
	if len(cert.ExtKeyUsage) > 0 {
		line("Ext Key Usage", "%s", formatExtKeyUsage(cert.ExtKeyUsage))
	}
	if len(cert.DNSNames) > 0 {
		line("DNS Names", "%s", strings.Join(cert.DNSNames, ", "))
	}
	if len(cert.IPAddresses) > 0 {
		ips := make([]string, len(cert.IPAddresses))
		for i, ip := range cert.IPAddresses {
			ips[i] = ip.String()
		}
		line("IP Addresses", "%s", strings.Join(ips, ", "))
	}
	if len(cert.SubjectKeyId) > 0 {
		line("Subject Key ID", "%s", formatHex(cert.SubjectKeyId))
	}
	if len(cert.AuthorityKeyId) > 0 {
		line("Auth Key ID", "%s", formatHex(cert.AuthorityKeyId))
	}

	sum := sha256.Sum256(cert.Raw)
	line("SHA-256", "%s", formatHex(sum[:]))

	return b.String()
}

func formatHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

func formatPathLen(cert *x509.Certificate) string {
	if cert.MaxPathLen > 0 || (cert.MaxPathLen == 0 && cert.MaxPathLenZero) {
		return fmt.Sprintf("%d", cert.MaxPathLen)
	}
	return "unlimited"
}

func formatPublicKeyAlgorithm(cert *x509.Certificate) string {
	switch pub := cert.PublicKey.(type) {
	case *ecdsa.PublicKey:
		return "ECDSA " + pub.Curve.Params().Name
	case *rsa.PublicKey:
		return fmt.Sprintf("RSA %d", pub.N.BitLen())
	}
	return cert.PublicKeyAlgorithm.String()
}

var keyUsageNames = []struct {
	bit  x509.KeyUsage
	name string
}{
	{x509.KeyUsageDigitalSignature, "Digital Signature"},
	{x509.KeyUsageContentCommitment, "Content Commitment"},
	{x509.KeyUsageKeyEncipherment, "Key Encipherment"},
	{x509.KeyUsageDataEncipherment, "Data Encipherment"},
	{x509.KeyUsageKeyAgreement, "Key Agreement"},
	{x509.KeyUsageCertSign, "Certificate Sign"},
	{x509.KeyUsageCRLSign, "CRL Sign"},
}

func formatKeyUsage(usage x509.KeyUsage) string {
	var usages []string
	for _, ku := range keyUsageNames {
		if usage&ku.bit != 0 {
			usages = append(usages, ku.name)
		}
	}
	return strings.Join(usages, ", ")
}

func formatExtKeyUsage(usages []x509.ExtKeyUsage) string {
	var names []string
	for _, u := range usages {
		switch u {
		case x509.ExtKeyUsageServerAuth:
			names = append(names, "Server Auth")
		case x509.ExtKeyUsageClientAuth:
			names = append(names, "Client Auth")
		case x509.ExtKeyUsageCodeSigning:
			names = append(names, "Code Signing")
		case x509.ExtKeyUsageEmailProtection:
			names = append(names, "Email Protection")
		case x509.ExtKeyUsageTimeStamping:
			names = append(names, "Time Stamping")
		case x509.ExtKeyUsageOCSPSigning:
			names = append(names, "OCSP Signing")
		default:
			names = append(names, fmt.Sprintf("OID:%d", u))
		}
	}
	return strings.Join(names, ", ")
}
