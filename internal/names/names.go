// Package names normalizes and validates common names and subject alternative names.
package names

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/unicode/norm"

	"github.com/remiblancher/easyca/internal/caerr"
)

// maxSegment is the longest directory name most filesystems accept.
const maxSegment = 255

// sanProfile maps and validates like a lookup but keeps STD3 off, so
// service labels such as "_acme-challenge" are accepted.
var sanProfile = idna.New(
	idna.MapForLookup(),
	idna.BidiRule(),
	idna.Transitional(false),
	idna.StrictDomainName(false),
)

// CommonName returns the NFC form of name after checking that it can be
// used as a single path segment inside the store.
func CommonName(name string) (string, error) {
	cn := norm.NFC.String(strings.TrimSpace(name))
	switch {
	case cn == "":
		return "", caerr.Newf("name", name, caerr.ErrUserInput, "common name is required")
	case cn == "." || cn == "..":
		return "", caerr.Newf("name", name, caerr.ErrUserInput, "common name cannot be %q", cn)
	case strings.HasPrefix(cn, "."):
		return "", caerr.Newf("name", name, caerr.ErrUserInput, "common name cannot start with '.'")
	case strings.ContainsAny(cn, "/\\\x00"):
		return "", caerr.Newf("name", name, caerr.ErrUserInput, "common name cannot contain path separators")
	case len(cn) > maxSegment:
		return "", caerr.Newf("name", name, caerr.ErrUserInput, "common name longer than %d bytes", maxSegment)
	}
	return cn, nil
}

// SubjectAltNames trims, lowercases and IDNA-encodes DNS names.
// Empty entries are dropped and duplicates keep their first position.
// Labels may hold letters, digits, '-' and '_'. A bare public suffix
// (e.g. "com", "co.uk") is rejected.
func SubjectAltNames(sans []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{}, len(sans))
	for _, raw := range sans {
		s := strings.ToLower(strings.TrimSpace(raw))
		if s == "" {
			continue
		}
		dns, err := dnsName(s)
		if err != nil {
			return nil, caerr.New("san", raw, caerr.ErrUserInput, err)
		}
		if _, dup := seen[dns]; dup {
			continue
		}
		seen[dns] = struct{}{}
		out = append(out, dns)
	}
	return out, nil
}

// SplitList splits a comma-separated SAN list as typed on the command line.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func dnsName(s string) (string, error) {
	wildcard := strings.HasPrefix(s, "*.")
	host := strings.TrimPrefix(s, "*.")

	ascii, err := sanProfile.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid DNS name: %w", err)
	}
	if strings.Contains(ascii, "*") {
		return "", fmt.Errorf("wildcard only allowed as the leftmost label")
	}
	for _, label := range strings.Split(ascii, ".") {
		if err := checkLabel(label); err != nil {
			return "", fmt.Errorf("invalid DNS name %q: %w", ascii, err)
		}
	}

	// Unlisted single labels such as "localhost" are not ICANN suffixes.
	if suffix, icann := publicsuffix.PublicSuffix(ascii); icann && suffix == ascii {
		return "", fmt.Errorf("%q is a public suffix", ascii)
	}

	if wildcard {
		return "*." + ascii, nil
	}
	return ascii, nil
}

func checkLabel(label string) error {
	if label == "" {
		return fmt.Errorf("empty label")
	}
	if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
		return fmt.Errorf("label %q starts or ends with '-'", label)
	}
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("label %q contains %q", label, r)
		}
	}
	return nil
}
