package inspect

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remiblancher/easyca/internal/caerr"
	"github.com/remiblancher/easyca/internal/toolkit"
)

// countingToolkit records calls to RenderCertificate.
type countingToolkit struct {
	*toolkit.Native
	renders int
}

func (c *countingToolkit) RenderCertificate(certPEM []byte) (string, error) {
	c.renders++
	return c.Native.RenderCertificate(certPEM)
}

func randomFingerprint(r *rand.Rand) toolkit.Fingerprint {
	var f toolkit.Fingerprint
	for i := range f {
		f[i] = byte(r.IntN(256))
	}
	return f
}

func TestU_IsSelfSigned_SyntheticFingerprints(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		subject := randomFingerprint(r)
		issuer := randomFingerprint(r)
		if i%2 == 0 {
			issuer = subject
		}

		info := &toolkit.CertInfo{SubjectFingerprint: subject, IssuerFingerprint: issuer}
		assert.Equal(t, issuer == subject, IsSelfSigned(info))
	}
}

func TestU_Fingerprint_ByValue(t *testing.T) {
	a := toolkit.NameFingerprint([]byte("CN=Root"))
	b := toolkit.NameFingerprint(append([]byte(nil), []byte("CN=Root")...))
	c := toolkit.NameFingerprint([]byte("CN=Other"))

	info := &toolkit.CertInfo{SubjectFingerprint: a, IssuerFingerprint: b}
	assert.True(t, IsSelfSigned(info))
	info.IssuerFingerprint = c
	assert.False(t, IsSelfSigned(info))
}

func TestU_IsCA_SelfSignedWithoutFlag(t *testing.T) {
	f := toolkit.NameFingerprint([]byte("CN=Leaf"))
	info := &toolkit.CertInfo{SubjectFingerprint: f, IssuerFingerprint: f, IsCA: false}

	assert.True(t, IsSelfSigned(info))
	assert.False(t, IsCA(info))
}

func TestU_Inspector_ParseFile(t *testing.T) {
	tk := toolkit.NewNative()
	ca, err := tk.NewSelfSignedCA(context.Background(), toolkit.CARequest{
		Subject:   toolkit.Subject{CommonName: "Root"},
		Days:      1,
		Algorithm: toolkit.AlgECDSAP256,
	})
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "ca.crt")
	require.NoError(t, os.WriteFile(path, ca.PEM, 0644))

	info, err := New(tk).ParseFile(path)
	require.NoError(t, err)
	assert.True(t, IsSelfSigned(info))
	assert.True(t, IsCA(info))
	assert.Equal(t, "CN=Root", info.Subject)
}

func TestU_Inspector_ParseFile_Errors(t *testing.T) {
	dir := t.TempDir()
	in := New(toolkit.NewNative())

	_, err := in.ParseFile(filepath.Join(dir, "missing.crt"))
	assert.ErrorIs(t, err, caerr.ErrNotFound)

	bad := filepath.Join(dir, "bad.crt")
	require.NoError(t, os.WriteFile(bad, []byte("DUMMY CERT"), 0644))
	_, err = in.ParseFile(bad)
	assert.ErrorIs(t, err, caerr.ErrCertificateParse)
}

func TestU_Inspector_Parse_WrapsForeignErrors(t *testing.T) {
	in := New(failingParser{toolkit.NewNative()})
	_, err := in.Parse([]byte("x"))
	assert.ErrorIs(t, err, caerr.ErrCertificateParse)
}

func TestU_Inspector_Render_MissingSkipsToolkit(t *testing.T) {
	tk := &countingToolkit{Native: toolkit.NewNative()}
	_, err := New(tk).Render(filepath.Join(t.TempDir(), "nope.crt"))

	assert.ErrorIs(t, err, caerr.ErrNotFound)
	assert.Zero(t, tk.renders)
}

type failingParser struct{ *toolkit.Native }

func (failingParser) ParseCertificate([]byte) (*toolkit.CertInfo, error) {
	return nil, errors.New("boom")
}
