package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remiblancher/easyca/internal/caerr"
)

func TestU_CommonName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "[Unit] CommonName: plain", input: "Root CA", want: "Root CA"},
		{name: "[Unit] CommonName: trimmed", input: "  host1  ", want: "host1"},
		{name: "[Unit] CommonName: NFC", input: "Café", want: "Café"},
		{name: "[Unit] CommonName: empty", input: "   ", wantErr: true},
		{name: "[Unit] CommonName: dot", input: ".", wantErr: true},
		{name: "[Unit] CommonName: dotdot", input: "..", wantErr: true},
		{name: "[Unit] CommonName: hidden", input: ".staging", wantErr: true},
		{name: "[Unit] CommonName: slash", input: "a/b", wantErr: true},
		{name: "[Unit] CommonName: backslash", input: `a\b`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CommonName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, caerr.ErrUserInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestU_SubjectAltNames(t *testing.T) {
	got, err := SubjectAltNames([]string{" www.host1.test ", "", "WWW.Host1.test", "api.host1.test", "localhost"})
	require.NoError(t, err)
	assert.Equal(t, []string{"www.host1.test", "api.host1.test", "localhost"}, got)
}

func TestU_SubjectAltNames_Empty(t *testing.T) {
	got, err := SubjectAltNames(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = SubjectAltNames([]string{" ", ""})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestU_SubjectAltNames_IDNA(t *testing.T) {
	got, err := SubjectAltNames([]string{"bücher.example"})
	require.NoError(t, err)
	assert.Equal(t, []string{"xn--bcher-kva.example"}, got)
}

func TestU_SubjectAltNames_Wildcard(t *testing.T) {
	got, err := SubjectAltNames([]string{"*.host1.test"})
	require.NoError(t, err)
	assert.Equal(t, []string{"*.host1.test"}, got)

	_, err = SubjectAltNames([]string{"www.*.host1.test"})
	assert.ErrorIs(t, err, caerr.ErrUserInput)
}

func TestU_SubjectAltNames_ServiceLabels(t *testing.T) {
	got, err := SubjectAltNames([]string{"_acme-challenge.host.test", "_sip._tcp.Host.test"})
	require.NoError(t, err)
	assert.Equal(t, []string{"_acme-challenge.host.test", "_sip._tcp.host.test"}, got)
}

func TestU_SubjectAltNames_InvalidCharacters(t *testing.T) {
	tests := []struct {
		name string
		san  string
	}{
		{"[Unit] SubjectAltNames: space", "a b.test"},
		{"[Unit] SubjectAltNames: leading hyphen", "-a.test"},
		{"[Unit] SubjectAltNames: empty label", "a..test"},
		{"[Unit] SubjectAltNames: slash", "a/b.test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SubjectAltNames([]string{tt.san})
			assert.ErrorIs(t, err, caerr.ErrUserInput)
		})
	}
}

func TestU_SubjectAltNames_PublicSuffix(t *testing.T) {
	for _, s := range []string{"com", "co.uk"} {
		_, err := SubjectAltNames([]string{s})
		assert.ErrorIs(t, err, caerr.ErrUserInput, s)
	}
}

func TestU_SplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Nil(t, SplitList("  "))
	assert.Equal(t, []string{"a", " b"}, SplitList("a, b"))
}
