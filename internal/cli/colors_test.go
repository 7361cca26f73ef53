package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func withoutColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestU_FormatKind(t *testing.T) {
	withoutColor(t)
	for _, kind := range []string{"root", "sub", "not-a-ca", "other"} {
		assert.Equal(t, kind, FormatKind(kind))
	}
}

func TestU_FormatKind_Colored(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = prev }()

	assert.NotEqual(t, "root", FormatKind("root"))
	assert.Contains(t, FormatKind("root"), "root")
	assert.Equal(t, "other", FormatKind("other"))
}

func TestU_FormatExpiry(t *testing.T) {
	withoutColor(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		notAfter time.Time
		want     string
	}{
		{"[Unit] FormatExpiry: valid", now.AddDate(1, 0, 0), "2027-06-01"},
		{"[Unit] FormatExpiry: soon", now.AddDate(0, 0, 10), "2026-06-11"},
		{"[Unit] FormatExpiry: expired", now.AddDate(0, 0, -1), "2026-05-31 (expired)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatExpiry(tt.notAfter, now))
		})
	}
}

func TestU_Printers(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	Successf(&buf, "ok %d", 1)
	Warnf(&buf, "careful")
	Errorf(&buf, "bad")
	Heading(&buf, "Title")
	Infof(&buf, "plain %s", "text")
	assert.Equal(t, "ok 1\ncareful\nbad\nTitle\nplain text\n", buf.String())
}
