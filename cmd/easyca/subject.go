package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/remiblancher/easyca/internal/caerr"
	"github.com/remiblancher/easyca/internal/config"
	"github.com/remiblancher/easyca/internal/toolkit"
)

// subjectFlags are the distinguished name fields shared by create-ca and create-csr.
type subjectFlags struct {
	country      string
	state        string
	locality     string
	organization string
}

func (f *subjectFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.country, "country", "", "Country (C)")
	flags.StringVar(&f.state, "state", "", "State or province (ST)")
	flags.StringVar(&f.locality, "locality", "", "Locality (L)")
	flags.StringVar(&f.organization, "organization", "", "Organization (O)")
}

func (f *subjectFlags) reset() {
	*f = subjectFlags{}
}

// resolve fills unset fields from the configured defaults. Fields still
// empty afterwards are reported as missing flags.
func (f *subjectFlags) resolve(op, name string, defaults config.SubjectDefaults) (toolkit.Subject, error) {
	pick := func(flag, def string) string {
		if flag != "" {
			return flag
		}
		return def
	}
	s := toolkit.Subject{
		Country:      pick(f.country, defaults.Country),
		State:        pick(f.state, defaults.State),
		Locality:     pick(f.locality, defaults.Locality),
		Organization: pick(f.organization, defaults.Organization),
	}

	var missing []string
	for _, field := range []struct{ flag, value string }{
		{"--country", s.Country},
		{"--state", s.State},
		{"--locality", s.Locality},
		{"--organization", s.Organization},
	} {
		if field.value == "" {
			missing = append(missing, field.flag)
		}
	}
	if len(missing) > 0 {
		return toolkit.Subject{}, caerr.Newf(op, name, caerr.ErrUserInput, "missing required flag(s): %s", strings.Join(missing, ", "))
	}
	return s, nil
}
