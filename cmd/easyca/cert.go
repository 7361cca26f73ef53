package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remiblancher/easyca/internal/wizard"
)

var showCertCmd = &cobra.Command{
	Use:   "show-cert <name>",
	Short: "Print an issued certificate",
	Long: `Print certs/<name>.crt in human-readable form.

Examples:
  easyca show-cert host1`,
	Args: cobra.ExactArgs(1),
	RunE: runShowCert,
}

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Start the interactive wizard",
	Long: `Start the interactive wizard.

The wizard creates a root CA first if there is none, then loops over
creating requests (for sub-CAs or hosts) and signing pending ones.`,
	Args: cobra.NoArgs,
	RunE: runWizard,
}

func runShowCert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	text, err := s.manager.ShowCertificate(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), text)
	return err
}

func runWizard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	return wizard.New(s.manager, cfg, cmd.InOrStdin(), cmd.OutOrStdout()).Run(cmd.Context())
}
