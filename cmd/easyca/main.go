// Command easyca manages a small file-system backed certificate authority.
package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Build-time variables (injected by GoReleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	baseDir      string
	configPath   string
	auditLogPath string
)

func main() {
	// Wipe locked key buffers on SIGINT/SIGTERM.
	memguard.CatchInterrupt()
	defer memguard.Purge()

	if err := rootCmd.Execute(); err != nil {
		_, _ = color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		memguard.SafeExit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "easyca",
	Short: "EasyCA - A simple tool for managing CAs and certificates",
	Long: `EasyCA manages a root CA, sub-CAs, certificate signing requests and issued
certificates in a plain directory tree:

  ca/<name>/{ca.key,ca.crt}   root and sub CAs
  csr/<name>.{key,csr}        pending requests
  certs/<name>.crt            issued certificates
  keys/<name>.key             keys archived after signing

Without a command, the interactive wizard starts.

Examples:
  # Create a root CA
  easyca create-ca "My Root" --country US --state CA --locality SF --organization Org

  # Request and sign a server certificate
  easyca create-csr host1 --subject-alt-names www.host1.test,host1.test ...
  easyca sign-csr host1 --days 365

  # Print a certificate
  easyca show-cert host1`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runWizard,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&baseDir, "basedir", "", "Base directory of the CA store (default \".\", or EASYCA_BASEDIR)")
	pf.StringVar(&configPath, "config", "", "Config file (default <basedir>/easyca.yaml when present)")
	pf.StringVar(&auditLogPath, "audit-log", "", "Path to audit log file (or set EASYCA_AUDIT_LOG env var)")

	// Lifecycle
	rootCmd.AddCommand(createCACmd)
	rootCmd.AddCommand(createCSRCmd)
	rootCmd.AddCommand(signCSRCmd)
	rootCmd.AddCommand(showCertCmd)
	rootCmd.AddCommand(wizardCmd)

	// Utilities
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(auditCmd)
}
