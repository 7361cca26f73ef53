package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/remiblancher/easyca/internal/ca"
	"github.com/remiblancher/easyca/internal/cli"
	"github.com/remiblancher/easyca/internal/names"
)

var createCSRCmd = &cobra.Command{
	Use:   "create-csr <name>",
	Short: "Create a key and a certificate signing request",
	Long: `Create csr/<name>.key and csr/<name>.csr.

Subject alternative names are DNS names separated by commas. They are
trimmed, lowercased, IDNA-encoded and deduplicated. Labels may hold
letters, digits, '-' and '_' (e.g. _acme-challenge.host.test); a bare
public suffix is rejected. Without --subject-alt-names the request
carries no SAN extension.

Examples:
  easyca create-csr host1 --subject-alt-names www.host1.test,host1.test \
    --country US --state CA --locality SF --organization Org`,
	Args: cobra.ExactArgs(1),
	RunE: runCreateCSR,
}

var signCSRCmd = &cobra.Command{
	Use:   "sign-csr <name>",
	Short: "Sign a pending request",
	Long: `Sign csr/<name>.csr and write certs/<name>.crt.

The request key is then moved to keys/<name>.key and the request removed.
Without --ca the root CA signs. An existing certificate is only replaced
with --force.

Examples:
  easyca sign-csr host1
  easyca sign-csr host1 --ca Intermediate --days 90`,
	Args: cobra.ExactArgs(1),
	RunE: runSignCSR,
}

var (
	createCSRSubject   subjectFlags
	createCSRSANs      string
	createCSRAlgorithm string

	signCSRCA    string
	signCSRDays  int
	signCSRForce bool
)

func init() {
	createCSRSubject.register(createCSRCmd)
	flags := createCSRCmd.Flags()
	flags.StringVar(&createCSRSANs, "subject-alt-names", "", "Comma-separated DNS names")
	flags.StringVar(&createCSRAlgorithm, "algorithm", "", "Key algorithm (default key_algorithm from config)")

	flags = signCSRCmd.Flags()
	flags.StringVar(&signCSRCA, "ca", "", "Signing CA (default: the root CA)")
	flags.IntVar(&signCSRDays, "days", 0, "Validity period in days (default cert_days from config, 365)")
	flags.BoolVar(&signCSRForce, "force", false, "Replace an existing certificate")
}

func runCreateCSR(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	name := args[0]
	subject, err := createCSRSubject.resolve("create-csr", name, cfg.Subject)
	if err != nil {
		return err
	}
	alg, err := parseAlgorithmFlag(createCSRAlgorithm)
	if err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	out := cmd.OutOrStdout()
	cli.Infof(out, "Creating CSR for '%s'...", name)
	err = s.manager.CreateCSR(cmd.Context(), ca.CSRRequest{
		Name:            name,
		Subject:         subject,
		SubjectAltNames: names.SplitList(createCSRSANs),
		Algorithm:       alg,
	})
	if err != nil {
		return err
	}
	cli.Successf(out, "CSR for %s has been created.", name)
	return nil
}

func runSignCSR(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	name := args[0]
	caName := signCSRCA
	if caName == "" {
		caName = "the root CA"
	}
	out := cmd.OutOrStdout()
	cli.Infof(out, "Signing CSR '%s' with %s...", name, caName)

	info, err := s.manager.Issue(cmd.Context(), ca.SignRequest{
		CAName:    signCSRCA,
		CSRName:   name,
		Days:      signCSRDays,
		Overwrite: signCSRForce,
	})
	if err != nil {
		return err
	}
	cli.Successf(out, "Certificate for %s has been signed.", name)
	cli.Infof(out, "  Issuer:    %s", info.Issuer)
	cli.Infof(out, "  Serial:    %s", info.SerialNumber)
	cli.Infof(out, "  Not After: %s", cli.FormatExpiry(info.NotAfter, time.Now()))
	return nil
}
