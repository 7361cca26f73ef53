package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/remiblancher/easyca/internal/ca"
	"github.com/remiblancher/easyca/internal/caerr"
	"github.com/remiblancher/easyca/internal/cli"
	"github.com/remiblancher/easyca/internal/toolkit"
)

var createCACmd = &cobra.Command{
	Use:   "create-ca <name>",
	Short: "Create a self-signed root CA",
	Long: `Create a self-signed root CA in ca/<name>/.

The subject fields are required unless the config file or the environment
provides them (subject.* in easyca.yaml, EASYCA_COUNTRY, ...).

Examples:
  easyca create-ca Root --country US --state CA --locality SF --organization Org
  easyca create-ca Root --days 7300 --algorithm ecdsa-p384`,
	Args: cobra.ExactArgs(1),
	RunE: runCreateCA,
}

var (
	createCASubject   subjectFlags
	createCADays      int
	createCAAlgorithm string
)

func init() {
	createCASubject.register(createCACmd)
	flags := createCACmd.Flags()
	flags.IntVar(&createCADays, "days", 0, "Validity period in days (default ca_days from config, 3650)")
	flags.StringVar(&createCAAlgorithm, "algorithm", "", fmt.Sprintf("Key algorithm %v (default ca_key_algorithm from config)", toolkit.Algorithms()))
}

func runCreateCA(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	name := args[0]
	subject, err := createCASubject.resolve("create-ca", name, cfg.Subject)
	if err != nil {
		return err
	}
	alg, err := parseAlgorithmFlag(createCAAlgorithm)
	if err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	out := cmd.OutOrStdout()
	cli.Infof(out, "Creating CA '%s'...", name)
	info, err := s.manager.CreateCA(cmd.Context(), ca.CARequest{
		Name:      name,
		Subject:   subject,
		Days:      createCADays,
		Algorithm: alg,
	})
	if err != nil {
		return err
	}

	cli.Successf(out, "CA %s has been created.", name)
	cli.Infof(out, "  Subject:   %s", info.Subject)
	cli.Infof(out, "  Serial:    %s", info.SerialNumber)
	cli.Infof(out, "  Not After: %s", cli.FormatExpiry(info.NotAfter, time.Now()))
	return nil
}

func parseAlgorithmFlag(s string) (toolkit.AlgorithmID, error) {
	if s == "" {
		return "", nil
	}
	alg, err := toolkit.ParseAlgorithm(s)
	if err != nil {
		return "", caerr.New("algorithm", s, caerr.ErrUserInput, err)
	}
	return alg, nil
}
