package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/remiblancher/easyca/internal/ca"
	"github.com/remiblancher/easyca/internal/cli"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List CAs, pending requests and issued certificates",
	Long: `List the content of the store.

CAs are shown with their kind: "root" for the designated root (the first
self-signed CA found), "sub" for every other CA. Issued certificates come
from the issuance index.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	inv, err := s.manager.Inventory(cmd.Context())
	if err != nil {
		return err
	}
	printInventory(cmd.OutOrStdout(), inv, time.Now())
	return nil
}

func printInventory(out io.Writer, inv *ca.Inventory, now time.Time) {
	cli.Heading(out, "Certificate authorities:")
	if len(inv.CAs) == 0 {
		cli.Infof(out, "  (none)")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, c := range inv.CAs {
			kind := c.Kind.String()
			if c.Err != nil {
				kind = "error"
			}
			_, _ = fmt.Fprintf(w, "  %s\t%s", c.Name, cli.FormatKind(kind))
			if c.Err != nil {
				_, _ = fmt.Fprintf(w, "\t%v", c.Err)
			}
			_, _ = fmt.Fprintln(w)
		}
		_ = w.Flush()
	}

	cli.Heading(out, "Pending CSRs:")
	if len(inv.PendingCSRs) == 0 {
		cli.Infof(out, "  (none)")
	}
	for _, name := range inv.PendingCSRs {
		cli.Infof(out, "  %s", name)
	}

	cli.Heading(out, "Issued certificates:")
	if len(inv.Issued) == 0 {
		cli.Infof(out, "  (none)")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "  NAME\tKIND\tCA\tSERIAL\tEXPIRES")
	for _, e := range inv.Issued {
		kind := string(e.Kind)
		if e.Promoted {
			kind += " (promoted)"
		}
		_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", e.Name, kind, e.CA, e.Serial, cli.FormatExpiry(e.NotAfter, now))
	}
	_ = w.Flush()
}
