package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remiblancher/easyca/internal/audit"
	"github.com/remiblancher/easyca/internal/caerr"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log management",
	Long: `Commands for verifying and reading the audit log.

The audit log is a tamper-evident record of every CA creation, request,
signature, key archival and sub-CA promotion. Each event is chained to the
previous one with a SHA-256 hash.

Examples:
  # Verify audit log integrity
  easyca audit verify --file audit.jsonl

  # Show last 10 events
  easyca audit tail --file audit.jsonl -n 10`,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify audit log integrity",
	Long: `Verify the hash chain of an audit log file.

The chain starts with hash_prev="sha256:genesis". Modified, deleted or
inserted events break it; the first broken line is reported.`,
	Args: cobra.NoArgs,
	RunE: runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent audit events",
	Args:  cobra.NoArgs,
	RunE:  runAuditTail,
}

var (
	auditLogFile  string
	auditTailNum  int
	auditShowJSON bool
)

func init() {
	auditVerifyCmd.Flags().StringVar(&auditLogFile, "file", "", "Audit log file (default --audit-log / EASYCA_AUDIT_LOG)")

	auditTailCmd.Flags().StringVar(&auditLogFile, "file", "", "Audit log file (default --audit-log / EASYCA_AUDIT_LOG)")
	auditTailCmd.Flags().IntVarP(&auditTailNum, "num", "n", 10, "Number of events to show")
	auditTailCmd.Flags().BoolVar(&auditShowJSON, "json", false, "Output as JSON")

	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
}

// resolveAuditFile picks --file, then the configured audit log.
func resolveAuditFile() (string, error) {
	if auditLogFile != "" {
		return auditLogFile, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.AuditLog == "" {
		return "", caerr.Newf("audit", "", caerr.ErrUserInput, "no audit log: use --file, --audit-log or EASYCA_AUDIT_LOG")
	}
	return cfg.AuditLog, nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	path, err := resolveAuditFile()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Verifying audit log: %s\n\n", path)

	count, err := audit.VerifyChain(path)
	if err != nil {
		_, _ = fmt.Fprintf(out, "VERIFICATION FAILED\n")
		_, _ = fmt.Fprintf(out, "  Valid events: %d\n", count)
		_, _ = fmt.Fprintf(out, "  Error: %s\n", err)
		return fmt.Errorf("audit log verification failed: %w", err)
	}

	_, _ = fmt.Fprintf(out, "VERIFICATION PASSED\n")
	_, _ = fmt.Fprintf(out, "  Total events: %d\n", count)
	_, _ = fmt.Fprintf(out, "  Hash chain: VALID\n")
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	path, err := resolveAuditFile()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	out := cmd.OutOrStdout()
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		_, _ = fmt.Fprintln(out, "Audit log is empty")
		return nil
	}
	if auditTailNum > 0 && len(lines) > auditTailNum {
		lines = lines[len(lines)-auditTailNum:]
	}

	if auditShowJSON {
		_, _ = fmt.Fprintf(out, "[\n%s\n]\n", strings.Join(lines, ",\n"))
		return nil
	}
	for _, line := range lines {
		var event audit.Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			_, _ = fmt.Fprintf(out, "  [ERROR] %s\n", err)
			continue
		}
		printEvent(out, &event)
	}
	return nil
}

func printEvent(out io.Writer, e *audit.Event) {
	resultIcon := "✓"
	if e.Result == audit.ResultFailure {
		resultIcon = "✗"
	}

	_, _ = fmt.Fprintf(out, "[%s] %s %s\n", e.Timestamp, resultIcon, e.EventType)
	_, _ = fmt.Fprintf(out, "    Actor:  %s@%s\n", e.Actor.ID, e.Actor.Host)

	if e.Object.Type != "" {
		_, _ = fmt.Fprintf(out, "    Object: %s", e.Object.Type)
		if e.Object.Name != "" {
			_, _ = fmt.Fprintf(out, " name=%s", e.Object.Name)
		}
		if e.Object.Serial != "" {
			_, _ = fmt.Fprintf(out, " serial=%s", e.Object.Serial)
		}
		if e.Object.Path != "" {
			_, _ = fmt.Fprintf(out, " path=%s", e.Object.Path)
		}
		_, _ = fmt.Fprintln(out)
	}

	if e.Context.CA != "" || e.Context.Algorithm != "" || e.Context.Reason != "" {
		_, _ = fmt.Fprint(out, "    Context:")
		if e.Context.CA != "" {
			_, _ = fmt.Fprintf(out, " ca=%s", e.Context.CA)
		}
		if e.Context.Algorithm != "" {
			_, _ = fmt.Fprintf(out, " algorithm=%s", e.Context.Algorithm)
		}
		if e.Context.Reason != "" {
			_, _ = fmt.Fprintf(out, " reason=%s", e.Context.Reason)
		}
		_, _ = fmt.Fprintln(out)
	}
	_, _ = fmt.Fprintln(out)
}
