package wizard

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remiblancher/easyca/internal/ca"
	"github.com/remiblancher/easyca/internal/caerr"
	"github.com/remiblancher/easyca/internal/config"
	"github.com/remiblancher/easyca/internal/toolkit"
)

// =============================================================================
// Helpers
// =============================================================================

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.CAKeyAlgorithm = toolkit.AlgECDSAP256
	cfg.KeyAlgorithm = toolkit.AlgECDSAP256
	return cfg
}

func script(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func runWizard(t *testing.T, ops Operations, cfg config.Config, lines ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := New(ops, cfg, script(lines...), &out).Run(context.Background())
	return out.String(), err
}

var rootAnswers = []string{"Root", "US", "CA", "SF", "Org", "3650"}

func withRoot(lines ...string) []string {
	return append(append([]string{}, rootAnswers...), lines...)
}

// fakeOps is a scriptable Operations.
type fakeOps struct {
	root       string
	pending    []string
	candidates []ca.CAEntry
	issueErr   error
	created    []ca.CARequest
	csrs       []ca.CSRRequest
	issued     []ca.SignRequest
}

func (f *fakeOps) FindRoot(context.Context) (string, bool, error) {
	return f.root, f.root != "", nil
}

func (f *fakeOps) SigningCandidates(context.Context) ([]ca.CAEntry, error) {
	return f.candidates, nil
}

func (f *fakeOps) PendingCSRs() ([]string, error) { return f.pending, nil }

func (f *fakeOps) CreateCA(_ context.Context, req ca.CARequest) (*toolkit.CertInfo, error) {
	f.created = append(f.created, req)
	f.root = req.Name
	return &toolkit.CertInfo{}, nil
}

func (f *fakeOps) CreateCSR(_ context.Context, req ca.CSRRequest) error {
	f.csrs = append(f.csrs, req)
	return nil
}

func (f *fakeOps) SignCSR(context.Context, ca.SignRequest) (*toolkit.CertInfo, error) {
	return &toolkit.CertInfo{}, nil
}

func (f *fakeOps) Issue(_ context.Context, req ca.SignRequest) (*toolkit.CertInfo, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	f.issued = append(f.issued, req)
	return &toolkit.CertInfo{}, nil
}

func (f *fakeOps) PromoteToSubCA(context.Context, string) error { return nil }

// =============================================================================
// Parse Tests
// =============================================================================

func TestU_ParseIndex(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		n       int
		want    int
		wantErr bool
	}{
		{"[Unit] ParseIndex: first", "1", 3, 0, false},
		{"[Unit] ParseIndex: last", " 3 ", 3, 2, false},
		{"[Unit] ParseIndex: zero", "0", 3, 0, true},
		{"[Unit] ParseIndex: too large", "4", 3, 0, true},
		{"[Unit] ParseIndex: negative", "-1", 3, 0, true},
		{"[Unit] ParseIndex: not a number", "two", 3, 0, true},
		{"[Unit] ParseIndex: empty", "", 3, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIndex(tt.answer, tt.n)
			if tt.wantErr {
				assert.ErrorIs(t, err, caerr.ErrUserInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestU_ParseDays(t *testing.T) {
	days, err := ParseDays("365")
	require.NoError(t, err)
	assert.Equal(t, 365, days)

	for _, bad := range []string{"", "abc", "0", "-5", "1.5"} {
		_, err := ParseDays(bad)
		assert.ErrorIs(t, err, caerr.ErrUserInput, bad)
	}
}

func TestU_Prompter_AskDefault(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(script("", "FR"), &out)

	v, err := p.AskDefault("Country", "US")
	require.NoError(t, err)
	assert.Equal(t, "US", v)
	v, err = p.AskDefault("Country", "US")
	require.NoError(t, err)
	assert.Equal(t, "FR", v)
	assert.Contains(t, out.String(), "Country [US]: ")

	_, err = p.Ask("More")
	assert.ErrorIs(t, err, ErrInputClosed)
}

func TestU_Prompter_ChooseReprompts(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(script("x", "5", "2"), &out)

	idx, err := p.Choose("Pick:", []string{"a", "b"}, "Choice")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 2, strings.Count(out.String(), "Invalid input"))
	assert.Contains(t, out.String(), "1. a\n2. b\n")
}

func TestU_Prompter_AskDaysReprompts(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(script("abc", "-5", ""), &out)

	days, err := p.AskDays("Days", 3650)
	require.NoError(t, err)
	assert.Equal(t, 3650, days)
	assert.Equal(t, 2, strings.Count(out.String(), "Invalid input"))
}

func TestU_State_String(t *testing.T) {
	assert.Equal(t, "need-root", StateNeedRoot.String())
	assert.Equal(t, "exit", StateExit.String())
	assert.Equal(t, "state(42)", State(42).String())
}

// =============================================================================
// Wizard Tests (real lifecycle)
// =============================================================================

func TestU_Wizard_FullSession(t *testing.T) {
	cfg := testConfig(t)
	m := ca.NewManager(cfg, toolkit.NewNative())

	out, err := runWizard(t, m, cfg, withRoot(
		// leaf CSR
		"1", "2", "host1", "US", "CA", "SF", "Org", "www.host1.test, api.host1.test",
		// sub-CA signed by the root
		"1", "1", "Intermediate", "US", "CA", "SF", "Org", "1825", "1",
		// sign host1 with the sub-CA (root first, then subs)
		"2", "1", "2",
		"3",
	)...)
	require.NoError(t, err)

	assert.Contains(t, out, "No root CA found. Let's create one.")
	assert.Contains(t, out, "CA Root has been created.")
	assert.Contains(t, out, "Root CA: Root")
	assert.Contains(t, out, "Sub-CA Intermediate has been created.")
	assert.Contains(t, out, "Certificate for host1 has been signed.")

	s := m.Store()
	assert.FileExists(t, filepath.Join(s.CADir("Root"), "ca.crt"))
	assert.FileExists(t, filepath.Join(s.CADir("Intermediate"), "ca.key"))
	assert.FileExists(t, s.CertPath("host1"))
	assert.FileExists(t, s.ArchivedKeyPath("host1"))

	kind, err := m.Classify(context.Background(), "Intermediate")
	require.NoError(t, err)
	assert.Equal(t, ca.KindSub, kind)

	info, err := m.Inspect(s.CertPath("host1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"www.host1.test", "api.host1.test"}, info.DNSNames)
	assert.Contains(t, info.Issuer, "CN=Intermediate")
}

func TestU_Wizard_ExistingRootSkipsCreation(t *testing.T) {
	cfg := testConfig(t)
	m := ca.NewManager(cfg, toolkit.NewNative())
	_, err := m.CreateCA(context.Background(), ca.CARequest{Name: "Existing"})
	require.NoError(t, err)

	out, err := runWizard(t, m, cfg, "3")
	require.NoError(t, err)
	assert.NotContains(t, out, "No root CA found")
	assert.Contains(t, out, "Root CA: Existing")
}

func TestU_Wizard_SubCANameCollisionReprompts(t *testing.T) {
	cfg := testConfig(t)
	m := ca.NewManager(cfg, toolkit.NewNative())

	out, err := runWizard(t, m, cfg, withRoot(
		// sub-CA named like the root
		"1", "1", "Root", "US", "CA", "SF", "Org", "1825",
		// the request step restarts at the sub-CA question
		"1", "Inter", "US", "CA", "SF", "Org", "1825", "1",
		"3",
	)...)
	require.NoError(t, err)

	assert.Contains(t, out, "Name already in use")
	assert.Contains(t, out, "Sub-CA Inter has been created.")

	s := m.Store()
	assert.NoFileExists(t, s.CertPath("Root"))
	_, reqPath := s.CSRPaths("Root")
	assert.NoFileExists(t, reqPath)
	assert.DirExists(t, s.CADir("Inter"))

	kind, err := m.Classify(context.Background(), "Root")
	require.NoError(t, err)
	assert.Equal(t, ca.KindRoot, kind)
}

func TestU_Wizard_InvalidCommonNameReprompts(t *testing.T) {
	cfg := testConfig(t)
	m := ca.NewManager(cfg, toolkit.NewNative())

	out, err := runWizard(t, m, cfg,
		"../bad", "US", "CA", "SF", "Org", "10",
		"Root", "US", "CA", "SF", "Org", "10",
		"3")
	require.NoError(t, err)
	assert.Contains(t, out, "Invalid input")
	assert.NoDirExists(t, filepath.Join(cfg.BaseDir, "bad"))
	assert.DirExists(t, m.Store().CADir("Root"))
}

// =============================================================================
// Wizard Tests (fake operations)
// =============================================================================

func TestU_Wizard_InvalidMenuChoice(t *testing.T) {
	ops := &fakeOps{root: "Root"}
	out, err := runWizard(t, ops, testConfig(t), "9", "abc", "3")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "Invalid input"))
}

func TestU_Wizard_NoCSRs(t *testing.T) {
	ops := &fakeOps{root: "Root"}
	out, err := runWizard(t, ops, testConfig(t), "2", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "No CSRs found.")
	assert.Empty(t, ops.issued)
}

func TestU_Wizard_SignOutOfRangeIndex(t *testing.T) {
	cfg := testConfig(t)
	cfg.CertDays = 90
	ops := &fakeOps{
		root:       "Root",
		pending:    []string{"a", "b"},
		candidates: []ca.CAEntry{{Name: "Root", Kind: ca.KindRoot}, {Name: "Sub", Kind: ca.KindSub}},
	}
	out, err := runWizard(t, ops, cfg, "2", "7", "2", "0", "2", "3")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "Invalid input"))

	require.Len(t, ops.issued, 1)
	assert.Equal(t, ca.SignRequest{CAName: "Sub", CSRName: "b", Days: 90}, ops.issued[0])
}

func TestU_Wizard_SubjectDefaults(t *testing.T) {
	cfg := testConfig(t)
	cfg.Subject = config.SubjectDefaults{Country: "DE", State: "BE", Locality: "Berlin", Organization: "Acme"}
	ops := &fakeOps{}

	_, err := runWizard(t, ops, cfg, "Root", "", "", "", "", "", "3")
	require.NoError(t, err)

	require.Len(t, ops.created, 1)
	got := ops.created[0]
	assert.Equal(t, "Root", got.Name)
	assert.Equal(t, cfg.CADays, got.Days)
	assert.Equal(t, toolkit.Subject{Country: "DE", State: "BE", Locality: "Berlin", Organization: "Acme"}, got.Subject)
}

func TestU_Wizard_LeafCSR(t *testing.T) {
	ops := &fakeOps{root: "Root"}
	_, err := runWizard(t, ops, testConfig(t), "1", "2", "web", "US", "CA", "SF", "Org", " a.test ,, b.test", "3")
	require.NoError(t, err)

	require.Len(t, ops.csrs, 1)
	assert.False(t, ops.csrs[0].CA)
	assert.Equal(t, []string{"a.test", "b.test"}, ops.csrs[0].SubjectAltNames)
}

func TestU_Wizard_OperationErrorAborts(t *testing.T) {
	ops := &fakeOps{
		root:       "Root",
		pending:    []string{"a"},
		candidates: []ca.CAEntry{{Name: "Root", Kind: ca.KindRoot}},
		issueErr:   caerr.New("sign-csr", "a", caerr.ErrSigning, errors.New("boom")),
	}
	_, err := runWizard(t, ops, testConfig(t), "2", "1", "1", "3")
	assert.ErrorIs(t, err, caerr.ErrSigning)
}

func TestU_Wizard_InputClosed(t *testing.T) {
	ops := &fakeOps{root: "Root"}
	_, err := runWizard(t, ops, testConfig(t))
	assert.ErrorIs(t, err, ErrInputClosed)
}

func TestU_Wizard_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	err := New(&fakeOps{root: "Root"}, testConfig(t), script("3"), &out).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
