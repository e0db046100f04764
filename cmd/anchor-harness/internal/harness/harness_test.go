package harness_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/harness"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/journal"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/keypair"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/ledger"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/mockledger"
)

const testProgramName = "fashion_market_contract"

// harnessFixture is everything a harness run needs: a funded wallet file,
// a scaffold-shaped workspace, and a mock validator with the workspace's
// program deployed.
type harnessFixture struct {
	rpcURL        string
	walletPath    string
	workspacePath string
	requests      *int64
	mock          *mockledger.Ledger
	server        *httptest.Server
}

func newFixture(t *testing.T, opts mockledger.Options) *harnessFixture {
	t.Helper()

	wallet, err := keypair.New()
	require.NoError(t, err)
	walletPath := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, wallet.WriteFile(walletPath))

	program, err := keypair.New()
	require.NoError(t, err)
	workspacePath := writeTestWorkspace(t, program.Public().String())

	opts.ProgramIDs = append(opts.ProgramIDs, program.Public())
	mock := mockledger.New(opts)
	handler := mockledger.NewHandler(mock, nil)

	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		server.Close()
		handler.Close()
	})

	return &harnessFixture{
		rpcURL:        server.URL,
		walletPath:    walletPath,
		workspacePath: workspacePath,
		requests:      &requests,
		mock:          mock,
		server:        server,
	}
}

func (f *harnessFixture) requestCount() int64 {
	return atomic.LoadInt64(f.requests)
}

func (f *harnessFixture) options() harness.Options {
	return harness.Options{
		RPCURL:          f.rpcURL,
		WalletPath:      f.walletPath,
		WorkspacePath:   f.workspacePath,
		ProgramName:     testProgramName,
		Commitment:      ledger.CommitmentConfirmed,
		RequestTimeout:  5 * time.Second,
		ConfirmTimeout:  5 * time.Second,
		ConfirmInterval: 10 * time.Millisecond,
		MinNodeVersion:  "1.14.0",
	}
}

func writeTestWorkspace(t *testing.T, programID string) string {
	t.Helper()
	dir := t.TempDir()

	manifest := fmt.Sprintf(`[programs.localnet]
%s = "%s"

[provider]
cluster = "localnet"
wallet = "id.json"
`, testProgramName, programID)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Anchor.toml"), []byte(manifest), 0o644))

	idl := fmt.Sprintf(`{
  "version": "0.1.0",
  "name": "%s",
  "instructions": [{"name": "initialize", "accounts": [], "args": []}],
  "metadata": {"address": "%s"}
}`, testProgramName, programID)
	idlPath := filepath.Join(dir, "target", "idl", testProgramName+".json")
	require.NoError(t, os.MkdirAll(filepath.Dir(idlPath), 0o755))
	require.NoError(t, os.WriteFile(idlPath, []byte(idl), 0o644))
	return dir
}

func TestRunConfirmsInitialization(t *testing.T) {
	fixture := newFixture(t, mockledger.Options{})
	h := harness.New(fixture.options())
	defer h.Close()

	sig, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, sig.IsZero())
	// the reported identifier renders as a base58 ledger signature
	parsed, err := keypair.ParseSignature(sig.String())
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)
}

func TestRunInfersSingleProgram(t *testing.T) {
	fixture := newFixture(t, mockledger.Options{})
	opts := fixture.options()
	opts.ProgramName = "" // the workspace declares exactly one

	h := harness.New(opts)
	defer h.Close()

	sig, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, sig.IsZero())
	assert.Equal(t, testProgramName, h.Program().Name)
}

func TestSetupWithoutEndpoint(t *testing.T) {
	fixture := newFixture(t, mockledger.Options{})
	opts := fixture.options()
	opts.RPCURL = ""

	h := harness.New(opts)
	defer h.Close()

	_, err := h.Run(context.Background())
	var confErr *harness.ConfigurationError
	require.True(t, errors.As(err, &confErr), "got %v", err)
	assert.ErrorContains(t, err, "ANCHOR_PROVIDER_URL")
	// nothing may reach the ledger when the context is incomplete
	assert.Zero(t, fixture.requestCount())
}

func TestSetupWithoutWallet(t *testing.T) {
	fixture := newFixture(t, mockledger.Options{})
	opts := fixture.options()
	opts.WalletPath = ""

	h := harness.New(opts)
	defer h.Close()

	_, err := h.Run(context.Background())
	var confErr *harness.ConfigurationError
	require.True(t, errors.As(err, &confErr), "got %v", err)
	assert.ErrorContains(t, err, "ANCHOR_WALLET")
	assert.Zero(t, fixture.requestCount())
}

func TestSetupUnreadableWallet(t *testing.T) {
	fixture := newFixture(t, mockledger.Options{})
	opts := fixture.options()
	opts.WalletPath = filepath.Join(t.TempDir(), "missing.json")

	h := harness.New(opts)
	defer h.Close()

	_, err := h.Run(context.Background())
	var confErr *harness.ConfigurationError
	require.True(t, errors.As(err, &confErr), "got %v", err)
	assert.Zero(t, fixture.requestCount())
}

func TestSetupUnhealthyNode(t *testing.T) {
	fixture := newFixture(t, mockledger.Options{Unhealthy: true})

	h := harness.New(fixture.options())
	defer h.Close()

	_, err := h.Run(context.Background())
	var confErr *harness.ConfigurationError
	require.True(t, errors.As(err, &confErr), "got %v", err)
}

func TestSetupOutdatedNode(t *testing.T) {
	fixture := newFixture(t, mockledger.Options{NodeVersion: "1.10.0"})

	h := harness.New(fixture.options())
	defer h.Close()

	_, err := h.Run(context.Background())
	var confErr *harness.ConfigurationError
	require.True(t, errors.As(err, &confErr), "got %v", err)
	assert.ErrorContains(t, err, "older than the minimum supported")
}

func TestResolveAbsentProgram(t *testing.T) {
	fixture := newFixture(t, mockledger.Options{})
	opts := fixture.options()
	opts.ProgramName = "no_such_program"

	h := harness.New(opts)
	defer h.Close()

	require.NoError(t, h.Setup(context.Background()))
	afterSetup := fixture.requestCount()

	err := h.ResolveProgram()
	var resErr *harness.ResolutionError
	require.True(t, errors.As(err, &resErr), "got %v", err)
	// resolution is purely local, the failed lookup must not touch the
	// ledger beyond what setup already did
	assert.Equal(t, afterSetup, fixture.requestCount())
}

func TestInvokeAgainstUnreachableEndpoint(t *testing.T) {
	fixture := newFixture(t, mockledger.Options{})

	h := harness.New(fixture.options())
	defer h.Close()

	require.NoError(t, h.Setup(context.Background()))
	require.NoError(t, h.ResolveProgram())

	// the node goes away between resolution and invocation
	fixture.server.Close()

	_, err := h.InvokeDefault(context.Background())
	var remoteErr *harness.RemoteExecutionError
	require.True(t, errors.As(err, &remoteErr), "got %v", err)
}

func TestInvokeRejectedSubmission(t *testing.T) {
	fixture := newFixture(t, mockledger.Options{RejectSubmissions: true})

	h := harness.New(fixture.options())
	defer h.Close()

	_, err := h.Run(context.Background())
	var remoteErr *harness.RemoteExecutionError
	require.True(t, errors.As(err, &remoteErr), "got %v", err)
	assert.ErrorContains(t, err, "submissions are disabled")
}

func TestInvokeConfirmationTimeout(t *testing.T) {
	fixture := newFixture(t, mockledger.Options{NeverConfirm: true})
	opts := fixture.options()
	opts.ConfirmTimeout = 200 * time.Millisecond

	h := harness.New(opts)
	defer h.Close()

	_, err := h.Run(context.Background())
	var remoteErr *harness.RemoteExecutionError
	require.True(t, errors.As(err, &remoteErr), "got %v", err)
	assert.ErrorContains(t, err, "was not confirmed")
}

func TestInvokeExecutionError(t *testing.T) {
	fixture := newFixture(t, mockledger.Options{ExecutionError: "custom program error: 0x0"})

	h := harness.New(fixture.options())
	defer h.Close()

	_, err := h.Run(context.Background())
	var remoteErr *harness.RemoteExecutionError
	require.True(t, errors.As(err, &remoteErr), "got %v", err)
	assert.True(t, errors.Is(err, ledger.ErrTransactionFailed), "got %v", err)
}

func TestInvokeWithoutSetup(t *testing.T) {
	h := harness.New(harness.Options{})
	defer h.Close()

	_, err := h.InvokeDefault(context.Background())
	var confErr *harness.ConfigurationError
	require.True(t, errors.As(err, &confErr), "got %v", err)
}

func TestRunRecordsMetrics(t *testing.T) {
	fixture := newFixture(t, mockledger.Options{})
	registry := prometheus.NewRegistry()
	opts := fixture.options()
	opts.Registry = registry

	h := harness.New(opts)
	defer h.Close()

	_, err := h.Run(context.Background())
	require.NoError(t, err)

	families, err := registry.Gather()
	require.NoError(t, err)
	counters := map[string]float64{}
	for _, family := range families {
		if family.GetType() == dto.MetricType_COUNTER {
			counters[family.GetName()] = family.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), counters["harness_invocations_submitted_total"])
	assert.Equal(t, float64(1), counters["harness_invocations_confirmed_total"])
	assert.Equal(t, float64(0), counters["harness_invocations_failed_total"])
}

func TestRunJournalsOutcomes(t *testing.T) {
	fixture := newFixture(t, mockledger.Options{})
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	opts := fixture.options()
	opts.Journal = j

	h := harness.New(opts)
	defer h.Close()

	sig, err := h.Run(context.Background())
	require.NoError(t, err)

	records, err := j.Latest(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, journal.StatusConfirmed, records[0].Status)
	assert.Equal(t, testProgramName, records[0].Program)
	assert.Equal(t, sig.String(), records[0].Signature)
	assert.Equal(t, "initialize", records[0].Instruction)
	assert.NotZero(t, records[0].Slot)
}
