package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	grpcsvc "github.com/vladislavdragonenkov/orderdesk/internal/service/grpc"
)

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 0.0, percentile(nil, 50))
	assert.Equal(t, 3.0, percentile(sorted, 50))
	assert.Equal(t, 5.0, percentile(sorted, 100))
	assert.InDelta(t, 4.8, percentile(sorted, 95), 1e-9)
}

func TestBuildLatencySummary(t *testing.T) {
	summary := buildLatencySummary([]float64{4, 1, 3, 2})
	assert.Equal(t, 1.0, summary.Min)
	assert.Equal(t, 4.0, summary.Max)
	assert.Equal(t, 2.5, summary.Avg)
	assert.Equal(t, 2.5, summary.P50)
	assert.Equal(t, latencySummary{}, buildLatencySummary(nil))
}

func TestCollectorBuildReport(t *testing.T) {
	col := newCollector()
	col.record(scenarioMethod, 2*time.Millisecond, codes.OK)
	col.record(scenarioMethod, 4*time.Millisecond, codes.Unavailable)
	col.record("AddToOrder", time.Millisecond, codes.OK)

	report := col.buildReport(time.Now(), time.Second)

	assert.Equal(t, int64(2), report.TotalScenarios)
	assert.Equal(t, int64(1), report.SuccessScenarios)
	assert.Equal(t, int64(1), report.FailedScenarios)
	assert.Equal(t, 0.5, report.ErrorRate)
	assert.Equal(t, 2.0, report.RPS)
	assert.Equal(t, int64(1), report.Methods[scenarioMethod].Codes[codes.Unavailable.String()])
	assert.Equal(t, int64(1), report.Methods["AddToOrder"].Success)
}

func TestDispatchJobs_StopsAtTotal(t *testing.T) {
	jobs := make(chan int, 10)
	dispatchJobs(context.Background(), jobs, loadOptions{total: 3})

	var got []int
	for index := range jobs {
		got = append(got, index)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestDispatchJobs_StopsOnDuration(t *testing.T) {
	jobs := make(chan int)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range jobs {
		}
	}()

	dispatchJobs(context.Background(), jobs, loadOptions{duration: 20 * time.Millisecond})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch did not stop after duration")
	}
}

func TestLoadOptionsValidate(t *testing.T) {
	valid := loadOptions{addr: "localhost:50051", orderID: "order-1", mode: "read", total: 1, concurrency: 1, connections: 1, timeout: time.Second}
	require.NoError(t, valid.validate())

	cases := map[string]func(o *loadOptions){
		"addr is required":    func(o *loadOptions) { o.addr = " " },
		"order is required":   func(o *loadOptions) { o.orderID = "" },
		"unsupported mode":    func(o *loadOptions) { o.mode = "confirm" },
		"total must be > 0":   func(o *loadOptions) { o.total = 0 },
		"concurrency must be": func(o *loadOptions) { o.concurrency = 0 },
		"connections must be": func(o *loadOptions) { o.connections = 0 },
		"timeout must be > 0": func(o *loadOptions) { o.timeout = 0 },
	}
	for want, mutate := range cases {
		opts := valid
		mutate(&opts)
		err := opts.validate()
		require.Error(t, err, want)
		assert.Contains(t, err.Error(), want)
	}
}

func TestRunLoad_ReadMode(t *testing.T) {
	client := &stubLoadClient{}
	opts := loadOptions{orderID: "order-1", profile: "sales", mode: "read", total: 5, concurrency: 2, timeout: time.Second}

	report, err := runLoad(context.Background(), opts, []loadClient{client})

	require.NoError(t, err)
	assert.Equal(t, int64(5), report.TotalScenarios)
	assert.Zero(t, report.FailedScenarios)
	assert.Equal(t, int64(5), report.Methods["ListCatalogEntries"].Calls)
	assert.Equal(t, int64(5), report.Methods["ListOrderLines"].Calls)
	assert.Equal(t, []string{"sales"}, client.profiles())
}

func TestRunLoad_AddModeCyclesEntries(t *testing.T) {
	client := &stubLoadClient{entries: []string{"pbe-a", "pbe-b"}}
	opts := loadOptions{orderID: "order-1", mode: "add", total: 4, concurrency: 1, timeout: time.Second}

	report, err := runLoad(context.Background(), opts, []loadClient{client})

	require.NoError(t, err)
	assert.Equal(t, int64(4), report.SuccessScenarios)
	assert.Equal(t, []string{"pbe-a", "pbe-b", "pbe-a", "pbe-b"}, client.addedEntries())
	assert.Equal(t, int64(1), report.Methods["ListCatalogEntries"].Calls)
}

func TestRunLoad_CountsFailures(t *testing.T) {
	client := &stubLoadClient{entries: []string{"pbe-a"}, addErr: status.Error(codes.FailedPrecondition, "order is activated")}
	opts := loadOptions{orderID: "order-1", mode: "add", total: 3, concurrency: 3, timeout: time.Second}

	report, err := runLoad(context.Background(), opts, []loadClient{client})

	require.NoError(t, err)
	assert.Equal(t, int64(3), report.FailedScenarios)
	assert.Equal(t, int64(3), report.Methods[scenarioMethod].Codes[codes.FailedPrecondition.String()])
	_, listed := report.Methods["ListOrderLines"]
	assert.False(t, listed)
}

func TestRunLoad_AddModeRequiresCatalog(t *testing.T) {
	opts := loadOptions{orderID: "order-1", mode: "add", total: 1, concurrency: 1, timeout: time.Second}

	_, err := runLoad(context.Background(), opts, []loadClient{&stubLoadClient{}})
	require.ErrorContains(t, err, "catalog is empty")

	_, err = runLoad(context.Background(), opts, nil)
	require.ErrorContains(t, err, "at least one client")
}

func TestWriteJSONReportAndPrint(t *testing.T) {
	col := newCollector()
	col.record(scenarioMethod, time.Millisecond, codes.OK)
	col.record("ListOrderLines", time.Millisecond, codes.OK)
	report := col.buildReport(time.Now(), time.Second)

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, writeJSONReport(path, report))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded loadReport
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, int64(1), decoded.TotalScenarios)
	require.Error(t, writeJSONReport(".", report))

	var out bytes.Buffer
	printLoadReport(&out, loadOptions{mode: "read", orderID: "order-1"}, report)
	assert.True(t, strings.HasPrefix(out.String(), "Load test summary"))
	assert.Contains(t, out.String(), "ListOrderLines: calls=1")
}

type stubLoadClient struct {
	mu          sync.Mutex
	entries     []string
	addErr      error
	added       []string
	profileSeen []string
}

func (s *stubLoadClient) ListCatalogEntries(ctx context.Context, _ *grpcsvc.ListCatalogEntriesRequest, _ ...grpc.CallOption) (*grpcsvc.ListCatalogEntriesResponse, error) {
	s.seeProfile(ctx)
	resp := &grpcsvc.ListCatalogEntriesResponse{}
	for _, id := range s.entries {
		resp.Entries = append(resp.Entries, grpcsvc.CatalogEntry{ID: id})
	}
	return resp, nil
}

func (s *stubLoadClient) ListOrderLines(ctx context.Context, _ *grpcsvc.ListOrderLinesRequest, _ ...grpc.CallOption) (*grpcsvc.ListOrderLinesResponse, error) {
	s.seeProfile(ctx)
	return &grpcsvc.ListOrderLinesResponse{}, nil
}

func (s *stubLoadClient) AddToOrder(_ context.Context, in *grpcsvc.AddToOrderRequest, _ ...grpc.CallOption) (*grpcsvc.WorkflowResponse, error) {
	if s.addErr != nil {
		return nil, s.addErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, in.EntryIDs...)
	return &grpcsvc.WorkflowResponse{Success: true}, nil
}

func (s *stubLoadClient) seeProfile(ctx context.Context) {
	md, _ := metadata.FromOutgoingContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, profile := range md.Get(grpcsvc.MetadataPermissionProfile) {
		if len(s.profileSeen) == 0 || s.profileSeen[len(s.profileSeen)-1] != profile {
			s.profileSeen = append(s.profileSeen, profile)
		}
	}
}

func (s *stubLoadClient) profiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.profileSeen...)
}

func (s *stubLoadClient) addedEntries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.added...)
}

var _ loadClient = (*grpcsvc.Client)(nil)

func TestLoadtestCmd_RejectsInvalidFlags(t *testing.T) {
	_, err := execute(t, "loadtest", "--mode", "confirm")
	require.ErrorContains(t, err, `unsupported mode "confirm"`)

	_, err = execute(t, "loadtest", "--concurrency", "0")
	require.ErrorContains(t, err, "concurrency must be > 0")
}
