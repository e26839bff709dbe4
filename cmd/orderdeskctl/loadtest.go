package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orderdesk/internal/app"
	grpcsvc "github.com/vladislavdragonenkov/orderdesk/internal/service/grpc"
)

type loadMode string

const (
	modeRead loadMode = "read"
	modeAdd  loadMode = "add"
)

const scenarioMethod = "scenario"

type loadOptions struct {
	addr        string
	orderID     string
	profile     string
	mode        string
	total       int
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	outputPath  string
}

func (o loadOptions) validate() error {
	switch {
	case strings.TrimSpace(o.addr) == "":
		return errors.New("addr is required")
	case strings.TrimSpace(o.orderID) == "":
		return errors.New("order is required")
	case loadMode(o.mode) != modeRead && loadMode(o.mode) != modeAdd:
		return fmt.Errorf("unsupported mode %q (use read|add)", o.mode)
	case o.duration <= 0 && o.total <= 0:
		return errors.New("total must be > 0 when duration is not set")
	case o.concurrency <= 0:
		return errors.New("concurrency must be > 0")
	case o.connections <= 0:
		return errors.New("connections must be > 0")
	case o.timeout <= 0:
		return errors.New("timeout must be > 0")
	}
	return nil
}

// loadClient — вызовы gRPC, которые гоняет нагрузочный сценарий.
type loadClient interface {
	ListCatalogEntries(ctx context.Context, in *grpcsvc.ListCatalogEntriesRequest, opts ...grpc.CallOption) (*grpcsvc.ListCatalogEntriesResponse, error)
	ListOrderLines(ctx context.Context, in *grpcsvc.ListOrderLinesRequest, opts ...grpc.CallOption) (*grpcsvc.ListOrderLinesResponse, error)
	AddToOrder(ctx context.Context, in *grpcsvc.AddToOrderRequest, opts ...grpc.CallOption) (*grpcsvc.WorkflowResponse, error)
}

func newLoadtestCmd() *cobra.Command {
	opts := loadOptions{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive the gRPC API with concurrent read or add-to-order scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}

			clients := make([]loadClient, 0, opts.connections)
			for i := 0; i < opts.connections; i++ {
				conn, err := grpc.NewClient(opts.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
				if err != nil {
					return fmt.Errorf("create grpc client connection: %w", err)
				}
				defer conn.Close()
				clients = append(clients, grpcsvc.NewClient(conn))
			}

			result, err := runLoad(cmd.Context(), opts, clients)
			if err != nil {
				return err
			}
			printLoadReport(cmd.OutOrStdout(), opts, result)
			if opts.outputPath != "" {
				if err := writeJSONReport(opts.outputPath, result); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}
			if result.FailedScenarios > 0 {
				return fmt.Errorf("%d of %d scenarios failed", result.FailedScenarios, result.TotalScenarios)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "localhost:50051", "gRPC target address")
	cmd.Flags().StringVar(&opts.orderID, "order", app.DemoOrderID, "order used by every scenario")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "permission profile sent as x-permission-profile")
	cmd.Flags().StringVar(&opts.mode, "mode", string(modeRead), "scenario: read (catalog + lines) or add (add-to-order + lines)")
	cmd.Flags().IntVar(&opts.total, "total", 400, "scenarios to run; with --duration acts as an upper bound when > 0")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "run for this long instead of a fixed count")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 8, "concurrent workers")
	cmd.Flags().IntVar(&opts.connections, "connections", 1, "gRPC connections shared by workers")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "timeout per call")
	cmd.Flags().StringVar(&opts.outputPath, "output", "", "write the JSON report to this file")
	return cmd
}

// runLoad прогоняет сценарии на clients по кругу и собирает отчёт.
func runLoad(ctx context.Context, opts loadOptions, clients []loadClient) (loadReport, error) {
	if len(clients) == 0 {
		return loadReport{}, errors.New("at least one client is required")
	}
	col := newCollector()
	if opts.profile != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, grpcsvc.MetadataPermissionProfile, opts.profile)
	}

	var entryIDs []string
	if loadMode(opts.mode) == modeAdd {
		resp, err := timedCall(ctx, opts.timeout, col, "ListCatalogEntries", func(ctx context.Context) (*grpcsvc.ListCatalogEntriesResponse, error) {
			return clients[0].ListCatalogEntries(ctx, &grpcsvc.ListCatalogEntriesRequest{})
		})
		if err != nil {
			return loadReport{}, fmt.Errorf("load catalog: %w", err)
		}
		for _, entry := range resp.Entries {
			entryIDs = append(entryIDs, entry.ID)
		}
		if len(entryIDs) == 0 {
			return loadReport{}, errors.New("catalog is empty, nothing to add")
		}
	}

	startedAt := time.Now()
	jobs := make(chan int, opts.concurrency*2)
	var wg sync.WaitGroup
	for worker := 0; worker < opts.concurrency; worker++ {
		wg.Add(1)
		client := clients[worker%len(clients)]
		go func() {
			defer wg.Done()
			for index := range jobs {
				runScenario(ctx, client, opts, entryIDs, index, col)
			}
		}()
	}

	dispatchJobs(ctx, jobs, opts)
	wg.Wait()
	return col.buildReport(startedAt, time.Since(startedAt)), nil
}

func dispatchJobs(ctx context.Context, jobs chan<- int, opts loadOptions) {
	defer close(jobs)

	var deadline <-chan time.Time
	if opts.duration > 0 {
		timer := time.NewTimer(opts.duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for i := 0; opts.total <= 0 || i < opts.total; i++ {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case jobs <- i:
		}
	}
}

func runScenario(ctx context.Context, client loadClient, opts loadOptions, entryIDs []string, index int, col *collector) {
	start := time.Now()
	code := codes.OK
	defer func() { col.record(scenarioMethod, time.Since(start), code) }()

	switch loadMode(opts.mode) {
	case modeAdd:
		resp, err := timedCall(ctx, opts.timeout, col, "AddToOrder", func(ctx context.Context) (*grpcsvc.WorkflowResponse, error) {
			return client.AddToOrder(ctx, &grpcsvc.AddToOrderRequest{
				OrderID:  opts.orderID,
				EntryIDs: []string{entryIDs[index%len(entryIDs)]},
			})
		})
		if err != nil {
			code = status.Code(err)
			return
		}
		if !resp.Success {
			code = codes.Unknown
			return
		}
	default:
		if _, err := timedCall(ctx, opts.timeout, col, "ListCatalogEntries", func(ctx context.Context) (*grpcsvc.ListCatalogEntriesResponse, error) {
			return client.ListCatalogEntries(ctx, &grpcsvc.ListCatalogEntriesRequest{})
		}); err != nil {
			code = status.Code(err)
			return
		}
	}

	if _, err := timedCall(ctx, opts.timeout, col, "ListOrderLines", func(ctx context.Context) (*grpcsvc.ListOrderLinesResponse, error) {
		return client.ListOrderLines(ctx, &grpcsvc.ListOrderLinesRequest{OrderID: opts.orderID})
	}); err != nil {
		code = status.Code(err)
	}
}

// timedCall выполняет один вызов с таймаутом и пишет его в collector.
func timedCall[T any](ctx context.Context, timeout time.Duration, col *collector, method string, call func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := call(callCtx)
	col.record(method, time.Since(start), status.Code(err))
	return resp, err
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type loadReport struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

func (s *methodStats) report() methodReport {
	codesCopy := make(map[string]int64, len(s.codes))
	for code, count := range s.codes {
		codesCopy[code] = count
	}
	return methodReport{
		Calls:     s.calls,
		Success:   s.calls - s.failed,
		Failed:    s.failed,
		ErrorRate: ratio(s.failed, s.calls),
		Codes:     codesCopy,
		LatencyMs: buildLatencySummary(s.latencies),
	}
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*methodStats)}
}

func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{codes: make(map[string]int64)}
		c.methods[method] = stats
	}
	stats.calls++
	if code != codes.OK {
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) loadReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := loadReport{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}
	for name, stats := range c.methods {
		result.Methods[name] = stats.report()
	}
	if scenario, ok := result.Methods[scenarioMethod]; ok {
		result.TotalScenarios = scenario.Calls
		result.SuccessScenarios = scenario.Success
		result.FailedScenarios = scenario.Failed
		result.ErrorRate = scenario.ErrorRate
		result.ScenarioLatencyMs = scenario.LatencyMs
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}
	return result
}

func printLoadReport(out io.Writer, opts loadOptions, result loadReport) {
	fmt.Fprintln(out, "Load test summary")
	fmt.Fprintf(out, "mode=%s order=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		opts.mode, opts.orderID, result.TotalScenarios, result.SuccessScenarios, result.FailedScenarios, result.ErrorRate)
	fmt.Fprintf(out, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	l := result.ScenarioLatencyMs
	fmt.Fprintf(out, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		l.Min, l.Avg, l.P50, l.P95, l.P99, l.Max)

	names := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name != scenarioMethod {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		stats := result.Methods[name]
		fmt.Fprintf(out, "%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, stats.Calls, stats.Success, stats.Failed, stats.ErrorRate, stats.LatencyMs.P95)
	}
}

func writeJSONReport(path string, result loadReport) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}

	// #nosec G304 -- путь отчёта задаёт оператор.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}
	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile считает перцентиль с линейной интерполяцией по отсортированному срезу.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
