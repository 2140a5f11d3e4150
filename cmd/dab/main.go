// Command dab is the engine's entrypoint (spec.md §6): one binary, flag
// selected problem/solver/schema/config, running either the driver loop
// (rank 0 in DRIVERWORKER mode, every rank in ALL2ALL mode) or a worker
// loop (other ranks in DRIVERWORKER mode). Grounded on the teacher's
// cmd/distributed/main.go (logger setup, context+signal shutdown) and
// cmd/ollama-distributed/main.go (cobra root command with flags, Version
// field), narrowed to a single command since spec.md §6 describes flags,
// not subcommands.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/antoniogi/dabmpi/internal/agent"
	"github.com/antoniogi/dabmpi/internal/config"
	"github.com/antoniogi/dabmpi/internal/dabcontext"
	"github.com/antoniogi/dabmpi/internal/driver"
	"github.com/antoniogi/dabmpi/internal/metrics"
	"github.com/antoniogi/dabmpi/internal/probmatrix"
	"github.com/antoniogi/dabmpi/internal/problem"
	"github.com/antoniogi/dabmpi/internal/queue"
	"github.com/antoniogi/dabmpi/internal/schema"
	"github.com/antoniogi/dabmpi/internal/solver"
	"github.com/antoniogi/dabmpi/internal/tracing"
	"github.com/antoniogi/dabmpi/internal/transport"
	"github.com/antoniogi/dabmpi/internal/worker"
)

var version = "0.1.0-dev"

type cliOptions struct {
	problemType string
	solverType  string
	schemaPath  string
	configPath  string
	verbosity   int
	fusionCmd   string
	rank        int
	size        int
	listenAddr  string
	metricsAddr string
}

func main() {
	opts := cliOptions{}

	root := &cobra.Command{
		Use:     "dab",
		Short:   "Distributed Artificial Bees optimization engine",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&opts.problemType, "problem", "p", "FUSION", "problem type: FUSION or NONSEPARABLE")
	flags.StringVarP(&opts.solverType, "solver", "s", "DAB", "solver type: DAB or SA")
	flags.StringVarP(&opts.schemaPath, "input", "i", "", "path to the XML parameter schema file (required)")
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to the configuration INI file (required)")
	flags.IntVarP(&opts.verbosity, "verbosity", "v", 3, "verbosity: 1 silences warnings, 2 silences info, 3 silences debug")
	flags.StringVar(&opts.fusionCmd, "fusion-cmd", "", "external command the FUSION problem adapter runs per candidate")
	flags.IntVar(&opts.rank, "rank", envInt("DAB_RANK", 0), "this process's rank (defaults to DAB_RANK)")
	flags.IntVar(&opts.size, "size", envInt("DAB_SIZE", 1), "fleet size, including the driver (defaults to DAB_SIZE)")
	flags.StringVar(&opts.listenAddr, "listen", "", "this rank's transport listen address (DRIVERWORKER mode only)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (e.g. :9090); empty disables the metrics server")
	_ = root.MarkFlagRequired("input")
	_ = root.MarkFlagRequired("config")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "dab:", err)
		os.Exit(1)
	}
}

func envInt(name string, fallback int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}

// run wires every collaborator together and hands off to the driver or
// worker loop. Any error here is a startup/configuration error (spec.md
// §7): fatal, nonzero exit.
func run(ctx context.Context, opts cliOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	sch, err := schema.LoadXML(opts.schemaPath)
	if err != nil {
		return err
	}
	prob, err := problem.New(problem.Kind(opts.problemType), opts.fusionCmd)
	if err != nil {
		return err
	}
	if err := solver.Validate(solver.Kind(opts.solverType)); err != nil {
		return err
	}

	logger := newLogger(opts.verbosity)
	log := logger.WithFields(logrus.Fields{"rank": opts.rank, "run_id": uuid.New().String()})

	tp, err := tracing.New(tracing.Config{ServiceName: "dab", Rank: opts.rank, SamplingRatio: 0})
	if err != nil {
		return fmt.Errorf("dab: start tracing: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("dab: tracer shutdown failed")
		}
	}()

	dctx := dabcontext.New(cfg.Objective, int64(opts.rank)+1, log, tp.Tracer("dab"), cfg.Runtime, config.SafetyMargin)
	mreg := metrics.New(opts.rank)

	if opts.metricsAddr != "" {
		srv := serveMetrics(opts.metricsAddr, mreg, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("dab: metrics server shutdown failed")
			}
		}()
	}

	workDir := filepath.Join(".", fmt.Sprintf("%d", opts.rank))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("dab: create work directory %s: %w", workDir, err)
	}

	kind := problem.Kind(opts.problemType)
	if cfg.CommModel == config.All2All {
		return runAll2All(ctx, cfg, sch, prob, kind, dctx, mreg, opts.rank, workDir)
	}
	return runDriverWorker(ctx, cfg, sch, prob, kind, dctx, mreg, opts, workDir)
}

// serveMetrics starts an HTTP server exposing mreg's collectors at /metrics,
// grounded on the teacher's pkg/observability/prometheus.go
// PrometheusExporter.Start (a dedicated net/http.Server wrapping a ServeMux
// handed promhttp.HandlerFor, run in a background goroutine, stopped via
// Server.Shutdown). Unlike the teacher's single shared exporter, one server
// is started per rank on its own address, since each rank carries its own
// private prometheus.Registry.
func serveMetrics(addr string, mreg *metrics.Registry, log *logrus.Entry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mreg.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("dab: metrics server failed")
		}
	}()
	return srv
}

func newLogger(verbosity int) *logrus.Logger {
	logger := logrus.New()
	switch verbosity {
	case 1:
		logger.SetLevel(logrus.ErrorLevel)
	case 2:
		logger.SetLevel(logrus.WarnLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

func queueFilenames(kind problem.Kind) (finished, pending, top string) {
	if kind == problem.KindNonSeparable {
		return "finishedNonSep.queue", "pendingNonSep.queue", "top.queue"
	}
	return "finished.queue", "pending.queue", "top.queue"
}

func buildQueues(cfg *config.Config, sch *schema.ParameterSchema, kind problem.Kind) (pending, finished, elite *queue.Queue, err error) {
	finishedFile, pendingFile, topFile := queueFilenames(kind)

	pending, err = queue.New(queue.Config{Filename: pendingFile, MaxSize: cfg.PendingSize * 4, Mode: queue.FIFO, Persist: false}, sch, cfg.Objective)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dab: open pending queue: %w", err)
	}
	finished, err = queue.New(queue.Config{Filename: finishedFile, MaxSize: 1 << 30, Mode: queue.Priority, Persist: true}, sch, cfg.Objective)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dab: open finished queue: %w", err)
	}
	elite, err = queue.New(queue.Config{Filename: topFile, MaxSize: cfg.EliteQueue, Mode: queue.Priority, Persist: true}, sch, cfg.Objective)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dab: open elite queue: %w", err)
	}
	return pending, finished, elite, nil
}

func buildAgents(cfg *config.Config, sch *schema.ParameterSchema) []*agent.Agent {
	agCfg := cfg.AgentConfig()
	agents := make([]*agent.Agent, 0, cfg.NEmployed+cfg.NOnlooker+1)
	id := 0
	for i := 0; i < cfg.NEmployed; i++ {
		agents = append(agents, agent.NewEmployed(id, sch, agCfg))
		id++
	}
	for i := 0; i < cfg.NOnlooker; i++ {
		agents = append(agents, agent.NewOnlooker(id, sch, agCfg))
		id++
	}
	agents = append(agents, agent.NewScout(id, sch))
	return agents
}

// runAll2All implements spec.md §5's alternate mode: every rank runs the
// driver algorithm against its own in-process problem evaluation, with no
// transport involved at all.
func runAll2All(ctx context.Context, cfg *config.Config, sch *schema.ParameterSchema, prob problem.Problem, kind problem.Kind, dctx *dabcontext.Context, mreg *metrics.Registry, rank int, workDir string) error {
	pending, finished, elite, err := buildQueues(cfg, sch, kind)
	if err != nil {
		return err
	}
	agents := buildAgents(cfg, sch)
	pm := probmatrix.New(sch, cfg.UseProbMatrix)

	dcfg := driver.Config{
		WorkerRanks:       nil,
		Sources:           3,
		PromotionDir:      workDir,
		WorkDirPrefix:     ".",
		ArtifactFiles:     nil,
		PendingSizeTarget: cfg.PendingSize,
	}
	// RunLocal addresses this process's own scratch directory directly as
	// workDir, not through WorkerDir(rank); PromotionDir is the same
	// directory since there's no separate driver/worker split to promote
	// artifacts across.
	l := driver.New(dcfg, sch, nil, dctx, agents, pending, finished, elite, pm, mreg)
	return l.RunLocal(ctx, prob, rank, workDir)
}

// runDriverWorker implements spec.md §5's default mode: rank 0 runs the
// driver loop, every other rank runs the worker loop, connected by a
// rank-addressed transport.
func runDriverWorker(ctx context.Context, cfg *config.Config, sch *schema.ParameterSchema, prob problem.Problem, kind problem.Kind, dctx *dabcontext.Context, mreg *metrics.Registry, opts cliOptions, workDir string) error {
	log := dctx.Logger
	tr, err := buildTransport(ctx, cfg, opts, log)
	if err != nil {
		return err
	}
	defer tr.Close()

	if opts.rank != 0 {
		w := worker.New(worker.Config{Rank: opts.rank, DriverRank: 0, WorkDir: workDir}, prob, sch, tr, dctx, mreg)
		return w.Run(ctx)
	}

	pending, finished, elite, err := buildQueues(cfg, sch, kind)
	if err != nil {
		return err
	}
	agents := buildAgents(cfg, sch)
	pm := probmatrix.New(sch, cfg.UseProbMatrix)

	workerRanks := make([]int, 0, opts.size-1)
	for r := 1; r < opts.size; r++ {
		workerRanks = append(workerRanks, r)
	}

	dcfg := driver.Config{
		WorkerRanks:       workerRanks,
		Sources:           3,
		PromotionDir:      workDir,
		WorkDirPrefix:     ".",
		ArtifactFiles:     nil,
		PendingSizeTarget: cfg.PendingSize,
	}
	l := driver.New(dcfg, sch, tr, dctx, agents, pending, finished, elite, pm, mreg)
	return l.Run(ctx)
}

func buildTransport(ctx context.Context, cfg *config.Config, opts cliOptions, log *logrus.Entry) (transport.Transport, error) {
	if cfg.Transport == "libp2p" {
		peers := make([]transport.RankAddr, 0, len(cfg.Peers))
		for r, addr := range cfg.Peers {
			if r == opts.rank {
				continue
			}
			peers = append(peers, transport.RankAddr{Rank: r, Addr: addr})
		}
		return transport.NewLibP2P(ctx, opts.rank, opts.listenAddr, peers, log)
	}
	return transport.DialTCP(ctx, opts.rank, opts.listenAddr, cfg.Peers, log)
}
