package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"sandfall.io/internal/persistence/indexdb"
	"sandfall.io/internal/sim/grid"
	"sandfall.io/internal/sim/terrain"
	"sandfall.io/internal/sim/tuning"
	"sandfall.io/internal/transport/observer"
)

func main() {
	var (
		terrainPath = flag.String("terrain", "", "path to terrain description (required)")
		configPath  = flag.String("config", "./configs/sim.yaml", "path to sim.yaml (empty for defaults)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		modesFlag   = flag.String("modes", "", "comma separated floor modes, overrides sim.yaml (bounded,floored)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite run index")
		render      = flag.Bool("render", false, "print each final grid to stdout")
		observe     = flag.String("observe", "", "serve the observer on this address after the runs (e.g. 127.0.0.1:8090)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[sandfall] ", log.LstdFlags|log.Lmicroseconds)

	if strings.TrimSpace(*terrainPath) == "" {
		logger.Fatalf("missing -terrain")
	}

	tune, err := tuning.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *configPath)
		tune = tuning.Defaults()
	}
	if m := strings.TrimSpace(*modesFlag); m != "" {
		tune.Modes = strings.Split(m, ",")
		tune.Normalize()
		if err := tune.Validate(); err != nil {
			logger.Fatalf("-modes: %v", err)
		}
	}

	paths, err := terrain.Load(*terrainPath)
	if err != nil {
		logger.Fatalf("load terrain: %v", err)
	}
	base := terrain.Build(paths)
	logger.Printf("terrain %s: %d paths, %d cells, bounds=%+v", filepath.Base(*terrainPath), len(paths), base.Len(), base.Bounds())

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertTuning("sim", tune); err != nil {
			logger.Printf("index: upsert tuning: %v", err)
		}
	}

	r := &runner{
		tune:    tune,
		dataDir: *dataDir,
		idx:     idx,
		reg:     observer.NewRegistry(),
		logger:  logger,
	}
	if *render {
		r.render = os.Stdout
	}

	modes := tune.FloorModes()
	previous := r.lookupPrevious(base, modes)

	failed := false
	for _, mode := range modes {
		out, err := r.run(base.Clone(), mode)
		if err != nil {
			logger.Printf("%s: %v", mode, err)
			failed = true
			continue
		}
		if prev, ok := previous[mode]; ok && (prev.Grains != out.Grains || prev.FinalDigest != out.Digest) {
			logger.Printf("%s: result differs from previous run %s (grains %d vs %d)", mode, prev.RunID, out.Grains, prev.Grains)
		}
	}

	if strings.TrimSpace(*observe) != "" {
		serve(*observe, r.reg, logger)
	}
	if failed {
		if idx != nil {
			_ = idx.Close()
		}
		os.Exit(1)
	}
}

// lookupPrevious fetches earlier runs of the same terrain before any new rows
// are queued on the index.
func (r *runner) lookupPrevious(base *grid.Grid, modes []grid.FloorMode) map[grid.FloorMode]indexdb.RunRecord {
	out := map[grid.FloorMode]indexdb.RunRecord{}
	if r.idx == nil {
		return out
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	digest := base.Digest()
	src := r.tune.Source
	for _, mode := range modes {
		prev, ok, err := r.idx.LatestRun(ctx, digest, mode.String(), src.X, src.Y)
		if err != nil {
			r.logger.Printf("index: lookup %s: %v", mode, err)
			continue
		}
		if ok {
			out[mode] = prev
		}
	}
	return out
}

func serve(addr string, reg *observer.Registry, logger *log.Logger) {
	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	observer.NewServer(reg, logger).Register(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("observer listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
