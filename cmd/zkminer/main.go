// Command zkminer runs the proof-generation acceleration core as a
// standalone daemon. Candidates arrive as hex-encoded commitments, one
// per line on stdin; proofs leave as lines on stdout. A node process
// drives it through that pipe pair, and an HTTP endpoint exposes
// metrics and cache statistics.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nholt/zkminer/internal/config"
	"github.com/nholt/zkminer/internal/domain"
	"github.com/nholt/zkminer/internal/logging"
	"github.com/nholt/zkminer/internal/mining"
	"github.com/nholt/zkminer/internal/poly"
	"github.com/nholt/zkminer/internal/prover"
	"github.com/nholt/zkminer/internal/server"
)

func main() {
	if err := run(); err != nil && err != context.Canceled {
		fmt.Fprintln(os.Stderr, "zkminer:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	zerolog.SetGlobalLevel(cfg.LogLevel)
	log := logging.NewDefaultLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache := domain.NewCache(log, poly.New(log, poly.Options{
		MaxWorkers: cfg.Mining.TotalThreads,
	}))

	builder := &prover.Builder{
		ProgramPath: cfg.ProgramPath,
		Cache:       cache,
		Threads:     cfg.Mining.ThreadsPerWorker(),
		TraceLog:    cfg.TraceLog,
		Log:         log,
	}

	var srv *server.Server
	if cfg.MetricsAddr != "" {
		srv = server.New(log, cfg.MetricsAddr, server.WithCacheStats(cache))
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("operational endpoint failed", err)
			}
		}()
	}

	dispatcher := mining.NewDispatcher(log, cfg.Mining, builder, proofPrinter(os.Stdout))

	source := make(chan mining.Candidate)
	go readCandidates(ctx, log, source)

	err := dispatcher.Run(ctx, source)

	stats := cache.Stats()
	log.Info("domain cache statistics",
		logging.Int("domains", stats.Domains),
		logging.Uint64("hits", stats.Hits),
		logging.Uint64("misses", stats.Misses),
		logging.Float64("hit_rate", stats.HitRate()),
		logging.Uint64("shift_calls", stats.ShiftCalls),
		logging.Uint64("intercosate_calls", stats.IntercosateCalls),
	)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			log.Error("endpoint shutdown failed", serr)
		}
	}
	return err
}

// proofPrinter writes one line per proof: sequence, nonce, digest. The
// sink runs from many workers at once, so writes are serialized.
func proofPrinter(w *os.File) mining.ProofSink {
	var mu sync.Mutex
	return func(p mining.Proof) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "%d %016x %x\n", p.Candidate.Seq, p.Nonce, p.Digest)
	}
}

// readCandidates feeds stdin lines into the dispatcher source until EOF
// or shutdown. Each line is a hex-encoded commitment; malformed lines
// are logged and skipped.
func readCandidates(ctx context.Context, log logging.Logger, source chan<- mining.Candidate) {
	defer close(source)

	scanner := bufio.NewScanner(os.Stdin)
	var seq uint64
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		commitment, err := hex.DecodeString(line)
		if err != nil {
			log.Warn("skipping malformed candidate line", logging.Err(err))
			continue
		}
		seq++
		select {
		case source <- mining.Candidate{Seq: seq, Commitment: commitment}:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error("candidate input failed", err)
	}
}
