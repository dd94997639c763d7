// Command chesscore runs the engine behind a UCI loop on stdin/stdout.
package main

import (
	"errors"
	"flag"
	"os"
	"runtime/pprof"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hailam/chesscore/internal/engine"
	"github.com/hailam/chesscore/internal/storage"
	"github.com/hailam/chesscore/internal/uci"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	hashMB     = flag.Int("hash", engine.DefaultHashMB, "transposition table size in MiB")
	threads    = flag.Int("threads", 1, "number of search threads")
	overhead   = flag.Duration("overhead", 10*time.Millisecond, "move overhead subtracted from clock budgets")
	evalFile   = flag.String("evalfile", "", "network weight file (default: data dir, else classical eval)")
	dbDir      = flag.String("analysisdb", "", "analysis database directory (default: data dir)")
	noDB       = flag.Bool("nodb", false, "do not open the analysis database")
	logLevel   = flag.String("loglevel", "info", "log level (trace, debug, info, warn, error)")
)

func main() {
	flag.Parse()

	// stdout carries the protocol, so logs go to stderr.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		log.Warn().Str("level", *logLevel).Msg("unknown-log-level")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create CPU profile")
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
		log.Info().Str("file", profilePath).Msg("cpu-profile")
	}

	opts := engine.Options{HashMB: *hashMB, Threads: *threads, MoveOverhead: *overhead}
	netPath := *evalFile

	store := openStore()
	if store != nil {
		defer store.Close()
		saved, err := store.LoadOptions()
		switch {
		case err == nil:
			opts = engine.Options{HashMB: saved.Hash, Threads: saved.Threads, MoveOverhead: saved.Overhead()}
			if netPath == "" {
				netPath = saved.EvalFile
			}
			log.Info().Int("hash", saved.Hash).Int("threads", saved.Threads).Msg("options-restored")
		case !errors.Is(err, storage.ErrNotFound):
			log.Warn().Err(err).Msg("options-load-failed")
		}
		if n, err := store.CountAnalyses(); err == nil {
			log.Debug().Int("positions", n).Msg("analysis-db")
		}
	}

	eng := engine.NewEngine(opts)
	defer eng.Close()

	if store != nil {
		eng.SetAnalysisStore(store)
	}
	u := uci.New(eng, store, os.Stdout)

	if netPath == "" {
		if p, ok := storage.DefaultNetworkPath(); ok {
			netPath = p
		}
	}
	if netPath != "" {
		if err := eng.LoadNetwork(netPath); err != nil {
			log.Warn().Err(err).Str("file", netPath).Msg("network-not-loaded")
		} else {
			u.SetEvalFile(netPath)
			log.Info().Str("file", netPath).Msg("network-loaded")
		}
	} else {
		log.Info().Msg("classical-eval")
	}

	if err := u.Run(os.Stdin); err != nil {
		log.Error().Err(err).Msg("uci-loop-failed")
	}
}

func openStore() *storage.Storage {
	if *noDB {
		return nil
	}
	var (
		store *storage.Storage
		err   error
	)
	if *dbDir != "" {
		store, err = storage.Open(*dbDir)
	} else {
		store, err = storage.NewStorage()
	}
	if err != nil {
		log.Warn().Err(err).Msg("analysis-db-unavailable")
		return nil
	}
	return store
}
