package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/cigarpricescout/pipeline/config"
	"github.com/cigarpricescout/pipeline/internal/infrastructure/catalog"
	"github.com/cigarpricescout/pipeline/internal/infrastructure/extract"
	"github.com/cigarpricescout/pipeline/internal/infrastructure/fetch"
	"github.com/cigarpricescout/pipeline/internal/infrastructure/ledger"
	"github.com/cigarpricescout/pipeline/internal/infrastructure/master"
	"github.com/cigarpricescout/pipeline/internal/usecase"
)

func main() {
	only := flag.String("retailer", "", "run a single retailer instead of all configured ones")
	flag.Parse()

	os.Exit(run(*only))
}

func run(only string) int {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	if cfg.Server.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetLevel(logrus.DebugLevel)
	}

	log := logrus.WithField("component", "tracker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reference, err := master.Load(cfg.Data.MasterPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load master reference")
	}
	log.WithField("entries", reference.Len()).Info("master reference loaded")

	enricher := usecase.NewEnrichmentService(reference, reference.WrapperAliases())
	enricher.SetSimilarityThreshold(cfg.Enrichment.SimilarityThreshold)

	priceLedger, err := ledger.New(cfg.Data.LedgerPath)
	if err != nil {
		log.WithError(err).Fatal("failed to open price ledger")
	}

	var mirror usecase.ObservationMirror
	if cfg.Mirror.Enabled {
		m, err := ledger.NewMirror(ctx, ledger.MirrorOptions{
			DSN:       cfg.Mirror.DSN,
			Schema:    cfg.Mirror.Schema,
			BatchSize: cfg.Mirror.BatchSize,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to connect observation mirror")
		}
		defer m.Close()
		mirror = m
	}

	fetcher := fetch.NewFetcher(fetch.Options{
		Timeout:    cfg.Extraction.Timeout,
		PerHostRPS: cfg.Extraction.PerHostRPS,
		UserAgent:  cfg.Extraction.UserAgent,
	})

	updater := usecase.NewUpdateService(enricher, priceLedger, mirror)

	retailers := pickRetailers(cfg, only)
	if len(retailers) == 0 {
		log.Fatal("no retailers configured to run")
	}

	exitCode := 0
	for _, name := range retailers {
		rc := cfg.Retailers[name]
		store := catalog.NewStore(name, filepath.Join(cfg.Data.CatalogDir, rc.CatalogFile))
		store.SetBackupRetention(cfg.Data.BackupRetention)
		adapter := extract.NewAdapter(fetcher, cfg.Extraction.LocatorProfile(rc.Profile), name)

		summary, err := updater.RunRetailer(ctx, name, adapter, store)
		if err != nil {
			log.WithError(err).WithField("retailer", name).Error("retailer run aborted")
			exitCode = 1
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if summary.Halted || summary.Failed > 0 {
			exitCode = 1
		}
	}
	return exitCode
}

// pickRetailers returns the configured retailer names to run, sorted
// for a stable run order.
func pickRetailers(cfg *config.Config, only string) []string {
	if only != "" {
		for _, name := range strings.Split(only, ",") {
			if _, ok := cfg.Retailers[strings.TrimSpace(name)]; !ok {
				logrus.WithField("retailer", name).Fatal("unknown retailer")
			}
		}
		names := strings.Split(only, ",")
		for i := range names {
			names[i] = strings.TrimSpace(names[i])
		}
		return names
	}
	names := make([]string, 0, len(cfg.Retailers))
	for name := range cfg.Retailers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
