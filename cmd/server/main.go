package main

import (
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/cigarpricescout/pipeline/config"
	httpDelivery "github.com/cigarpricescout/pipeline/internal/delivery/http"
	"github.com/cigarpricescout/pipeline/internal/domain"
	"github.com/cigarpricescout/pipeline/internal/infrastructure/cache"
	"github.com/cigarpricescout/pipeline/internal/infrastructure/catalog"
	"github.com/cigarpricescout/pipeline/internal/infrastructure/ledger"
	"github.com/cigarpricescout/pipeline/internal/usecase"
)

func main() {
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

	log := logrus.WithField("component", "server")
	log.WithFields(logrus.Fields{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"retailers":   len(cfg.Retailers),
	}).Info("starting cigarpricescout api")

	catalogs := make(map[string]domain.CatalogRepository, len(cfg.Retailers))
	for name, rc := range cfg.Retailers {
		store := catalog.NewStore(name, filepath.Join(cfg.Data.CatalogDir, rc.CatalogFile))
		store.SetBackupRetention(cfg.Data.BackupRetention)
		catalogs[name] = store
	}

	priceLedger, err := ledger.New(cfg.Data.LedgerPath)
	if err != nil {
		log.WithError(err).Fatal("failed to open price ledger")
	}

	rules, err := usecase.LoadPromotionRules(cfg.Data.PromotionsPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load promotion rules")
	}
	promos := usecase.NewPromotionService(rules)

	offers := usecase.NewOfferService(catalogs, promos, cache.NewMemoryCache())
	offers.SetCacheTTL(cfg.Cache.TTL)

	handler := httpDelivery.NewHandler(offers, priceLedger)
	router := httpDelivery.SetupRouter(cfg, handler)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.WithField("addr", addr).Info("server listening")
	if err := router.Run(addr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
