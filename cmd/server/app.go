package main

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/yourusername/monster-battle/internal/catalog"
	"github.com/yourusername/monster-battle/internal/config"
	"github.com/yourusername/monster-battle/internal/db"
	"github.com/yourusername/monster-battle/internal/game"
	"github.com/yourusername/monster-battle/internal/generator"
)

// app is everything a command needs to run battles
type app struct {
	cfg       *config.Config
	store     *db.DB
	catalog   *catalog.Catalog
	generator *generator.EncounterGenerator
	resolver  *game.Resolver
}

// sourceCatalog loads the catalog named by the config, or the built-in one
func sourceCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(cfg.CatalogPath)
}

// openApp opens the database, seeds it when it is empty or a catalog file is
// configured, and builds the resolver over the stored catalog
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := db.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	cat, err := loadStoredCatalog(ctx, cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gen := generator.NewEncounterGenerator(cat, seed)

	glog.Infof("catalog: %d skills, %d templates; battle seed %d", len(cat.Skills()), len(cat.Templates()), gen.Seed())
	return &app{
		cfg:       cfg,
		store:     store,
		catalog:   cat,
		generator: gen,
		resolver:  game.NewResolver(cat, store, gen, game.WithSeed(seed)),
	}, nil
}

func loadStoredCatalog(ctx context.Context, cfg *config.Config, store *db.DB) (*catalog.Catalog, error) {
	stored, err := store.LoadData(ctx)
	if err != nil {
		return nil, err
	}

	if len(stored.Skills) == 0 || cfg.CatalogPath != "" {
		source, err := sourceCatalog(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "load catalog")
		}
		if err := store.Seed(ctx, source.Data()); err != nil {
			return nil, err
		}
	}
	return store.Catalog(ctx)
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		glog.Errorf("close database: %v", err)
	}
}
