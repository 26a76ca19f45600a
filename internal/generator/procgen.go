package generator

import (
	"context"
	"math"
	mrand "math/rand"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/yourusername/monster-battle/internal/catalog"
)

// LevelScale is the stat change per level above or below a template's own level
const LevelScale = 0.1

// ErrNoEncounter is returned for an encounter kind with no table
var ErrNoEncounter = errors.New("no encounter table")

// Tables is where the generator reads encounter tables and templates from.
// Both *catalog.Catalog and the sqlite store satisfy it.
type Tables interface {
	Encounter(kind catalog.EncounterKind) (*catalog.EncounterTable, bool)
	Template(ctx context.Context, id string) (*catalog.Template, error)
}

// EncounterGenerator handles procedural enemy line-ups
type EncounterGenerator struct {
	seed   int64
	tables Tables

	mu     sync.Mutex
	random *mrand.Rand
}

// NewEncounterGenerator creates a new encounter generator
func NewEncounterGenerator(tables Tables, seed int64) *EncounterGenerator {
	return &EncounterGenerator{
		seed:   seed,
		tables: tables,
		random: mrand.New(mrand.NewSource(seed)),
	}
}

// Seed returns the seed the generator was created with
func (g *EncounterGenerator) Seed() int64 {
	return g.seed
}

// Enemies picks the enemy templates for an encounter kind, scaled to their
// rolled level.
//
// Wild encounters roll one candidate and a level in the table's range.
// A mini boss is one random candidate; a stage boss is always the first.
func (g *EncounterGenerator) Enemies(ctx context.Context, kind catalog.EncounterKind) ([]*catalog.Template, error) {
	table, ok := g.tables.Encounter(kind)
	if !ok || len(table.Enemies) == 0 {
		return nil, errors.Wrapf(ErrNoEncounter, "kind %q", kind)
	}

	var id string
	switch kind {
	case catalog.EncounterStageBoss:
		id = table.Enemies[0]
	default:
		id = table.Enemies[g.intn(len(table.Enemies))]
	}

	tmpl, err := g.tables.Template(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "%s encounter", kind)
	}

	level := g.rollLevel(table.MinLevel, table.MaxLevel)
	enemy := Scale(tmpl, level)
	glog.V(1).Infof("generator: %s encounter rolled %s at level %d", kind, enemy.ID, enemy.Level)
	return []*catalog.Template{enemy}, nil
}

// rollLevel picks a level in [min, max]; a zero range keeps the template level
func (g *EncounterGenerator) rollLevel(min, max int) int {
	if min <= 0 {
		return 0
	}
	if max <= min {
		return min
	}
	return min + g.intn(max-min+1)
}

func (g *EncounterGenerator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.random.Intn(n)
}

// Scale returns a copy of t at level. Health, attack and defense change by
// LevelScale per level of difference and never drop below 1. A level of 0
// returns an unscaled copy.
func Scale(t *catalog.Template, level int) *catalog.Template {
	out := t.Copy()
	if level <= 0 || level == t.Level {
		return out
	}

	factor := 1.0 + float64(level-t.Level)*LevelScale
	scale := func(base int) int {
		return int(math.Max(1, math.Floor(float64(base)*factor)))
	}

	out.Level = level
	out.MaxHP = scale(t.MaxHP)
	out.Attack = scale(t.Attack)
	out.Defense = scale(t.Defense)
	return out
}
