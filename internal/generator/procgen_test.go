package generator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/monster-battle/internal/catalog"
)

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

func TestScale(t *testing.T) {
	base := &catalog.Template{ID: "x", Level: 5, MaxHP: 40, Attack: 10, Defense: 3, Skills: []catalog.SkillID{"tackle"}}

	up := Scale(base, 7)
	assert.Equal(t, 7, up.Level)
	assert.Equal(t, 48, up.MaxHP)
	assert.Equal(t, 12, up.Attack)
	assert.Equal(t, 3, up.Defense)

	down := Scale(base, 1)
	assert.Equal(t, 24, down.MaxHP)
	assert.Equal(t, 6, down.Attack)
	assert.Equal(t, 1, down.Defense)

	floor := Scale(base, -20)
	assert.Equal(t, base.Level, floor.Level, "non-positive level leaves the template alone")

	same := Scale(base, 5)
	assert.Equal(t, base, same)
	same.Skills[0] = "changed"
	assert.Equal(t, catalog.SkillID("tackle"), base.Skills[0])

	tiny := Scale(&catalog.Template{Level: 10, MaxHP: 2, Attack: 2, Defense: 2}, 1)
	assert.Equal(t, 1, tiny.MaxHP)
	assert.Equal(t, 1, tiny.Attack)
}

func TestWildEncounters(t *testing.T) {
	cat := defaultCatalog(t)
	gen := NewEncounterGenerator(cat, 7)
	table, ok := cat.Encounter(catalog.EncounterWild)
	require.True(t, ok)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		enemies, err := gen.Enemies(context.Background(), catalog.EncounterWild)
		require.NoError(t, err)
		require.Len(t, enemies, 1)

		e := enemies[0]
		assert.Contains(t, table.Enemies, e.ID)
		assert.GreaterOrEqual(t, e.Level, table.MinLevel)
		assert.LessOrEqual(t, e.Level, table.MaxLevel)
		assert.Positive(t, e.MaxHP)
		seen[e.ID] = true
	}
	assert.Len(t, seen, len(table.Enemies), "every candidate shows up eventually")
}

func TestBossEncounters(t *testing.T) {
	cat := defaultCatalog(t)
	gen := NewEncounterGenerator(cat, 1)

	enemies, err := gen.Enemies(context.Background(), catalog.EncounterStageBoss)
	require.NoError(t, err)
	require.Len(t, enemies, 1)
	assert.Equal(t, "auditor", enemies[0].ID)
	assert.Equal(t, 15, enemies[0].Level)

	enemies, err = gen.Enemies(context.Background(), catalog.EncounterMiniBoss)
	require.NoError(t, err)
	assert.Equal(t, "ironjaw", enemies[0].ID)
}

func TestGeneratorIsReproducible(t *testing.T) {
	cat := defaultCatalog(t)
	a := NewEncounterGenerator(cat, 99)
	b := NewEncounterGenerator(cat, 99)
	assert.Equal(t, int64(99), a.Seed())

	for i := 0; i < 20; i++ {
		ea, err := a.Enemies(context.Background(), catalog.EncounterWild)
		require.NoError(t, err)
		eb, err := b.Enemies(context.Background(), catalog.EncounterWild)
		require.NoError(t, err)
		assert.Equal(t, ea, eb)
	}
}

func TestMissingEncounterTable(t *testing.T) {
	cat, err := catalog.New(&catalog.Data{})
	require.NoError(t, err)

	_, err = NewEncounterGenerator(cat, 1).Enemies(context.Background(), catalog.EncounterWild)
	assert.ErrorIs(t, err, ErrNoEncounter)
}
