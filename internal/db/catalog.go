package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/yourusername/monster-battle/internal/catalog"
)

// Seed writes catalog data into the database. Existing rows with the same
// identifiers are updated, so seeding twice is harmless.
func (d *DB) Seed(ctx context.Context, data *catalog.Data) error {
	if data == nil {
		return errors.New("nothing to seed")
	}

	err := d.tx(ctx, func(tx *sql.Tx) error {
		for i, s := range data.Skills {
			if err := upsertSkill(ctx, tx, i, s); err != nil {
				return errors.Wrapf(err, "seed skill %q", s.ID)
			}
		}
		for i, t := range data.Templates {
			if err := upsertTemplate(ctx, tx, i, t); err != nil {
				return errors.Wrapf(err, "seed template %q", t.ID)
			}
		}
		for _, e := range data.Encounters {
			enemies, err := json.Marshal(e.Enemies)
			if err != nil {
				return errors.Wrapf(err, "encode %s enemies", e.Kind)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO encounters (kind, enemies, min_level, max_level)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(kind) DO UPDATE SET
					enemies = excluded.enemies,
					min_level = excluded.min_level,
					max_level = excluded.max_level`,
				string(e.Kind), string(enemies), e.MinLevel, e.MaxLevel)
			if err != nil {
				return errors.Wrapf(err, "seed encounter %q", e.Kind)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	glog.Infof("db: seeded %d skills, %d templates, %d encounter tables",
		len(data.Skills), len(data.Templates), len(data.Encounters))
	return nil
}

func upsertSkill(ctx context.Context, tx *sql.Tx, position int, s *catalog.Skill) error {
	var kind sql.NullString
	var duration, magnitude sql.NullInt64
	var chance sql.NullFloat64
	if s.Status != nil {
		kind = sql.NullString{String: string(s.Status.Kind), Valid: true}
		duration = sql.NullInt64{Int64: int64(s.Status.Duration), Valid: true}
		magnitude = sql.NullInt64{Int64: int64(s.Status.Magnitude), Valid: true}
		chance = sql.NullFloat64{Float64: s.Status.Chance, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO skills (id, position, name, description, quote, category, magnitude, cost,
			target, heal_mode, hits, crit_chance, crit_multiplier, ignore_defense, max_magnitude,
			status_kind, status_duration, status_magnitude, status_chance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			position = excluded.position,
			name = excluded.name,
			description = excluded.description,
			quote = excluded.quote,
			category = excluded.category,
			magnitude = excluded.magnitude,
			cost = excluded.cost,
			target = excluded.target,
			heal_mode = excluded.heal_mode,
			hits = excluded.hits,
			crit_chance = excluded.crit_chance,
			crit_multiplier = excluded.crit_multiplier,
			ignore_defense = excluded.ignore_defense,
			max_magnitude = excluded.max_magnitude,
			status_kind = excluded.status_kind,
			status_duration = excluded.status_duration,
			status_magnitude = excluded.status_magnitude,
			status_chance = excluded.status_chance`,
		string(s.ID), position, s.Name, s.Description, s.Quote, string(s.Category), s.Magnitude, s.Cost,
		string(s.Target), string(s.HealMode), s.Hits, s.CritChance, s.CritMultiplier, s.IgnoreDefense, s.MaxMagnitude,
		kind, duration, magnitude, chance)
	return err
}

func upsertTemplate(ctx context.Context, tx *sql.Tx, position int, t *catalog.Template) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO templates (id, position, name, level, max_hp, attack, defense, max_sp, initial_sp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			position = excluded.position,
			name = excluded.name,
			level = excluded.level,
			max_hp = excluded.max_hp,
			attack = excluded.attack,
			defense = excluded.defense,
			max_sp = excluded.max_sp,
			initial_sp = excluded.initial_sp`,
		t.ID, position, t.Name, t.Level, t.MaxHP, t.Attack, t.Defense, t.MaxSP, t.InitialSP)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM template_skills WHERE template_id = ?`, t.ID); err != nil {
		return err
	}
	for i, id := range t.Skills {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO template_skills (template_id, position, skill_id) VALUES (?, ?, ?)`,
			t.ID, i, string(id))
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadData reads the whole catalog back in seeding order
func (d *DB) LoadData(ctx context.Context) (*catalog.Data, error) {
	data := &catalog.Data{}

	skills, err := d.loadSkills(ctx)
	if err != nil {
		return nil, err
	}
	data.Skills = skills

	rows, err := d.conn.QueryContext(ctx, `SELECT id FROM templates ORDER BY position, id`)
	if err != nil {
		return nil, errors.Wrap(err, "list templates")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan template id")
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list templates")
	}
	for _, id := range ids {
		t, err := d.Template(ctx, id)
		if err != nil {
			return nil, err
		}
		data.Templates = append(data.Templates, t)
	}

	encounters, err := d.loadEncounters(ctx)
	if err != nil {
		return nil, err
	}
	data.Encounters = encounters

	return data, nil
}

// Catalog loads and validates the stored catalog
func (d *DB) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	data, err := d.LoadData(ctx)
	if err != nil {
		return nil, err
	}
	c, err := catalog.New(data)
	if err != nil {
		return nil, errors.Wrap(err, "stored catalog is invalid")
	}
	return c, nil
}

// Template loads one roster template with its skills in learned order
func (d *DB) Template(ctx context.Context, id string) (*catalog.Template, error) {
	t := &catalog.Template{ID: id}
	err := d.conn.QueryRowContext(ctx, `
		SELECT name, level, max_hp, attack, defense, max_sp, initial_sp
		FROM templates WHERE id = ?`, id).
		Scan(&t.Name, &t.Level, &t.MaxHP, &t.Attack, &t.Defense, &t.MaxSP, &t.InitialSP)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(catalog.ErrUnknownTemplate, "template %q", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load template %q", id)
	}

	rows, err := d.conn.QueryContext(ctx,
		`SELECT skill_id FROM template_skills WHERE template_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "load skills of %q", id)
	}
	defer rows.Close()
	for rows.Next() {
		var skill string
		if err := rows.Scan(&skill); err != nil {
			return nil, errors.Wrapf(err, "scan skill of %q", id)
		}
		t.Skills = append(t.Skills, catalog.SkillID(skill))
	}
	return t, errors.Wrapf(rows.Err(), "load skills of %q", id)
}

func (d *DB) loadSkills(ctx context.Context) ([]*catalog.Skill, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, name, description, quote, category, magnitude, cost, target, heal_mode,
			hits, crit_chance, crit_multiplier, ignore_defense, max_magnitude,
			status_kind, status_duration, status_magnitude, status_chance
		FROM skills ORDER BY position, id`)
	if err != nil {
		return nil, errors.Wrap(err, "list skills")
	}
	defer rows.Close()

	var out []*catalog.Skill
	for rows.Next() {
		var (
			s                   catalog.Skill
			id, category        string
			target, healMode    string
			kind                sql.NullString
			duration, magnitude sql.NullInt64
			chance              sql.NullFloat64
		)
		err := rows.Scan(&id, &s.Name, &s.Description, &s.Quote, &category, &s.Magnitude, &s.Cost,
			&target, &healMode, &s.Hits, &s.CritChance, &s.CritMultiplier, &s.IgnoreDefense, &s.MaxMagnitude,
			&kind, &duration, &magnitude, &chance)
		if err != nil {
			return nil, errors.Wrap(err, "scan skill")
		}
		s.ID = catalog.SkillID(id)
		s.Category = catalog.Category(category)
		s.Target = catalog.Selector(target)
		s.HealMode = catalog.HealMode(healMode)
		if kind.Valid {
			s.Status = &catalog.StatusSpec{
				Kind:      catalog.StatusKind(kind.String),
				Duration:  int(duration.Int64),
				Magnitude: int(magnitude.Int64),
				Chance:    chance.Float64,
			}
		}
		out = append(out, &s)
	}
	return out, errors.Wrap(rows.Err(), "list skills")
}

func (d *DB) loadEncounters(ctx context.Context) ([]*catalog.EncounterTable, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT kind, enemies, min_level, max_level FROM encounters
		ORDER BY CASE kind WHEN 'wild' THEN 0 WHEN 'mini_boss' THEN 1 WHEN 'stage_boss' THEN 2 ELSE 3 END`)
	if err != nil {
		return nil, errors.Wrap(err, "list encounters")
	}
	defer rows.Close()

	var out []*catalog.EncounterTable
	for rows.Next() {
		var kind, enemies string
		e := &catalog.EncounterTable{}
		if err := rows.Scan(&kind, &enemies, &e.MinLevel, &e.MaxLevel); err != nil {
			return nil, errors.Wrap(err, "scan encounter")
		}
		e.Kind = catalog.EncounterKind(kind)
		if err := json.Unmarshal([]byte(enemies), &e.Enemies); err != nil {
			return nil, errors.Wrapf(err, "decode %s enemies", kind)
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "list encounters")
}
