package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/yourusername/monster-battle/internal/catalog"
	"github.com/yourusername/monster-battle/internal/game"
)

// DefaultReportLimit caps ListReports when no limit is given
const DefaultReportLimit = 50

// Report is the record of a finished battle
type Report struct {
	ID         string                `json:"id"`
	Encounter  catalog.EncounterKind `json:"encounter"`
	Outcome    game.State            `json:"outcome"`
	Turns      int                   `json:"turns"`
	Experience int                   `json:"experience"`
	Party      []string              `json:"party"` // template IDs
	Transcript []string              `json:"transcript"`
	CreatedAt  time.Time             `json:"createdAt"`
}

// NewReport builds a report from a session that has ended
func NewReport(s *game.Session) (*Report, error) {
	if !s.State().Terminal() {
		return nil, errors.Errorf("session %s is still %s", s.ID, s.State())
	}
	party := make([]string, 0, len(s.Side(game.SidePlayer)))
	for _, c := range s.Side(game.SidePlayer) {
		party = append(party, c.TemplateID)
	}
	return &Report{
		ID:         s.ID,
		Encounter:  s.Encounter,
		Outcome:    s.State(),
		Turns:      s.Turn,
		Experience: s.Experience,
		Party:      party,
		Transcript: s.Transcript(),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// SaveReport records a finished battle. Saving the same battle again
// replaces the earlier record.
func (d *DB) SaveReport(ctx context.Context, r *Report) error {
	party, err := json.Marshal(r.Party)
	if err != nil {
		return errors.Wrap(err, "encode party")
	}
	transcript, err := json.Marshal(r.Transcript)
	if err != nil {
		return errors.Wrap(err, "encode transcript")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err = d.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO battle_reports (id, encounter, outcome, turns, experience, party, transcript, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Encounter), string(r.Outcome), r.Turns, r.Experience, string(party), string(transcript), r.CreatedAt)
	return errors.Wrapf(err, "save report %s", r.ID)
}

// Report loads one battle report
func (d *DB) Report(ctx context.Context, id string) (*Report, error) {
	row := d.conn.QueryRowContext(ctx, `
		SELECT id, encounter, outcome, turns, experience, party, transcript, created_at
		FROM battle_reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "report %s", id)
	}
	return r, errors.Wrapf(err, "load report %s", id)
}

// ListReports returns the most recent reports first
func (d *DB) ListReports(ctx context.Context, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = DefaultReportLimit
	}
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, encounter, outcome, turns, experience, party, transcript, created_at
		FROM battle_reports ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list reports")
	}
	defer rows.Close()

	out := make([]*Report, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan report")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "list reports")
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row scanner) (*Report, error) {
	var (
		r                  Report
		encounter, outcome string
		party, transcript  string
	)
	if err := row.Scan(&r.ID, &encounter, &outcome, &r.Turns, &r.Experience, &party, &transcript, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Encounter = catalog.EncounterKind(encounter)
	r.Outcome = game.State(outcome)
	if err := json.Unmarshal([]byte(party), &r.Party); err != nil {
		return nil, errors.Wrap(err, "decode party")
	}
	if err := json.Unmarshal([]byte(transcript), &r.Transcript); err != nil {
		return nil, errors.Wrap(err, "decode transcript")
	}
	return &r, nil
}
