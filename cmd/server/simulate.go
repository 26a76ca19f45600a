package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yourusername/monster-battle/internal/catalog"
	"github.com/yourusername/monster-battle/internal/db"
	"github.com/yourusername/monster-battle/internal/game"
	"github.com/yourusername/monster-battle/internal/generator"
)

var (
	simParty     []string
	simEncounter string
	simSeed      int64
	simMaxTurns  int
	simRecord    bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Auto-play a battle and print its transcript",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := sourceCatalog(cfg)
		if err != nil {
			return err
		}

		party := simParty
		if len(party) == 0 {
			party = cfg.DefaultParty
		}
		seed := simSeed
		if seed == 0 {
			seed = cfg.Seed
		}

		session, err := simulate(cmd.Context(), cmd.OutOrStdout(), cat, party,
			catalog.EncounterKind(simEncounter), seed, simMaxTurns)
		if err != nil {
			return err
		}

		if !simRecord || !session.State().Terminal() {
			return nil
		}
		store, err := db.New(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		report, err := db.NewReport(session)
		if err != nil {
			return err
		}
		return store.SaveReport(cmd.Context(), report)
	},
}

func init() {
	simulateCmd.Flags().StringSliceVarP(&simParty, "party", "p", nil, "party template IDs (default from config)")
	simulateCmd.Flags().StringVarP(&simEncounter, "encounter", "e", string(catalog.EncounterWild), "wild, mini_boss or stage_boss")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "random seed (default from config, then the clock)")
	simulateCmd.Flags().IntVar(&simMaxTurns, "max-turns", 100, "stop after this many turns")
	simulateCmd.Flags().BoolVar(&simRecord, "record", false, "save the finished battle to the database")
	rootCmd.AddCommand(simulateCmd)
}

// simulate plays a battle with a random policy on both sides and writes every
// log line to out
func simulate(ctx context.Context, out io.Writer, cat *catalog.Catalog, party []string,
	kind catalog.EncounterKind, seed int64, maxTurns int) (*game.Session, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gen := generator.NewEncounterGenerator(cat, seed)
	resolver := game.NewResolver(cat, cat, gen, game.WithSeed(seed))

	session, err := resolver.BeginEncounter(ctx, party, kind)
	if err != nil {
		return nil, err
	}
	for _, line := range session.DrainLog() {
		fmt.Fprintln(out, line)
	}

	player := game.RandomPolicy{}
	for turn := 0; turn < maxTurns && !session.State().Terminal(); turn++ {
		action := resolver.Suggest(session, player)
		result, err := resolver.ResolveTurn(session, action)
		if err != nil {
			return nil, errors.Wrapf(err, "turn %d", session.Turn+1)
		}
		fmt.Fprintf(out, "\n-- Turn %d --\n", result.Turn)
		for _, line := range session.DrainLog() {
			fmt.Fprintln(out, line)
		}
	}

	fmt.Fprintf(out, "\nResult: %s after %d turns\n", session.State(), session.Turn)
	glog.V(1).Infof("simulate: session %s ended %s", session.ID, session.State())
	return session, nil
}
