package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourusername/monster-battle/internal/db"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the skill catalog and roster into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := sourceCatalog(cfg)
		if err != nil {
			return err
		}

		store, err := db.New(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		data := cat.Data()
		if err := store.Seed(cmd.Context(), data); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s: %d skills, %d templates, %d encounter tables\n",
			cfg.DBPath, len(data.Skills), len(data.Templates), len(data.Encounters))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
