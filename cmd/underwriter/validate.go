package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hatsunemiku3939/underwriter"
	"github.com/hatsunemiku3939/underwriter/catalog"
	"github.com/hatsunemiku3939/underwriter/config"
	"github.com/hatsunemiku3939/underwriter/pkg/similarity"
	"github.com/hatsunemiku3939/underwriter/resolver"
	"github.com/hatsunemiku3939/underwriter/rules"
	"github.com/hatsunemiku3939/underwriter/store"
	"github.com/hatsunemiku3939/underwriter/types"
)

var (
	messageFile  string
	fixturesFile string
)

// validateCmd runs one checklist offline and prints its results without committing them.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the checklist of one message and print the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(messageFile)
		if err != nil {
			return err
		}
		body, err := underwriter.Unwrap(raw)
		if err != nil {
			return err
		}
		msg, err := types.DecodeMessage(body)
		if err != nil {
			return err
		}

		db := store.NewMemoryStore()
		if fixturesFile != "" {
			if err := loadFixtures(db, fixturesFile); err != nil {
				return err
			}
		}

		registry, err := catalog.Registry(
			catalog.WithDuplicateDetection(cfg.Similarity.Threshold, similarity.Metric(cfg.Similarity.Metric)),
		)
		if err != nil {
			return err
		}
		dispatcher := rules.NewDispatcher(registry, resolver.New(db, cfg.Similarity.DocumentTypes))
		results, err := dispatcher.Dispatch(cmd.Context(), types.NewSubject(msg))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	validateCmd.Flags().StringVarP(&messageFile, "file", "f", "", "Path to a validation message")
	validateCmd.Flags().StringVar(&fixturesFile, "fixtures", "", "Path to a JSON list of beneficiaries the checks may depend on")
	_ = validateCmd.MarkFlagRequired("file")
}

func loadFixtures(db *store.MemoryStore, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var beneficiaries []store.Beneficiary
	if err := json.Unmarshal(raw, &beneficiaries); err != nil {
		return fmt.Errorf("decode fixtures %s: %w", path, err)
	}
	for _, b := range beneficiaries {
		db.Put(b)
	}
	return nil
}
