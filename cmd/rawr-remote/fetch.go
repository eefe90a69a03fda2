package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch ID...",
	Short: "Fetch entities by ID",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer a.close()

		repo, err := a.repository(nil)
		if err != nil {
			return err
		}
		found, err := repo.FindByIDs(cmd.Context(), args)
		if err != nil {
			slog.Error("Fetch failed", "error", err)
			return err
		}

		out := struct {
			Entities any      `json:"entities"`
			Missing  []string `json:"missing,omitempty"`
			Degraded string   `json:"degraded,omitempty"`
		}{Entities: found}
		if doc := repo.Degraded(); doc != nil {
			out.Degraded = doc.DegradedMessage()
			slog.Warn("Remote service degraded", "message", out.Degraded)
		}
		for _, id := range args {
			if _, ok := found[strings.TrimSpace(id)]; !ok {
				out.Missing = append(out.Missing, id)
			}
		}
		return printJSON(out)
	},
}

var getCmd = &cobra.Command{
	Use:   "get PATH",
	Short: "GET a path relative to the base URI and print the document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer a.close()

		repo, err := a.repository(nil)
		if err != nil {
			return err
		}
		doc, err := repo.Get(cmd.Context(), args[0])
		if err != nil {
			slog.Error("Get failed", "error", err)
			return err
		}
		return printJSON(doc)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
