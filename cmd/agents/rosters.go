package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"realtime-agents/internal/usecase/roster"
)

func jsonMode(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type rosterListing struct {
	Default string              `json:"default"`
	Rosters map[string][]string `json:"rosters"`
}

func rostersCommand(cmd *cobra.Command, _ []string) error {
	reg, _, err := loadRegistry(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if jsonMode(cmd) {
		listing := rosterListing{Default: reg.DefaultKey(), Rosters: make(map[string][]string, reg.Len())}
		for _, key := range reg.Keys() {
			agents, _ := reg.Get(key)
			listing.Rosters[key] = agents.Names()
		}
		return printJSON(out, listing)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tDEFAULT\tAGENTS")
	for _, key := range reg.Keys() {
		agents, _ := reg.Get(key)
		def := ""
		if key == reg.DefaultKey() {
			def = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", key, def, strings.Join(agents.Names(), ", "))
	}
	return w.Flush()
}

func resolveCommand(cmd *cobra.Command, args []string) error {
	reg, log, err := loadRegistry(cmd)
	if err != nil {
		return err
	}
	raw := ""
	if len(args) == 1 {
		raw = args[0]
	}
	res, err := roster.NewResolver(reg, log).ResolveQuery(cmd.Context(), raw)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if jsonMode(cmd) {
		return printJSON(out, res)
	}
	if res.Redirect {
		fmt.Fprintf(out, "redirect: %s\n", res.Location)
		return nil
	}
	selected := res.InitialSelectedName
	if selected == "" {
		selected = "(none)"
	}
	fmt.Fprintf(out, "agentConfig: %s\n", res.ActiveKey)
	fmt.Fprintf(out, "agents:      %s\n", strings.Join(res.Roster.Names(), ", "))
	fmt.Fprintf(out, "selected:    %s\n", selected)
	return nil
}
