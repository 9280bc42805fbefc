package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"signaltap/backend"
	"signaltap/config"
	"signaltap/tagfilter"
)

// tagSource is the part of backend.Client used by one-shot mode.
type tagSource interface {
	ScanTags(ctx context.Context, address string, slot int) ([]backend.Tag, error)
	ReadTags(ctx context.Context, address string, names []string) ([]backend.TagValue, error)
}

// runOnce scans the configured target, reads every tag once, and prints the
// filtered table to w.
func runOnce(cfg *config.Config, w io.Writer) int {
	if cfg.Target.Address == "" {
		fmt.Fprintf(os.Stderr, "Error: no PLC address. Use -ip or %s.\n", config.EnvPLCIP)
		return 2
	}

	state := tagfilter.NewFilterState(cfg.UI.TagTypes)
	state.Text = *filterText
	state.HideUnreadable = cfg.UI.HideUnreadable

	client := backend.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.API.Timeout+time.Second)
	defer cancel()

	rows, total, err := snapshotOnce(ctx, client, cfg.Target, state)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	printRows(w, rows, total)
	return 0
}

// snapshotOnce scans target and reads all of its tags once. It returns the
// filtered rows and the number of scanned tags.
func snapshotOnce(ctx context.Context, src tagSource, target config.TargetConfig, state tagfilter.FilterState) ([]tagfilter.Row, int, error) {
	tags, err := src.ScanTags(ctx, target.Address, target.Slot)
	if err != nil {
		return nil, 0, err
	}
	if len(tags) == 0 {
		return nil, 0, nil
	}

	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	values, err := src.ReadTags(ctx, target.Address, names)
	if err != nil {
		return nil, len(tags), err
	}

	return tagfilter.Apply(tags, tagfilter.Index(values), state), len(tags), nil
}

// printRows writes rows as an aligned table.
func printRows(w io.Writer, rows []tagfilter.Row, total int) {
	if total == 0 {
		fmt.Fprintln(w, "No tags found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tVALUE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Type, r.Value)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d of %d tags shown\n", len(rows), total)
}
