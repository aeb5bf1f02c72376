package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/runnerr0/histlens/internal/analysis"
	"github.com/runnerr0/histlens/internal/storage"
)

// Execute implements the go-flags Commander interface for OpenCommand.
func (c *OpenCommand) Execute(args []string) error {
	if c.ID == "" {
		return fmt.Errorf("--id is required for open command")
	}

	ctx := context.Background()
	sess, err := openSession(ctx, c.globals, c.store)
	if err != nil {
		return err
	}
	defer sess.Close()

	b, err := sess.store.LoadBundle(ctx, c.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("artifact not found: %s", c.ID)
	}
	if err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(b)
	}

	switch c.Format {
	case "json":
		return printJSON(b)
	case "sources":
		c.outputSources(b)
	case "downloads":
		c.outputDownloads(b)
	case "sync":
		c.outputSync(b)
	case "", "full":
		c.outputFull(b)
	default:
		return fmt.Errorf("unknown format %q (use full, sources, downloads, sync or json)", c.Format)
	}
	return nil
}

func (c *OpenCommand) outputFull(b *analysis.Bundle) {
	fmt.Println(b.ID)
	fmt.Printf("Browser:    %s\n", b.Family)
	fmt.Printf("Source:     %s\n", b.SourceName)
	fmt.Printf("Strategy:   %s\n", b.Strategy)
	fmt.Printf("Processed:  %s\n", b.ProcessedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Visits:     %d\n", len(b.Visits))
	fmt.Printf("Downloads:  %d (%d with sources)\n", len(b.Downloads), b.CorrelatedCount())
	for _, w := range b.Warnings {
		fmt.Printf("Warning:    %s\n", w)
	}
	fmt.Println()
	fmt.Println("--- Download sources ---")
	c.outputSources(b)
}

func (c *OpenCommand) outputSources(b *analysis.Bundle) {
	if len(b.DownloadSources) == 0 {
		fmt.Println("No downloads recorded")
		return
	}
	for i, g := range b.DownloadSources {
		fmt.Printf("%d. %s\n", i+1, g.Filename)
		if g.DownloadURL != "" {
			fmt.Printf("   from %s\n", g.DownloadURL)
		}
		if !g.DownloadTime.IsEmpty() {
			fmt.Printf("   at   %s\n", g.DownloadTime)
		}
		if len(g.Sources) == 0 {
			fmt.Println("   no source pages found")
		}
		for _, s := range g.Sources {
			fmt.Printf("   - [%s] %s\n", s.MatchType, s.URL)
			if s.Title != "" {
				fmt.Printf("     %s · %s\n", s.Title, s.Time)
			} else {
				fmt.Printf("     %s\n", s.Time)
			}
		}
		if i < len(b.DownloadSources)-1 {
			fmt.Println()
		}
	}
}

func (c *OpenCommand) outputDownloads(b *analysis.Bundle) {
	if len(b.Downloads) == 0 {
		fmt.Println("No downloads recorded")
		return
	}
	for _, d := range b.Downloads {
		fmt.Printf("%s\t%s\t%s\t%d\t%s\n", d.DownloadTime, d.Status, d.Filename, d.FileSize, d.SourceURL)
	}
}

func (c *OpenCommand) outputSync(b *analysis.Bundle) {
	info := b.SyncInfo
	if info.HasAccount() {
		fmt.Printf("Account:    %s", info.AccountInfo.Email)
		if info.AccountInfo.Name != "" {
			fmt.Printf(" (%s)", info.AccountInfo.Name)
		}
		fmt.Println()
		if info.AccountInfo.AccountType != "" {
			fmt.Printf("Type:       %s\n", info.AccountInfo.AccountType)
		}
	} else {
		fmt.Println("Account:    none")
	}
	if info.SyncSettings.Enabled {
		fmt.Println("Sync:       enabled")
	} else {
		fmt.Println("Sync:       disabled")
	}
	if info.SyncSettings.LastSyncTime != "" {
		fmt.Printf("Last sync:  %s\n", info.SyncSettings.LastSyncTime)
	}
	for _, dt := range info.SyncSettings.DataTypes {
		state := "off"
		if dt.Enabled {
			state = "on"
		}
		fmt.Printf("  %-20s %s\n", dt.Name, state)
	}
	fmt.Printf("Synced visits: %d\n", len(info.SyncedVisits))
	for _, v := range info.SyncedVisits {
		fmt.Printf("  %s  %s  (%s)\n", v.VisitTime, v.URL, v.SourceDesc)
	}
}
