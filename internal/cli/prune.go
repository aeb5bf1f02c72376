package cli

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// pruneJSON is the JSON output structure for the prune command.
type pruneJSON struct {
	Pruned    int64  `json:"pruned"`
	DryRun    bool   `json:"dry_run"`
	OlderThan string `json:"older_than"`
	Cutoff    string `json:"cutoff"`
}

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	var maxAge time.Duration
	if c.OlderThan != "" {
		d, err := parseDuration(c.OlderThan)
		if err != nil {
			return err
		}
		maxAge = d
	}

	ctx := context.Background()
	sess, err := openSession(ctx, c.globals, c.store)
	if err != nil {
		return err
	}
	defer sess.Close()

	if maxAge == 0 {
		maxAge = sess.cfg.Archive.Retention()
		if maxAge <= 0 {
			return fmt.Errorf("retention is disabled (archive.retention_days = 0); pass --older-than")
		}
	}

	cutoff := time.Now().Add(-maxAge)
	out := pruneJSON{
		DryRun:    c.DryRun,
		OlderThan: formatDurationHuman(maxAge),
		Cutoff:    cutoff.UTC().Format(time.RFC3339),
	}
	jsonOut := c.globals != nil && c.globals.JSON

	count, err := sess.store.CountExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("count expired: %w", err)
	}

	if c.DryRun || count == 0 {
		out.Pruned = count
		if jsonOut {
			return printJSON(out)
		}
		switch {
		case count == 0:
			fmt.Printf("No artifacts to prune (older than %s)\n", out.OlderThan)
		default:
			fmt.Printf("[DRY RUN] Would prune %s older than %s\n", plural(count, "artifact"), out.OlderThan)
		}
		return nil
	}

	if !c.Force && !jsonOut {
		answer, err := confirm(c.stdin, fmt.Sprintf("Prune %s older than %s? Proceed? [y/N] ", plural(count, "artifact"), out.OlderThan))
		if err != nil {
			return err
		}
		if a := strings.ToLower(answer); a != "y" && a != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	n, err := sess.store.PruneExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}
	out.Pruned = n

	if jsonOut {
		return printJSON(out)
	}
	fmt.Printf("Pruned %s older than %s\n", plural(n, "artifact"), out.OlderThan)
	return nil
}
