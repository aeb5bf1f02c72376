package cli

import (
	"context"
	"fmt"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	if !c.Force {
		fmt.Println("⚠ WARNING: This will permanently delete ALL archived data.")
		fmt.Println("  - All processed artifacts")
		fmt.Println("  - All visits, downloads and download sources")
		fmt.Println()
		fmt.Println("Exclusion rules are kept. This action cannot be undone.")
		fmt.Println()
		input, err := confirm(c.stdin, `Type "PURGE" to confirm: `)
		if err != nil {
			return err
		}
		if input != "PURGE" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	ctx := context.Background()
	sess, err := openSession(ctx, c.globals, c.store)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.store.PurgeAll(ctx); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]interface{}{
			"purged":  true,
			"message": "all data deleted",
		})
	}

	fmt.Println("Purged all data. The archive is empty.")
	return nil
}
