package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/runnerr0/histlens/internal/storage"
)

// Execute implements the go-flags Commander interface for DeleteCommand.
func (c *DeleteCommand) Execute(args []string) error {
	if c.ID == "" && len(args) > 0 {
		c.ID = args[0]
	}
	if c.ID == "" {
		return fmt.Errorf("--id is required for delete command")
	}

	ctx := context.Background()
	sess, err := openSession(ctx, c.globals, c.store)
	if err != nil {
		return err
	}
	defer sess.Close()

	jsonOut := c.globals != nil && c.globals.JSON
	if !c.Force && !jsonOut {
		input, err := confirm(c.stdin, fmt.Sprintf("Delete artifact %s and all its records? [y/N] ", c.ID))
		if err != nil {
			return err
		}
		if !strings.EqualFold(input, "y") && !strings.EqualFold(input, "yes") {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := sess.store.DeleteArtifact(ctx, c.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("artifact not found: %s", c.ID)
		}
		return fmt.Errorf("delete failed: %w", err)
	}

	if jsonOut {
		return printJSON(map[string]interface{}{"deleted": c.ID})
	}
	fmt.Printf("Deleted artifact %s\n", c.ID)
	return nil
}
