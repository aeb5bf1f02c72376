package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/runnerr0/histlens/internal/export"
	"github.com/runnerr0/histlens/internal/storage"
)

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	if c.ID == "" {
		return fmt.Errorf("--id is required for export command")
	}
	kind, err := export.ParseKind(c.Type)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(c.Format)
	if err != nil {
		return err
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

	if c.Out == "" {
		return export.Write(os.Stdout, b, kind, format)
	}

	path := c.Out
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, export.FileName(kind, format, b.ID))
	}
	if err := writeFile(path, func(w io.Writer) error {
		return export.Write(w, b, kind, format)
	}); err != nil {
		return fmt.Errorf("export %s: %w", kind, err)
	}

	n := export.Count(b, kind)
	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]interface{}{
			"id":      b.ID,
			"type":    kind,
			"format":  format,
			"path":    path,
			"records": n,
		})
	}
	fmt.Printf("Exported %s to %s\n", plural(int64(n), string(kind)+" record"), path)
	return nil
}

// writeFile creates path and streams fn's output into it.
func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
