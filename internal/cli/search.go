package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/runnerr0/histlens/internal/storage"
)

// Execute implements the go-flags Commander interface for SearchCommand.
func (c *SearchCommand) Execute(args []string) error {
	query := strings.Join(args, " ")

	now := time.Now()
	var since time.Time
	if c.Since != "" {
		dur, err := parseDuration(c.Since)
		if err != nil {
			return fmt.Errorf("invalid --since value %q: %w", c.Since, err)
		}
		since = now.Add(-dur)
	}

	var until time.Time
	if c.Until != "" {
		dur, err := parseDuration(c.Until)
		if err != nil {
			return fmt.Errorf("invalid --until value %q: %w", c.Until, err)
		}
		until = now.Add(-dur)
	}

	ctx := context.Background()
	sess, err := openSession(ctx, c.globals, c.store)
	if err != nil {
		return err
	}
	defer sess.Close()

	results, err := sess.store.SearchVisits(ctx, storage.SearchQuery{
		Query:      query,
		Domain:     c.Domain,
		ArtifactID: c.Artifact,
		Since:      since,
		Until:      until,
		Limit:      c.Limit,
		Offset:     c.Offset,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return c.printJSON(query, results)
	}
	c.printHuman(query, results)
	return nil
}

func (c *SearchCommand) printHuman(query string, results []storage.VisitHit) {
	if len(results) == 0 {
		if query != "" {
			fmt.Printf("No visits found for %q\n", query)
		} else {
			fmt.Println("No visits found")
		}
		return
	}

	found := plural(int64(len(results)), "visit")
	if query != "" {
		fmt.Printf("Found %s for %q\n\n", found, query)
	} else {
		fmt.Printf("Found %s\n\n", found)
	}

	for i, v := range results {
		title := v.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%d. %s", i+1+c.Offset, title)
		if v.Domain != "" {
			fmt.Printf(" · %s", v.Domain)
		}
		fmt.Println()
		fmt.Printf("   %s\n", v.URL)

		meta := "undated"
		if !v.VisitTime.IsZero() {
			meta = v.VisitTime.Local().Format("2006-01-02 15:04")
		}
		meta += " · " + v.Browser + " · " + v.ArtifactID
		fmt.Printf("   %s\n", meta)

		if i < len(results)-1 {
			fmt.Println()
		}
	}
}

type jsonSearchOutput struct {
	Count   int                `json:"count"`
	Query   string             `json:"query"`
	Results []storage.VisitHit `json:"results"`
}

func (c *SearchCommand) printJSON(query string, results []storage.VisitHit) error {
	if results == nil {
		results = []storage.VisitHit{}
	}
	return printJSON(jsonSearchOutput{
		Count:   len(results),
		Query:   query,
		Results: results,
	})
}
