package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Ingest *IngestCommand
	Open   *OpenCommand
	Search *SearchCommand
	Export *ExportCommand
	Serve  *ServeCommand
	Status *StatusCommand
	Prune  *PruneCommand
	Delete *DeleteCommand
	Purge  *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "histlens"
	parser.LongDescription = "Browser history forensics: extract visits and downloads, and correlate each download with the pages that led to it."

	cmds := &commands{
		Ingest: &IngestCommand{globals: &globals, version: version},
		Open:   &OpenCommand{globals: &globals, version: version},
		Search: &SearchCommand{globals: &globals, version: version},
		Export: &ExportCommand{globals: &globals, version: version},
		Serve:  &ServeCommand{globals: &globals, version: version},
		Status: &StatusCommand{globals: &globals, version: version},
		Prune:  &PruneCommand{globals: &globals, version: version},
		Delete: &DeleteCommand{globals: &globals, version: version},
		Purge:  &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("ingest", "Process and archive a history database", "Extract visits and downloads from a browser history database, correlate download sources, and archive the result.", cmds.Ingest)
	parser.AddCommand("open", "Show an archived artifact", "Print the visits, downloads, download sources or sync details of an archived artifact.", cmds.Open)
	parser.AddCommand("search", "Search archived visits", "Search archived visits by keyword, with optional filters.", cmds.Search)
	parser.AddCommand("export", "Export an archived artifact", "Write an archived artifact's records as CSV or JSON.", cmds.Export)
	parser.AddCommand("serve", "Start the HTTP API", "Start the upload and browsing HTTP API.", cmds.Serve)
	parser.AddCommand("status", "Show archive statistics", "Show archive statistics and the list of archived artifacts.", cmds.Status)
	parser.AddCommand("prune", "Apply retention pruning", "Remove artifacts processed before the retention cutoff.", cmds.Prune)
	parser.AddCommand("delete", "Delete one archived artifact", "Delete one archived artifact with its visits, downloads and download sources.", cmds.Delete)
	parser.AddCommand("purge", "Delete ALL archived data", "Delete ALL archived data. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the histlens CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// go-flags requires a subcommand, but --version is valid without one.
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("histlens %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
