// Command decode is an operator tool for the buoy history format. It decodes a
// single file to JSON, previews which inbox files a station would pick up right
// now, or prints the column table.
//
// Usage:
//
//	go run ./cmd/decode -file 'data/inbox/seychelles-01/Seychelles}2025-08.his' -pretty
//	go run ./cmd/decode -select -station-file config/stations.json -station seychelles-01 -dir data/inbox
//	go run ./cmd/decode -describe
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/buoy-data-etl/internal/adapter/inbox"
	"github.com/couchcryptid/buoy-data-etl/internal/config"
	"github.com/couchcryptid/buoy-data-etl/internal/domain"

	_ "time/tzdata"
)

const exitUsage = 2

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, clockwork.NewRealClock()))
}

func run(args []string, stdout, stderr io.Writer, clock clockwork.Clock) int {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "history file to decode")
	pretty := fs.Bool("pretty", false, "indent JSON output")
	sel := fs.Bool("select", false, "list the files a station would process now")
	stationFile := fs.String("station-file", "./config/stations.json", "station definitions (JSON array)")
	station := fs.String("station", "", "station ID for -select")
	dir := fs.String("dir", "./data/inbox", "inbox root for -select")
	describe := fs.Bool("describe", false, "print the column table")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	var err error
	switch {
	case *describe:
		err = describeFields(stdout)
	case *sel:
		if *station == "" {
			fmt.Fprintln(stderr, "-select requires -station")
			return exitUsage
		}
		err = selectFiles(stdout, clock, *stationFile, *station, *dir)
	case *file != "":
		err = decodeFile(stdout, clock, *file, *pretty)
	default:
		fs.Usage()
		return exitUsage
	}

	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func decodeFile(w io.Writer, clock clockwork.Clock, path string, pretty bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	batch, err := domain.NewBuoyDecoder(nil, clock).Decode(content)
	if err != nil {
		var derr *domain.DecodeError
		if errors.As(err, &derr) {
			return fmt.Errorf("%s:%d: %s: %w", filepath.Base(path), derr.Line, derr.Kind, derr.Err)
		}
		return err
	}

	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(batch)
}

func selectFiles(w io.Writer, clock clockwork.Clock, stationFile, stationID, dir string) error {
	stations, err := config.LoadStations(stationFile)
	if err != nil {
		return err
	}

	var link *domain.StationLink
	for i := range stations {
		if stations[i].ID == stationID {
			link = &stations[i]
			break
		}
	}
	if link == nil {
		return fmt.Errorf("station %q not found in %s", stationID, stationFile)
	}

	names, err := inbox.NewDir(dir).List(context.Background(), link.ID)
	if err != nil {
		return err
	}

	selected, err := domain.NewSelector(domain.PatternMatcher{}, clock).Select(*link, names)
	if err != nil {
		return err
	}
	for _, name := range selected {
		fmt.Fprintln(w, name)
	}
	return nil
}

func describeFields(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tFIELD\tDESCRIPTION")
	for i, name := range domain.FieldNames {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, name, domain.FieldDescriptions[name])
	}
	return tw.Flush()
}
