// maintenance inspects and repairs the announcements database: it removes
// rows whose headline and description are both placeholder values, collapses
// rows that duplicate another row's content under a different vendor id,
// clears backfill markers, and loads the symbol reference table from CSV.
//
// Usage (dry-run, counts only):
//
//	go run ./cmd/maintenance -db=corpfeed.db -blank -dedupe
//
// To apply:
//
//	go run ./cmd/maintenance -db=corpfeed.db -blank -dedupe -dry-run=false
//
// Load symbol reference data:
//
//	go run ./cmd/maintenance -db=corpfeed.db -load-symbols=symbols.csv -dry-run=false
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"corpfeed/internal/store"
)

func main() {
	dbPath := flag.String("db", "corpfeed.db", "Path to the announcements database")
	blank := flag.Bool("blank", false, "Remove rows whose headline and description are both placeholders")
	dedupe := flag.Bool("dedupe", false, "Remove rows repeating another row's content under a different id")
	clearMarkers := flag.Bool("clear-markers", false, "Delete all backfill markers so symbols can be refetched")
	symbolsFile := flag.String("load-symbols", "", "Load symbol reference data from a CSV file (trading_symbol,exchange,company_name)")
	dryRun := flag.Bool("dry-run", true, "Report what would change without modifying the database")
	flag.Parse()

	if !*blank && !*dedupe && !*clearMarkers && *symbolsFile == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -blank, -dedupe, -clear-markers, or -load-symbols")
		flag.Usage()
		os.Exit(1)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer st.Close()
	if err := st.AutoMigrate(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate database: %v\n", err)
		os.Exit(1)
	}

	if *blank {
		if *dryRun {
			n, err := st.CountBlankRows()
			exitOn(err, "count blank rows")
			fmt.Printf("blank rows: %d (dry run, not removed)\n", n)
		} else {
			n, err := st.DeleteBlankRows()
			exitOn(err, "delete blank rows")
			fmt.Printf("blank rows removed: %d\n", n)
		}
	}

	if *dedupe {
		if *dryRun {
			n, err := st.CountContentDuplicates()
			exitOn(err, "count content duplicates")
			fmt.Printf("content duplicates: %d (dry run, not removed)\n", n)
		} else {
			n, err := st.DeduplicateByContent()
			exitOn(err, "remove content duplicates")
			fmt.Printf("content duplicates removed: %d\n", n)
		}
	}

	if *clearMarkers {
		if *dryRun {
			n, err := st.CountFetchMarkers()
			exitOn(err, "count backfill markers")
			fmt.Printf("backfill markers: %d (dry run, not cleared)\n", n)
		} else {
			n, err := st.ClearFetchMarkers()
			exitOn(err, "clear backfill markers")
			fmt.Printf("backfill markers cleared: %d\n", n)
		}
	}

	if *symbolsFile != "" {
		refs, err := readSymbolsCSV(*symbolsFile)
		exitOn(err, "read symbols file")
		if *dryRun {
			fmt.Printf("symbols parsed: %d (dry run, not loaded)\n", len(refs))
		} else {
			n, err := st.UpsertSymbols(refs)
			exitOn(err, "load symbols")
			fmt.Printf("symbols loaded: %d\n", n)
		}
	}
}

// readSymbolsCSV parses trading_symbol,exchange,company_name rows. A header
// row is skipped when detected.
func readSymbolsCSV(path string) ([]store.SymbolRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var refs []store.SymbolRef
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++
		if len(record) < 3 {
			return nil, fmt.Errorf("line %d: want trading_symbol,exchange,company_name", line)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "trading_symbol") {
			continue
		}
		refs = append(refs, store.SymbolRef{
			TradingSymbol: strings.TrimSpace(record[0]),
			Exchange:      strings.TrimSpace(record[1]),
			CompanyName:   strings.TrimSpace(record[2]),
		})
	}
	return refs, nil
}

func exitOn(err error, what string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to %s: %v\n", what, err)
		os.Exit(1)
	}
}
