// Command genmock writes a small synthetic raw dataset for smoke runs of
// dstetl: the GNIS feature file, meridian tables, DST transitions and yearly
// accident extracts in both schema eras, with a few planted edge cases.
//
// Usage:
//
//	go run ./cmd/genmock -out raw -first-year 1999 -last-year 2002
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/couchcryptid/dst-accident-etl/internal/mockdata"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	opts := mockdata.DefaultOptions
	out := flag.String("out", "", "directory to write the raw dataset into")
	flag.IntVar(&opts.FirstYear, "first-year", opts.FirstYear, "first accident year")
	flag.IntVar(&opts.LateSchemaYear, "late-schema-year", opts.LateSchemaYear, "first year written with LATITUDE/LONGITUD")
	flag.IntVar(&opts.LastYear, "last-year", opts.LastYear, "last accident year")
	flag.IntVar(&opts.PerYear, "per-year", opts.PerYear, "regular accidents per year")
	flag.Uint64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if opts.FirstYear > opts.LastYear {
		return fmt.Errorf("-first-year %d is after -last-year %d", opts.FirstYear, opts.LastYear)
	}

	exp, err := mockdata.Write(*out, opts)
	if err != nil {
		return err
	}

	log.Printf("wrote %d accident rows for %d-%d to %s", exp.Rows, opts.FirstYear, opts.LastYear, *out)
	log.Printf("planted: %d unknown time, %d excluded state, %d invalid date, %d out of bounds",
		exp.UnknownTime, exp.Excluded, exp.InvalidTime, exp.OutOfBounds)
	return nil
}
