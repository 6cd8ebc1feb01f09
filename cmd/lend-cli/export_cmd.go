package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"lendchain/indexer"
	"lendchain/integrations/exports"
)

// EnvIndexerDSN supplies the default export source.
const EnvIndexerDSN = "LEND_INDEXER_DSN"

func runExport(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("export", stderr)
	var (
		dsn    string
		format string
		typ    string
		txID   uint64
		after  uint64
		limit  int
		out    string
	)
	fs.StringVar(&dsn, "dsn", os.Getenv(EnvIndexerDSN), "indexer DSN (sqlite path or postgres:// URL)")
	fs.StringVar(&format, "format", string(exports.FormatJSONL), "csv or jsonl")
	fs.StringVar(&typ, "type", "", "only export events of this type")
	fs.Uint64Var(&txID, "tx", 0, "only export events for this transaction id")
	fs.Uint64Var(&after, "after", 0, "only export events after this sequence")
	fs.IntVar(&limit, "limit", indexer.MaxLimit, "maximum events to export")
	fs.StringVar(&out, "out", "", "output file (stdout when empty)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(dsn) == "" {
		return printError(stderr, "--dsn or "+EnvIndexerDSN+" is required")
	}

	store, err := indexer.Open(dsn)
	if err != nil {
		return printError(stderr, err.Error())
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	records, err := store.List(ctx, indexer.Query{After: after, Limit: limit, Type: typ, TransactionID: txID})
	if err != nil {
		return printError(stderr, err.Error())
	}
	payload, checksum, err := exports.Encode(exports.Format(strings.ToLower(strings.TrimSpace(format))), records)
	if err != nil {
		return printError(stderr, err.Error())
	}

	if out == "" {
		if _, err := stdout.Write(payload); err != nil {
			return printError(stderr, err.Error())
		}
	} else if err := os.WriteFile(out, payload, 0o644); err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintf(stderr, "exported %d events, sha256 %s\n", len(records), checksum)
	return 0
}
