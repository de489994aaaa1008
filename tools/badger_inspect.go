package main

import (
	"chat-relay/repositories"
	"flag"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	// Empty means every record family, indexes excluded
	prefix := flag.String("prefix", "", "Prefix to scan, e.g. msg: or presence:")
	withIndexes := flag.Bool("indexes", false, "Also list username:, pair: and convmsg: entries")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	prefixes := []string{*prefix}
	if *prefix == "" {
		prefixes = repositories.Prefixes
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	counts := make(map[string]int)
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for _, p := range prefixes {
			prefixBytes := []byte(p)
			for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
				item := it.Item()
				key := string(item.Key())
				err := item.Value(func(v []byte) error {
					kind, detail := repositories.Describe(key, v)
					if kind == "INDEX" && !*withIndexes {
						return nil
					}
					counts[kind]++
					table.Append([]string{key, kind, detail})
					return nil
				})
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	var summary []string
	for kind, n := range counts {
		summary = append(summary, fmt.Sprintf("%s=%d", strings.ToLower(kind), n))
	}
	slices.Sort(summary)
	color.Cyan.Printf("\n%s\n", strings.Join(summary, " "))
}

// openDB opens the store read-only so it can run next to a live server.
func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.ERROR)
	return badger.Open(opts)
}
