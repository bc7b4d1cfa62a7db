// Command minidb is the REPL front end over the storage/table B+-tree:
// read a line, hand it to the shell package, print whatever it wrote.
// Exit code is 0 after ".exit", nonzero on a fatal storage error.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/nikolasrummel/minidb/internal/shell"
	"github.com/nikolasrummel/minidb/storage/table"
)

func main() {
	filename := "data.db"
	if len(os.Args) > 1 {
		filename = os.Args[1]
	}

	tbl, err := table.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "minidb: open %s: %v\n", filename, err)
		os.Exit(1)
	}

	sh := shell.New(tbl, os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("minidb > ")
		if !scanner.Scan() {
			break
		}
		exit, err := sh.Execute(scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "minidb: %v\n", err)
			tbl.Close()
			os.Exit(1)
		}
		if exit {
			if err := tbl.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "minidb: close: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "minidb: reading input: %v\n", err)
		tbl.Close()
		os.Exit(1)
	}
	tbl.Close()
}
