package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/olekukonko/tablewriter"

	"github.com/kevin-cantwell/relsql/internal/engine"
	"github.com/kevin-cantwell/relsql/internal/storage"
)

var (
	backend = flag.String("backend", "memory", "Storage backend: memory or sqlite.")
	script  = flag.String("f", "", "Execute the SQL script at this path and exit.")
	timings = flag.Bool("t", false, "Display per-stage query timings.")
)

func main() {
	flag.Parse()

	var eng engine.Engine
	switch *backend {
	case "memory":
		eng = storage.NewMemory()
	case "sqlite":
		s, err := storage.OpenSQLite()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error opening sqlite backend:", err)
			os.Exit(1)
		}
		defer s.Close()
		eng = s
	default:
		fmt.Fprintf(os.Stderr, "Unknown backend %q (use memory or sqlite)\n", *backend)
		os.Exit(2)
	}

	session := engine.NewSession(eng)

	if *script != "" {
		resp, err := session.ParseFile(*script)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		if resp.Failed() {
			fmt.Fprintln(os.Stderr, "Error:", resp.Error)
			os.Exit(1)
		}
		render(resp, *timings)
		return
	}

	l, err := readline.NewEx(&readline.Config{
		Prompt:          "relsql> ",
		HistoryFile:     "/tmp/relsql.tmp",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()

	showTimes := *timings

	fmt.Println("Welcome to relsql.")
repl:
	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			} else {
				continue repl
			}
		} else if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Println("Error while reading line:", err)
			continue repl
		}

		trimmed := strings.TrimSpace(line)
		switch trimmed {
		case "":
			continue repl
		case "quit", "exit", "\\q":
			break repl
		case "\\dt":
			listTables(session)
			continue repl
		case "\\t":
			showTimes = !showTimes
			fmt.Println("Timing display:", showTimes)
			continue repl
		}

		session.Clear()
		resp := session.Parse(strings.NewReader(line))
		if resp.Failed() {
			fmt.Println("Error:", resp.Error)
			continue repl
		}
		render(resp, showTimes)
	}
}

func render(resp *engine.Response, showTimes bool) {
	if len(resp.ColumnNames) > 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader(resp.ColumnNames)
		table.SetAutoFormatHeaders(false)
		table.SetBorder(false)

		rows := make([][]string, 0, len(resp.Records))
		for _, rec := range resp.Records {
			rows = append(rows, rec)
		}
		table.AppendBulk(rows)
		table.Render()

		fmt.Printf("(%d rows)\n", len(resp.Records))
	} else {
		fmt.Println("ok")
	}

	if showTimes {
		for stage, d := range resp.QueryTimes {
			fmt.Printf("%s: %s\n", stage, d)
		}
	}
}

func listTables(session *engine.Session) {
	names := session.Engine().TableNames()
	if len(names) == 0 {
		fmt.Println("Did not find any relations.")
		return
	}

	fmt.Println("List of relations")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Type"})
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)

	rows := [][]string{}
	for _, name := range names {
		rows = append(rows, []string{name, "table"})
	}
	table.AppendBulk(rows)
	table.Render()
}
