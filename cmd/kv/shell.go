package kv

import (
	"bufio"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/sKV/lib/db"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
	"io"
	"os"
	"strings"
)

const shellHelp = `commands:
  set <key> <value>      store a value
  get <key> [default]    read a value
  info                   print database statistics
  metrics                print engine metrics
  help                   show this help
  exit                   leave the shell
quote keys and values containing spaces, e.g. set "my key" 'a value'`

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Starts an interactive shell on the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Type commands. 'help' for information or 'exit' to quit.")
		return runShell(os.Stdin, os.Stdout, database, true)
	},
}

// runShell reads commands line by line from in until EOF or exit
func runShell(in io.Reader, out io.Writer, database db.KVDB[string, string], prompt bool) error {
	reader := bufio.NewReader(in)

	for {
		if prompt {
			fmt.Fprint(out, "> ")
		}

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("input error: %w", err)
		}
		eof := err == io.EOF

		line = strings.TrimSpace(line)
		if line == "exit" || (eof && line == "") {
			return nil
		}

		if line != "" {
			if err := execShellLine(out, database, line); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		}

		if eof {
			return nil
		}
	}
}

// execShellLine parses and runs a single shell command
func execShellLine(out io.Writer, database db.KVDB[string, string], line string) error {
	words, err := shellquote.Split(line)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	if len(words) == 0 {
		return nil
	}

	cmd, args := strings.ToLower(words[0]), words[1:]
	switch cmd {
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("usage: set <key> <value>")
		}
		if err := database.Update(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")
	case "get":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: get <key> [default]")
		}
		def := ""
		if len(args) == 2 {
			def = args[1]
		}
		value, err := database.Get(args[0], def)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, shellquote.Join(value))
	case "info":
		data, err := json.MarshalIndent(database.GetInfo(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case "metrics":
		database.WriteMetrics(out)
	case "help":
		fmt.Fprintln(out, shellHelp)
	default:
		return fmt.Errorf("unknown command %q, type 'help'", words[0])
	}
	return nil
}
