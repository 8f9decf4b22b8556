package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/svdoc/internal/facts"
	"github.com/robert-at-pretension-io/svdoc/internal/render"
)

type jsonOptions struct {
	output    string
	facts     bool
	deltaFrom string
	deltaOut  string
}

func newJSONCmd(opts *globalOptions) *cobra.Command {
	jo := &jsonOptions{}
	cmd := &cobra.Command{
		Use:   "json [path]",
		Short: "Write the project documentation as JSON",
		Long: `Write the project documentation as nested JSON, or with --facts as flat
relational tables. With --delta-from and --delta-out the rows added and
removed since an earlier --facts export are written as well.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (jo.deltaFrom == "") != (jo.deltaOut == "") {
				return errors.New("--delta-from and --delta-out must be used together")
			}
			res, _, err := opts.index(cmd, rootArg(args))
			if res == nil {
				return err
			}

			write := func(w io.Writer) error { return render.WriteJSON(w, res.Library) }
			if jo.facts {
				write = func(w io.Writer) error { return render.WriteFactsJSON(w, res.Tables) }
			}
			if jo.output == "" {
				if werr := write(cmd.OutOrStdout()); werr != nil {
					return werr
				}
			} else if werr := writeFile(jo.output, func(f *os.File) error { return write(f) }); werr != nil {
				return werr
			}

			if jo.deltaFrom != "" {
				prev, rerr := readTables(jo.deltaFrom)
				if rerr != nil {
					return fmt.Errorf("read delta-from: %w", rerr)
				}
				delta := facts.ComputeDelta(prev, res.Tables)
				if werr := writeFile(jo.deltaOut, func(f *os.File) error { return render.WriteDeltaJSON(f, delta) }); werr != nil {
					return werr
				}
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVarP(&jo.output, "output", "o", "", "write JSON to file (default: stdout)")
	f.BoolVar(&jo.facts, "facts", false, "write flat fact tables instead of nested documentation")
	f.StringVar(&jo.deltaFrom, "delta-from", "", "previous --facts JSON to compute a delta from")
	f.StringVar(&jo.deltaOut, "delta-out", "", "write delta JSON to file (requires --delta-from)")
	return cmd
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}
