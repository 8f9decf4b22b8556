package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/svdoc/internal/doc"
	"github.com/robert-at-pretension-io/svdoc/internal/render"
)

func newHTMLCmd(opts *globalOptions) *cobra.Command {
	build := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "html [path]",
		Short: "Render the project documentation as an HTML site",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := rootArg(args)
			res, cfg, err := opts.index(cmd, root)
			if res == nil {
				return err
			}
			if werr := writeHTML(cmd, opts, build.outputDir(root, cfg), res.Library); werr != nil {
				return werr
			}
			return err
		},
	}
	build.bind(cmd)
	return cmd
}

func writeHTML(cmd *cobra.Command, opts *globalOptions, dir string, lib *doc.Library) error {
	r := render.NewHTMLRenderer(
		render.WithVersion(version),
		render.WithLogger(opts.logger(cmd.ErrOrStderr())))
	if err := r.WriteDir(dir, lib); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Documentation written to %s\n", filepath.Join(dir, "index.html"))
	return nil
}

func writeLibraryJSON(path string, lib *doc.Library) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory for %s: %w", path, err)
	}
	return writeFile(path, func(f *os.File) error { return render.WriteJSON(f, lib) })
}

// writeFile creates path and fills it with write. The file is removed when
// write fails.
func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
