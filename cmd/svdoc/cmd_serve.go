package main

import (
	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/svdoc/internal/indexer"
	"github.com/robert-at-pretension-io/svdoc/internal/render"
	"github.com/robert-at-pretension-io/svdoc/internal/server"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Serve the documentation over HTTP and rebuild it on changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := rootArg(args)
			log := opts.logger(cmd.ErrOrStderr())
			cfg, err := opts.loadConfig(root)
			if err != nil {
				return err
			}
			if opts.clearCache {
				if _, err := indexer.ClearCache(root, cfg); err != nil {
					return err
				}
			}
			idx := indexer.NewWithConfig(cfg)
			idx.Log = log

			srv := server.New(root, idx,
				server.WithLogger(log),
				server.WithRenderer(render.NewHTMLRenderer(render.WithVersion(version), render.WithLogger(log))))
			return srv.ListenAndServe(cmd.Context(), addr, watch)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().BoolVar(&watch, "watch", true, "rebuild when sources change")
	return cmd
}
