package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/go621/pkg/query"
)

func newServeCmd(opts *options) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve e621 listings as NDJSON over HTTP.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, ":"+port)
		},
	}
	cmd.Flags().StringVar(&port, "port", getEnv("PORT", "8080"), "listen port")
	return cmd
}

func runServe(ctx context.Context, opts *options, addr string) error {
	c, cleanup, err := buildClient(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newServer(c).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", addr).
			Str("base_url", opts.baseURL).
			Str("user_agent", opts.userAgent).
			Msg("Starting e621 proxy server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		log.Info().Msg("Shutting down e621 proxy server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newSearchCmd(opts *options) *cobra.Command {
	var limit, pageSize int

	cmd := &cobra.Command{
		Use:   "search [tags...]",
		Short: "Print the posts matching a tag search as NDJSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := buildClient(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			q := query.NewPostQuery(args...).WithMax(limit).WithPageSize(pageSize)
			_, err = writeListing(cmd.OutOrStdout(), c.SearchPosts(cmd.Context(), q))
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 75, "maximum number of posts (0 = all)")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "posts per request (0 = 320)")
	return cmd
}

func newFetchCmd(opts *options) *cobra.Command {
	var pools bool

	cmd := &cobra.Command{
		Use:   "fetch [ids...]",
		Short: "Print posts (or pools) by id as NDJSON, in the order given.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args...)
			if err != nil {
				return err
			}

			c, cleanup, err := buildClient(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			if pools {
				_, err = writeLookup(out, ids, c.PoolsByIDs(cmd.Context(), ids))
			} else {
				_, err = writeLookup(out, ids, c.PostsByIDs(cmd.Context(), ids))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&pools, "pools", false, "look up pools instead of posts")
	return cmd
}
