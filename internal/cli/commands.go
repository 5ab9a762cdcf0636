package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/partloader/internal/domain/resolver"
)

func newPreloadCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preload {descriptor}",
		Short: "Download the eager bundles of a descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := st.open(cmd.Context(), args[0])
			if l == nil {
				return err
			}
			defer l.Close(context.WithoutCancel(cmd.Context()))

			format, ferr := outputFormat(cmd)
			if ferr != nil {
				return ferr
			}
			if werr := writeBundles(cmd.OutOrStdout(), format, eagerOnly(l.Coordinator().Snapshot())); werr != nil {
				return werr
			}
			return err
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func newResolveCmd(st *state) *cobra.Command {
	var resource bool
	cmd := &cobra.Command{
		Use:   "resolve {descriptor} {code-unit}...",
		Short: "Resolve code units to local artifacts, downloading their bundles",
		Example: `  partloader resolve app.yaml com.acme.reports.Report
  partloader resolve app.yaml --resource com/acme/reports/logo.png`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := st.open(cmd.Context(), args[0])
			if l == nil {
				return err
			}
			defer l.Close(context.WithoutCancel(cmd.Context()))

			coord := l.Coordinator()
			var errs []error
			for _, unit := range args[1:] {
				var locs []resolver.LocalLocation
				var rerr error
				if resource {
					locs, rerr = coord.ResolveResource(cmd.Context(), unit)
				} else {
					locs, rerr = coord.ResolveAndFetch(cmd.Context(), unit)
				}
				if rerr != nil {
					errs = append(errs, rerr)
					continue
				}
				for _, loc := range locs {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", unit, loc)
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&resource, "resource", false, "treat arguments as resource paths")
	return cmd
}

func newDownloadCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "download {descriptor} {bundle}...",
		Short: "Download named bundles of the main descriptor",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := st.open(cmd.Context(), args[0])
			if l == nil {
				return err
			}
			defer l.Close(context.WithoutCancel(cmd.Context()))

			var errs []error
			for _, name := range args[1:] {
				locs, derr := l.Coordinator().DownloadBundle(cmd.Context(), name)
				if derr != nil {
					errs = append(errs, derr)
					continue
				}
				for _, loc := range locs {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, loc)
				}
			}
			return errors.Join(errs...)
		},
	}
}

func newBundlesCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bundles {descriptor}",
		Aliases: []string{"ls"},
		Short:   "List the bundles of a descriptor and its extensions",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := st.open(cmd.Context(), args[0])
			if l == nil {
				return err
			}
			defer l.Close(context.WithoutCancel(cmd.Context()))

			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			// eager failures show up in the listing
			return writeBundles(cmd.OutOrStdout(), format, l.Coordinator().Snapshot())
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func newServeCmd(st *state) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve {descriptor}",
		Short: "Open a descriptor and serve its status until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				st.cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			l, err := st.open(ctx, args[0])
			if l == nil {
				return err
			}
			defer l.Close(context.WithoutCancel(ctx))
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "some eager bundles failed: %v\n", err)
			}

			return l.Server().Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from STATUS_ADDR)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version := BuildVersion
			if info, ok := debug.ReadBuildInfo(); ok && version == "dev" && info.Main.Version != "" {
				version = info.Main.Version
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}

func eagerOnly(statuses []resolver.Status) []resolver.Status {
	var out []resolver.Status
	for _, st := range statuses {
		if st.Eager {
			out = append(out, st)
		}
	}
	return out
}
