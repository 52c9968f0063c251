// Public domain.

// Package fitprog is the specfit command.
package fitprog

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/soniakeys/exit"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soniakeys/specfit/internal/config"
	"github.com/soniakeys/specfit/internal/cube"
	"github.com/soniakeys/specfit/internal/fitresult"
	"github.com/soniakeys/specfit/internal/fitter"
	"github.com/soniakeys/specfit/internal/fittemplate"
)

const versionString = "specfit version 0.3"

// Main runs the command line and exits on any error.
func Main() {
	defer exit.Handler()
	if err := NewCommand(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		exit.Log(err)
	}
}

// NewCommand builds the command tree.  Reports go to stdout, logs to
// stderr.
func NewCommand(stdout, stderr io.Writer) *cobra.Command {
	v := config.NewViper()
	var configPath string
	root := &cobra.Command{
		Use:           "specfit",
		Short:         "Fit Gaussian line profiles to every spectrum of a cube",
		Version:       versionString,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.String("log-level", "info", "debug, info, warn or error")
	v.BindPFlag("log_level", pf.Lookup("log-level"))

	load := func() (*config.Config, error) { return config.Decode(v, configPath) }
	root.AddCommand(
		fitCommand(v, load, stdout, stderr),
		exportCommand(stdout),
		infoCommand(stdout),
		templateCommand(stdout),
	)
	return root
}

func fitCommand(v *viper.Viper, load func() (*config.Config, error), stdout, stderr io.Writer) *cobra.Command {
	var out, fits string
	cmd := &cobra.Command{
		Use:   "fit <cube> <template>",
		Short: "Fit a template to a cube and save the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log := cfg.Logger(stderr)
			c, err := cube.ReadFile(args[0])
			if err != nil {
				return err
			}
			t, err := fittemplate.Load(args[1])
			if err != nil {
				return err
			}
			opts, err := cfg.FitterOptions()
			if err != nil {
				return err
			}
			f, err := fitter.New(t, append(opts, fitter.WithLogger(log))...)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			r, err := f.Fit(ctx, c)
			if err != nil {
				return err
			}
			if out == "" {
				out = strings.TrimSuffix(args[0], cube.Ext) + "." + t.Name + fitresult.Ext
			}
			if err = r.WriteFile(out); err != nil {
				return err
			}
			if fits != "" {
				if err = writeFITS(r, fits); err != nil {
					return err
				}
			}
			s := r.Summary()
			fmt.Fprintf(stdout, "%s: %d converged, %d max-iter, %d skipped, %d failed\n",
				out, s.Converged, s.MaxIter, s.Skipped, s.Failed)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&out, "output", "o", "", "result file (default <cube>.<template>"+fitresult.Ext+")")
	fl.StringVar(&fits, "fits", "", "also export the result as FITS")
	fl.String("workers", "max", "max, serial, or a worker count")
	fl.String("granularity", "step", "unit of work: step or pixel")
	fl.Int("max-iter", 0, "solver iteration limit")
	v.BindPFlag("workers", fl.Lookup("workers"))
	v.BindPFlag("granularity", fl.Lookup("granularity"))
	v.BindPFlag("max_iter", fl.Lookup("max-iter"))
	return cmd
}

func writeFITS(r *fitresult.Result, fn string) (err error) {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err = r.ExportFITS(f); err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	return nil
}

func exportCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "export <result> <fits>",
		Short: "Export a result file as FITS",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := fitresult.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err = writeFITS(r, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "wrote", args[1])
			return nil
		},
	}
}

func infoCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "info <result>",
		Short: "Describe a result file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := fitresult.ReadFile(args[0])
			if err != nil {
				return err
			}
			t := r.Template
			s := r.Summary()
			fmt.Fprintf(stdout, "run        %s  %s\n", r.RunID, r.Created.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(stdout, "template   %s  (%d Gaussian, %d background)\n", t.Name, t.NGauss, t.NPoly)
			fmt.Fprintf(stdout, "grid       %d x %d, %d wavelengths\n", r.NY, r.NX, r.NWave)
			fmt.Fprintf(stdout, "parameters %s\n", strings.Join(r.ParamNames(), " "))
			fmt.Fprintf(stdout, "cells      %d converged, %d max-iter, %d skipped, %d failed\n",
				s.Converged, s.MaxIter, s.Skipped, s.Failed)
			return nil
		},
	}
}

func templateCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "template <yaml> [outdir]",
		Short: "Compile a YAML template source to a binary template file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := fittemplate.ReadYAML(args[0])
			if err != nil {
				return err
			}
			dir := "."
			if len(args) == 2 {
				dir = args[1]
			}
			fn := filepath.Join(dir, fittemplate.FileName(t))
			if err = t.WriteFile(fn); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "wrote", fn)
			return nil
		},
	}
}
