package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"trimborder/jobs"
	"trimborder/pdfdoc"
	"trimborder/store"
	"trimborder/types"
)

type processOptions struct {
	outDir    string
	suffix    string
	timestamp bool
	backup    bool
}

func newProcessCmd() *cobra.Command {
	var flags specFlags
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process <files...>",
		Short: "Add the border to one or more PDF files",
		Example: `  # 3mm clamp-edge border next to the input
  trimborder process brochure.pdf

  # 5mm mirrored border into ./out with a timestamped name
  trimborder process --width-mm 5 --stretch-mode mirror --out-dir out --timestamp *.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := flags.spec(cmd.Flags())
			if err != nil {
				return err
			}
			st, err := store.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			return runProcess(cmd.Context(), cmd.OutOrStdout(), jobs.NewRunner(st), args, spec, opts)
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&opts.outDir, "out-dir", "", "Directory for processed files (default: next to the input)")
	cmd.Flags().StringVar(&opts.suffix, "suffix", pdfdoc.DefaultSuffix, "Suffix added to output names")
	cmd.Flags().BoolVar(&opts.timestamp, "timestamp", false, "Append _YYYYmmdd_HHMMSS to output names")
	cmd.Flags().BoolVar(&opts.backup, "backup", false, "Keep a <name>_backup.pdf copy of each input")

	return cmd
}

// runProcess handles the files one after the other and reports each. It
// keeps going after a failed file and returns an error naming the count.
func runProcess(ctx context.Context, w io.Writer, runner *jobs.Runner, files []string, spec types.BorderSpec, opts processOptions) error {
	failed := 0
	for _, in := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if opts.backup {
			dst, err := pdfdoc.Backup(in)
			if err != nil {
				fmt.Fprintf(w, "%s: backup failed: %v\n", in, err)
				failed++
				continue
			}
			fmt.Fprintf(w, "%s: backup %s\n", in, dst)
		}

		out := pdfdoc.OutputPath(in, opts.outDir, opts.suffix, opts.timestamp, time.Now())
		job, err := runner.File(ctx, in, out, spec, jobs.OriginCLI)
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s: %v\n", in, err)
			if job != nil {
				printFailedPages(w, job)
			}
			continue
		}
		fmt.Fprintf(w, "%s -> %s (%d/%d pages, %d warnings)\n", in, out, job.PagesDone, job.PagesTotal, job.Warnings)
		printFailedPages(w, job)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func printFailedPages(w io.Writer, job *types.Job) {
	for _, p := range job.Pages {
		if p.Reason != "" {
			fmt.Fprintf(w, "  page %d %s: %s\n", p.PageID, p.State, p.Reason)
		}
	}
}
