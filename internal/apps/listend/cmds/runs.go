package listend

import (
	"fmt"
	"os"
	"strconv"

	"github.com/0xa1bed0/listend/internal/logs"
	"github.com/0xa1bed0/listend/internal/runtime"
	"github.com/0xa1bed0/listend/internal/state"
	"github.com/0xa1bed0/listend/internal/ui"
	"github.com/spf13/cobra"
)

type runsOptions struct {
	Limit int
	Clear bool
	Yes   bool
}

func newRunsCmd() *cobra.Command {
	opts := &runsOptions{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show past server runs",
		Long: `List recorded server runs: when they started, where they listened,
and how they ended.

Use '--clear' to wipe the history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logs.Debugf("running runs...")

			rt := runtime.FromContext(cmd.Context())

			store, err := state.DefaultRunStore(rt.Ctx())
			if err != nil {
				return err
			}

			if opts.Clear {
				return clearRuns(cmd, store, opts.Yes)
			}

			runs, err := store.List(rt.Ctx(), opts.Limit)
			if err != nil {
				return err
			}

			if len(runs) == 0 {
				fmt.Println("No runs recorded")
				return nil
			}

			columns := []ui.Column{
				{Header: "ID"},
				{Header: "Address"},
				{Header: "PID", Align: ui.AlignRight},
				{Header: "Started"},
				{Header: "Stopped"},
				{Header: "Outcome", MaxWidth: 48},
			}

			table := ui.NewTable(columns...)

			for _, run := range runs {
				stopped := "-"
				if !run.StoppedAt.IsZero() {
					stopped = run.StoppedAt.Local().Format("2006-01-02 15:04:05")
				}
				outcome := run.Outcome
				if outcome == "" {
					outcome = "running?"
				}
				table.AddRow(
					run.ID,
					run.Address,
					strconv.Itoa(run.PID),
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					stopped,
					outcome,
				)
			}

			fmt.Println("")
			table.Render(os.Stdout)
			fmt.Println("")

			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Show at most N runs (0 = all)")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "Delete all recorded runs")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Skip confirmation for --clear")

	return cmd
}

func clearRuns(cmd *cobra.Command, store *state.RunStore, yes bool) error {
	if !yes {
		ok, err := logs.PromptConfirm("Delete all recorded runs?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted")
			return nil
		}
	}

	n, err := store.Clear(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Deleted %d run(s)\n", n)
	return nil
}
