package listend

import (
	"github.com/0xa1bed0/listend/internal/logs"
	"github.com/0xa1bed0/listend/internal/runtime"
	"github.com/spf13/cobra"
)

var verbosity int

func Execute(rt *runtime.Runtime) error {
	rootCmd := &cobra.Command{
		Use:   "listend",
		Short: "A small TCP echo server with observable startup and clean shutdown",
		Long: `listend binds a TCP listener, echoes every connection, and shuts
down cleanly on Ctrl-C or Return.

By default, 'listend' is equivalent to 'listend serve'.`,
		Args: cobra.NoArgs,
		// Default behavior is the same as 'serve'
		RunE: serveCmdRunE,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logs.SetDebugVerbosity(verbosity)
			return nil
		},
		// we will handle that
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase verbosity level")

	// Root should accept the same flags as `serve`
	attachServeCmdFlags(rootCmd)

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd.ExecuteContext(rt.Ctx())
}
