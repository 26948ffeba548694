package listend

import (
	"fmt"

	"github.com/0xa1bed0/listend/internal/version"
	"github.com/0xa1bed0/listend/internal/versioncheck"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version of listend",
		Long:  `Display the current version of listend and check for updates.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s\n", version.Get())

			result := versioncheck.Check(cmd.Context())
			versioncheck.PrintUpdateBanner(result)
		},
	}

	return cmd
}
