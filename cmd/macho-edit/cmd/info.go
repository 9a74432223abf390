package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.MarkZshCompPositionalArgumentFile(1)
}

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:     "info <macho>",
	Aliases: []string{"i"},
	Short:   "Print the container's arch table and per-slice summary",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openMachO(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		fmt.Print(f)

		if viper.GetBool("verbose") {
			for i, arch := range f.Archs {
				fmt.Printf("\narch %d:\n%s", i, arch.Hdr)
				for j, lc := range arch.Loads {
					fmt.Printf("%03d: %s\n", j, lc)
				}
			}
		}
		return nil
	},
}
