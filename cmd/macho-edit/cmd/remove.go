package cmd

import (
	"fmt"

	"github.com/apex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(removeCmd)

	removeCmd.Flags().StringP("arch", "a", "", "Which architecture to remove")
	viper.BindPFlag("remove.arch", removeCmd.Flags().Lookup("arch"))
	removeCmd.MarkZshCompPositionalArgumentFile(1)
}

// removeCmd represents the remove command
var removeCmd = &cobra.Command{
	Use:   "remove <macho>",
	Short: "Remove one slice from a fat MachO and compact the file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openMachO(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		if !f.IsFat() {
			return fmt.Errorf("%s is a thin MachO; removing its only slice would leave nothing", args[0])
		}
		idx, err := chooseArch(f, viper.GetString("remove.arch"))
		if err != nil {
			return err
		}
		removed := f.Archs[idx].Desc
		if err := f.RemoveArch(idx); err != nil {
			return fmt.Errorf("failed to remove slice: %w", err)
		}
		log.Infof("Removed %s slice from %s (%d archs left)", removed.CPU, args[0], len(f.Archs))
		return nil
	},
}
