package cmd

import (
	"fmt"

	"github.com/apex/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(fatCmd)
	fatCmd.MarkZshCompPositionalArgumentFile(1)
}

// fatCmd represents the fat command
var fatCmd = &cobra.Command{
	Use:   "fat <macho>",
	Short: "Convert a thin MachO into a single-slice fat container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openMachO(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		if f.IsFat() {
			return fmt.Errorf("%s is already a fat MachO", args[0])
		}
		if err := f.MakeFat(); err != nil {
			return fmt.Errorf("failed to fatten %s: %w", args[0], err)
		}
		log.Infof("Wrapped %s in a fat container", args[0])
		return nil
	},
}
