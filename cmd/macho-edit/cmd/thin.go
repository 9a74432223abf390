package cmd

import (
	"fmt"

	"github.com/apex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(thinCmd)

	thinCmd.Flags().StringP("arch", "a", "", "Which architecture to keep")
	viper.BindPFlag("thin.arch", thinCmd.Flags().Lookup("arch"))
	thinCmd.MarkZshCompPositionalArgumentFile(1)
}

// thinCmd represents the thin command
var thinCmd = &cobra.Command{
	Use:   "thin <macho>",
	Short: "Reduce a fat MachO to a single thin architecture in place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openMachO(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		if !f.IsFat() {
			return fmt.Errorf("%s is already a thin MachO", args[0])
		}
		idx, err := chooseArch(f, viper.GetString("thin.arch"))
		if err != nil {
			return err
		}
		kept := f.Archs[idx].Desc
		if err := f.MakeThin(idx); err != nil {
			return fmt.Errorf("failed to thin %s: %w", args[0], err)
		}
		log.Infof("Kept %s slice of %s", kept.CPU, args[0])
		return nil
	},
}
