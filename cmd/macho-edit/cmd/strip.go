package cmd

import (
	"fmt"

	"github.com/apex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(stripCmd)

	stripCmd.Flags().StringP("arch", "a", "", "Which architecture to strip")
	viper.BindPFlag("strip.arch", stripCmd.Flags().Lookup("arch"))
	stripCmd.MarkZshCompPositionalArgumentFile(1)
}

// stripCmd represents the strip command
var stripCmd = &cobra.Command{
	Use:   "strip <macho>",
	Short: "Strip the trailing code signature from a slice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openMachO(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		idx, err := chooseArch(f, viper.GetString("strip.arch"))
		if err != nil {
			return err
		}
		removed, err := f.RemoveCodeSignature(idx)
		if err != nil {
			return fmt.Errorf("failed to strip code signature: %w", err)
		}
		if !removed {
			return fmt.Errorf("%s has no strippable (trailing) code signature", args[0])
		}
		log.Infof("Stripped code signature from %s", args[0])
		return nil
	},
}
