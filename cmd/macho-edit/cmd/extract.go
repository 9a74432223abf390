package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("arch", "a", "", "Which architecture to extract")
	extractCmd.Flags().StringP("output", "o", "", "Path to write the extracted MachO to")
	viper.BindPFlag("extract.arch", extractCmd.Flags().Lookup("arch"))
	viper.BindPFlag("extract.output", extractCmd.Flags().Lookup("output"))
	extractCmd.MarkZshCompPositionalArgumentFile(1)
}

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:     "extract <macho>",
	Aliases: []string{"e", "lipo"},
	Short:   "Extract one slice of a fat MachO into its own file",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		machoPath := filepath.Clean(args[0])

		f, err := openMachO(machoPath)
		if err != nil {
			return err
		}
		defer f.Close()

		idx, err := chooseArch(f, viper.GetString("extract.arch"))
		if err != nil {
			return err
		}
		arch := f.Archs[idx]

		out := viper.GetString("extract.output")
		if len(out) == 0 {
			out = fmt.Sprintf("%s.%s", machoPath,
				strings.ToLower(arch.Desc.SubCPU.String(arch.Desc.CPU)))
		}
		if err := f.SaveArch(idx, out); err != nil {
			return fmt.Errorf("failed to extract slice: %w", err)
		}
		log.Infof("Extracted %s slice as %s", arch.Desc.CPU, out)
		return nil
	},
}
