package cmd

import (
	"fmt"

	"github.com/apex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(insertCmd)

	insertCmd.Flags().StringP("arch", "a", "", "Which architecture of the source to insert")
	viper.BindPFlag("insert.arch", insertCmd.Flags().Lookup("arch"))
	insertCmd.MarkZshCompPositionalArgumentFile(1)
	insertCmd.MarkZshCompPositionalArgumentFile(2)
}

// insertCmd represents the insert command
var insertCmd = &cobra.Command{
	Use:   "insert <fat-macho> <src-macho>",
	Short: "Append a slice from another MachO to a fat container",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dst, err := openMachO(args[0])
		if err != nil {
			return err
		}
		defer dst.Close()

		if !dst.IsFat() {
			return fmt.Errorf("%s is a thin MachO; run `macho-edit fat` on it first", args[0])
		}

		src, err := openMachO(args[1])
		if err != nil {
			return err
		}
		defer src.Close()

		idx, err := chooseArch(src, viper.GetString("insert.arch"))
		if err != nil {
			return err
		}
		inserted := src.Archs[idx].Desc
		if err := dst.InsertArchFromFile(src, idx); err != nil {
			return fmt.Errorf("failed to insert slice: %w", err)
		}
		log.Infof("Appended %s slice of %s to %s", inserted.CPU, args[1], args[0])
		return nil
	},
}
