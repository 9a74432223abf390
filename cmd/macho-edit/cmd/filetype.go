package cmd

import (
	"fmt"
	"strconv"

	"github.com/apex/log"
	"github.com/appsworld/macho-edit/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(filetypeCmd)

	filetypeCmd.Flags().StringP("arch", "a", "", "Which architecture to modify")
	viper.BindPFlag("filetype.arch", filetypeCmd.Flags().Lookup("arch"))
	filetypeCmd.MarkZshCompPositionalArgumentFile(1)
}

// filetypeCmd represents the filetype command
var filetypeCmd = &cobra.Command{
	Use:   "filetype <macho> <type>",
	Short: "Change the Mach-O file type (e.g. EXECUTE, DYLIB, BUNDLE)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, ok := types.FileTypeFromString(args[1])
		if !ok {
			if v, err := strconv.ParseUint(args[1], 0, 32); err == nil {
				typ = types.HeaderFileType(v)
			} else {
				return fmt.Errorf("unknown file type %q", args[1])
			}
		}

		f, err := openMachO(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		idx, err := chooseArch(f, viper.GetString("filetype.arch"))
		if err != nil {
			return err
		}
		if err := f.ChangeFileType(idx, typ); err != nil {
			return fmt.Errorf("failed to change file type: %w", err)
		}
		log.Infof("Changed file type of %s to %s", args[0], typ)
		return nil
	},
}
