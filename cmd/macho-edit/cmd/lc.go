package cmd

import (
	"fmt"
	"strconv"

	"github.com/apex/log"
	machoedit "github.com/appsworld/macho-edit"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(lcCmd)
	lcCmd.AddCommand(lcMoveCmd)
	lcCmd.AddCommand(lcRemoveCmd)
	lcCmd.AddCommand(lcAddRPathCmd)
	lcCmd.AddCommand(lcAddDylibCmd)

	lcCmd.PersistentFlags().StringP("arch", "a", "", "Which architecture to modify")
	viper.BindPFlag("lc.arch", lcCmd.PersistentFlags().Lookup("arch"))

	lcAddDylibCmd.Flags().BoolP("weak", "w", false, "Add as LC_LOAD_WEAK_DYLIB")
	viper.BindPFlag("lc.add-dylib.weak", lcAddDylibCmd.Flags().Lookup("weak"))
}

// lcCmd represents the lc command
var lcCmd = &cobra.Command{
	Use:   "lc",
	Short: "Edit load commands",
}

var lcMoveCmd = &cobra.Command{
	Use:   "move <macho> <from> <to>",
	Short: "Move a load command to another position in the table",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid load command index %q", args[1])
		}
		to, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid load command index %q", args[2])
		}

		f, err := openMachO(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		idx, err := chooseArch(f, viper.GetString("lc.arch"))
		if err != nil {
			return err
		}
		n := len(f.Archs[idx].Loads)
		if from < 0 || from >= n || to < 0 || to >= n {
			return fmt.Errorf("load command index out of range: slice has %d commands", n)
		}
		if err := f.MoveLoadCommand(idx, from, to); err != nil {
			return fmt.Errorf("failed to move load command: %w", err)
		}
		log.Infof("Moved load command %d to %d in %s", from, to, args[0])
		return nil
	},
}

var lcRemoveCmd = &cobra.Command{
	Use:   "remove <macho> <index>",
	Short: "Remove a load command from the table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid load command index %q", args[1])
		}

		f, err := openMachO(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		idx, err := chooseArch(f, viper.GetString("lc.arch"))
		if err != nil {
			return err
		}
		if n := len(f.Archs[idx].Loads); index < 0 || index >= n {
			return fmt.Errorf("load command index out of range: slice has %d commands", n)
		}
		if err := f.RemoveLoadCommand(idx, index); err != nil {
			return fmt.Errorf("failed to remove load command: %w", err)
		}
		log.Infof("Removed load command %d from %s", index, args[0])
		return nil
	},
}

var lcAddRPathCmd = &cobra.Command{
	Use:   "add-rpath <macho> <path>",
	Short: "Append an LC_RPATH load command",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openMachO(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		idx, err := chooseArch(f, viper.GetString("lc.arch"))
		if err != nil {
			return err
		}
		a := f.Archs[idx]
		raw := machoedit.NewRPathCommand(args[1], a.Order, a.Hdr.Magic.LoadAlign())
		if err := f.InsertLoadCommand(idx, raw); err != nil {
			return fmt.Errorf("failed to add rpath: %w", err)
		}
		log.Infof("Added rpath %s to %s", args[1], args[0])
		return nil
	},
}

var lcAddDylibCmd = &cobra.Command{
	Use:   "add-dylib <macho> <path>",
	Short: "Append an LC_LOAD_DYLIB load command",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openMachO(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		idx, err := chooseArch(f, viper.GetString("lc.arch"))
		if err != nil {
			return err
		}
		a := f.Archs[idx]
		raw := machoedit.NewLoadDylibCommand(args[1], viper.GetBool("lc.add-dylib.weak"), a.Order, a.Hdr.Magic.LoadAlign())
		if err := f.InsertLoadCommand(idx, raw); err != nil {
			return fmt.Errorf("failed to add dylib: %w", err)
		}
		log.Infof("Added dylib %s to %s", args[1], args[0])
		return nil
	},
}
