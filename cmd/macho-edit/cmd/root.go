package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	machoedit "github.com/appsworld/macho-edit"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "macho-edit",
	Short: "Edit thin/fat Mach-O binaries in place",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("verbose") {
			log.SetLevel(log.DebugLevel)
		}
		color.NoColor = viper.GetBool("no-color")
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihander.Default)

	rootCmd.PersistentFlags().BoolP("verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colorized output")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))
	viper.BindEnv("no-color", "NO_COLOR")
}

// openMachO opens and parses the given path, bailing with a uniform
// error when it does not exist.
func openMachO(path string) (*machoedit.File, error) {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file %s does not exist", path)
	}
	return machoedit.Open(path)
}

// chooseArch resolves the --arch selection against the container's
// slice table: by case-insensitive cpu/subtype name when given,
// interactively otherwise. Thin containers always resolve to slice 0.
func chooseArch(f *machoedit.File, selected string) (int, error) {
	if !f.IsFat() || len(f.Archs) == 1 {
		return 0, nil
	}

	var options []string
	for _, arch := range f.Archs {
		options = append(options, fmt.Sprintf("%s, %s",
			arch.Desc.CPU, arch.Desc.SubCPU.String(arch.Desc.CPU)))
	}

	if len(selected) > 0 {
		for i, opt := range options {
			if strings.Contains(strings.ToLower(opt), strings.ToLower(selected)) {
				return i, nil
			}
		}
		return 0, fmt.Errorf("--arch '%s' not found in: %s", selected, strings.Join(options, "; "))
	}

	choice := 0
	prompt := &survey.Select{
		Message: "Found a universal MachO file, please select an architecture:",
		Options: options,
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return 0, err
	}
	return choice, nil
}
