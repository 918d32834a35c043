package cmd

import (
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Print the effective profile as YAML",
	Long: `Print the profile a run would use, after defaults are applied, as YAML.
Without --profile the built-in SNCF station profile is printed, which is a
starting point for a custom profile.`,
	Args: cobra.NoArgs,
	Run:  runProfileCmd,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVarP(&cfg.ProfileFile, "profile", "p", "", "YAML profile to check and print")
}

func runProfileCmd(cmd *cobra.Command, args []string) {
	p := loadProfile()
	if err := p.Validate(); err != nil {
		exitWithError("invalid profile", err)
	}
	data, err := p.Marshal()
	if err != nil {
		exitWithError("failed to marshal profile", err)
	}
	cmd.OutOrStdout().Write(data)
}
