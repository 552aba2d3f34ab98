package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is the tool version reported by the version command
const Version = "0.1"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bundlesigner",
		Short: "Sign Android App Bundles in two detached phases",
		Long: `Bundlesigner splits App Bundle signing into two phases so the private
signing key never has to be present where the bundle is expanded:

  genbin      expands the bundle into APK variants and records each
              variant's pre-signature content digests to a transfer file
  signbundle  re-expands the same bundle and embeds the recorded
              signatures, emitting the final signed APKs

The transfer file carries the digests (and the active signature schemes)
across the air gap between the two invocations.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	rootCmd.AddCommand(NewGenBinCmd())
	rootCmd.AddCommand(NewSignBundleCmd())
	rootCmd.AddCommand(NewVerifyCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tool version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(Version)
		},
	}
}

// bundletoolPath resolves the external bundle-tool executable
func bundletoolPath() string {
	if p := os.Getenv("BUNDLESIGNER_BUNDLETOOL"); p != "" {
		return p
	}
	return "bundletool"
}

// apksigPath resolves the external APK signer/verifier executable
func apksigPath() string {
	if p := os.Getenv("BUNDLESIGNER_APKSIG"); p != "" {
		return p
	}
	return "apksig"
}
