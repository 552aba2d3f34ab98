package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cafebazaar/bundlesigner/internal/models"
	"github.com/cafebazaar/bundlesigner/internal/signer"
)

// NewVerifyCmd creates the verify command. Verification is delegated
// entirely to the external verifier; this command only assembles its
// parameters.
func NewVerifyCmd() *cobra.Command {
	var cfg models.VerifyConfig

	cmd := &cobra.Command{
		Use:   "verify [flags] [APK]",
		Short: "Check whether an APK's signatures verify on Android devices",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.MinSdkVersionSpecified = cmd.Flags().Changed("min-sdk-version")
			cfg.MaxSdkVersionSpecified = cmd.Flags().Changed("max-sdk-version")
			cfg.Verbose, _ = cmd.Flags().GetBool("verbose")

			if err := resolveVerifyInput(&cfg, args); err != nil {
				return err
			}
			v := signer.NewExecVerifier(apksigPath())
			return v.Verify(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.ApkPath, "in", "", "Input APK file")
	cmd.Flags().IntVar(&cfg.MinSdkVersion, "min-sdk-version", 1, "Minimum API Level")
	cmd.Flags().IntVar(&cfg.MaxSdkVersion, "max-sdk-version", models.DefaultMaxSdkVersion, "Maximum API Level")
	cmd.Flags().BoolVar(&cfg.PrintCerts, "print-certs", false, "Print signer certificate details")
	cmd.Flags().BoolVar(&cfg.WarningsAsErrors, "Werr", false, "Treat warnings as errors")
	cmd.Flags().BoolVar(&cfg.VerifySourceStamp, "verify-source-stamp", false, "Verify the APK's source stamp")
	cmd.Flags().StringVar(&cfg.StampCertDigest, "stamp-cert-digest", "", "Expected source stamp certificate digest")

	return cmd
}

func resolveVerifyInput(cfg *models.VerifyConfig, args []string) error {
	if cfg.MinSdkVersionSpecified && cfg.MaxSdkVersionSpecified && cfg.MinSdkVersion > cfg.MaxSdkVersion {
		return &models.ToolError{
			Type: models.ErrParameter,
			Err: fmt.Errorf("min API Level (%d) > max API Level (%d)",
				cfg.MinSdkVersion, cfg.MaxSdkVersion),
		}
	}

	if cfg.ApkPath != "" {
		if len(args) > 0 {
			return &models.ToolError{
				Type: models.ErrParameter,
				Err:  fmt.Errorf("unexpected parameter after --in: %s", args[0]),
			}
		}
		return nil
	}
	if len(args) == 0 {
		return &models.ToolError{
			Type: models.ErrParameter,
			Err:  fmt.Errorf("missing APK"),
		}
	}
	cfg.ApkPath = args[0]
	return nil
}
