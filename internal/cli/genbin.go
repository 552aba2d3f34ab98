package cli

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cafebazaar/bundlesigner/internal/bundletool"
	"github.com/cafebazaar/bundlesigner/internal/models"
	"github.com/cafebazaar/bundlesigner/internal/pipeline"
	"github.com/cafebazaar/bundlesigner/internal/signer"
	"github.com/cafebazaar/bundlesigner/internal/workspace"
)

// NewGenBinCmd creates the genbin command
func NewGenBinCmd() *cobra.Command {
	var cfg models.GenBinConfig
	var cred models.SignerCredentials

	cmd := &cobra.Command{
		Use:   "genbin",
		Short: "Generate pre-signature content digests from an App Bundle",
		Long: `Expands the bundle into a split APK Set and a universal APK Set,
computes each variant's scheme-specific content digests, and writes them
to <bin-dir>/<bundle base name>.bin for the signbundle phase.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.MinSdkVersionSpecified = cmd.Flags().Changed("min-sdk-version")
			if err := validateGenBin(&cfg, cred); err != nil {
				return err
			}
			logrus.Debugf("Configuration: %+v", cfg)
			return runGenBin(cmd.Context(), &cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.BundlePath, "bundle", "", "Input App Bundle file")
	cmd.Flags().StringVar(&cfg.BinDir, "bin", "", "Directory the transfer (.bin) file is written to")

	cmd.Flags().IntVar(&cfg.MinSdkVersion, "min-sdk-version", 1, "Minimum API Level")
	cmd.Flags().IntVar(&cfg.MaxSdkVersion, "max-sdk-version", models.DefaultMaxSdkVersion, "Maximum API Level")
	cmd.Flags().BoolVar(&cfg.Flags.V2, "v2-signing-enabled", false, "Record APK Signature Scheme v2 digests")
	cmd.Flags().BoolVar(&cfg.Flags.V3, "v3-signing-enabled", false, "Record APK Signature Scheme v3 digests")
	cmd.Flags().BoolVar(&cfg.DebuggableApkPermitted, "debuggable-apk-permitted", true, "Permit signing debuggable APKs")

	// Signer selection, handed through to the external signer
	cmd.Flags().StringVar(&cred.KeystorePath, "ks", "", "KeyStore file")
	cmd.Flags().StringVar(&cred.KeystoreKeyAlias, "ks-key-alias", "", "KeyStore key alias")
	cmd.Flags().StringVar(&cred.KeystorePass, "ks-pass", "", "KeyStore password spec")
	cmd.Flags().StringVar(&cred.KeyPass, "key-pass", "", "Key password spec")
	cmd.Flags().StringVar(&cred.KeyPath, "key", "", "Private key file")
	cmd.Flags().StringVar(&cred.CertPath, "cert", "", "Certificate file")
	cmd.Flags().StringVar(&cred.V1SignerName, "v1-signer-name", "", "Basename for the v1 signature files")

	return cmd
}

func validateGenBin(cfg *models.GenBinConfig, cred models.SignerCredentials) error {
	if cfg.BundlePath == "" {
		return &models.ToolError{
			Type: models.ErrParameter,
			Err:  fmt.Errorf("missing input bundle file path"),
		}
	}
	if cfg.BinDir == "" {
		return &models.ToolError{
			Type: models.ErrParameter,
			Err:  fmt.Errorf("missing output bin file path"),
		}
	}

	if !cred.IsEmpty() {
		cred.Name = "signer #1"
		cfg.Signers = append(cfg.Signers, cred)
	}
	if len(cfg.Signers) == 0 {
		return &models.ToolError{
			Type: models.ErrParameter,
			Err:  fmt.Errorf("at least one signer must be specified"),
		}
	}

	if cfg.MinSdkVersionSpecified && cfg.MinSdkVersion > cfg.MaxSdkVersion {
		return &models.ToolError{
			Type: models.ErrParameter,
			Err: fmt.Errorf("min API Level (%d) > max API Level (%d)",
				cfg.MinSdkVersion, cfg.MaxSdkVersion),
		}
	}

	return nil
}

func runGenBin(ctx context.Context, cfg *models.GenBinConfig) (retErr error) {
	ws, err := workspace.New()
	if err != nil {
		return &models.ToolError{Type: models.ErrRuntime, Err: err}
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil && retErr == nil {
			retErr = cerr
		}
	}()

	rec := pipeline.NewRecorder(
		bundletool.NewExecExpander(bundletoolPath()),
		signer.NewExecSigner(apksigPath()),
	)
	out, err := rec.Generate(ctx, ws, cfg)
	if err != nil {
		return err
	}

	logrus.Infof("Digest content generated: %s", out)
	return nil
}
