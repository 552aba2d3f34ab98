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

// NewSignBundleCmd creates the signbundle command
func NewSignBundleCmd() *cobra.Command {
	var cfg models.SignBundleConfig

	cmd := &cobra.Command{
		Use:   "signbundle",
		Short: "Apply recorded signatures to an App Bundle's APK variants",
		Long: `Re-expands the bundle into the same APK Sets the genbin phase walked,
matches each variant to its recorded digests in the transfer file, embeds
the signatures and writes the signed APKs to the output directory. The
active signature schemes are read from the transfer file itself.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateSignBundle(&cfg); err != nil {
				return err
			}
			logrus.Debugf("Configuration: %+v", cfg)
			return runSignBundle(cmd.Context(), &cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.BundlePath, "bundle", "", "Input App Bundle file")
	cmd.Flags().StringVar(&cfg.BinPath, "bin", "", "Transfer (.bin) file produced by genbin")
	cmd.Flags().StringVar(&cfg.OutputDir, "out", "", "Directory the signed APKs are written to")

	return cmd
}

func validateSignBundle(cfg *models.SignBundleConfig) error {
	if cfg.BundlePath == "" {
		return &models.ToolError{
			Type: models.ErrParameter,
			Err:  fmt.Errorf("missing bundle file"),
		}
	}
	if cfg.BinPath == "" {
		return &models.ToolError{
			Type: models.ErrParameter,
			Err:  fmt.Errorf("missing bin file"),
		}
	}
	if cfg.OutputDir == "" {
		return &models.ToolError{
			Type: models.ErrParameter,
			Err:  fmt.Errorf("missing output path"),
		}
	}
	return nil
}

func runSignBundle(ctx context.Context, cfg *models.SignBundleConfig) (retErr error) {
	ws, err := workspace.New()
	if err != nil {
		return &models.ToolError{Type: models.ErrRuntime, Err: err}
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil && retErr == nil {
			retErr = cerr
		}
	}()

	applier := pipeline.NewApplier(
		bundletool.NewExecExpander(bundletoolPath()),
		signer.NewExecSigner(apksigPath()),
	)
	outputs, err := applier.Apply(ctx, ws, cfg)
	if err != nil {
		return err
	}

	for _, out := range outputs {
		logrus.Debugf("Signed APK: %s", out)
	}
	logrus.Infof("Bundle signed: %d APKs written to %s", len(outputs), cfg.OutputDir)
	return nil
}
