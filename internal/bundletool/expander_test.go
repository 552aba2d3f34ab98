package bundletool

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cafebazaar/bundlesigner/internal/models"
)

func TestClassifyBuildError(t *testing.T) {
	cases := []struct {
		name   string
		stderr string
		want   models.ErrorType
	}{
		{"invalid bundle", "Error: Invalid bundle: missing BundleConfig.pb", models.ErrInvalidBundle},
		{"io failure", "Error: cannot write output file", models.ErrBundleToolIO},
		{"empty stderr", "", models.ErrBundleToolIO},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyBuildError("app.aab", fmt.Errorf("exit status 1"), tc.stderr)
			var terr *models.ToolError
			if !errors.As(err, &terr) {
				t.Fatalf("Expected ToolError, got %v", err)
			}
			if terr.Type != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, terr.Type)
			}
		})
	}
}

func TestNewExecExpanderDefault(t *testing.T) {
	if e := NewExecExpander(""); e.Path != "bundletool" {
		t.Errorf("Default path = %s", e.Path)
	}
	if e := NewExecExpander("/opt/bundletool"); e.Path != "/opt/bundletool" {
		t.Errorf("Explicit path = %s", e.Path)
	}
}
