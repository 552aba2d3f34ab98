package models

import "fmt"

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrRuntime ErrorType = iota
	ErrVerification
	ErrParameter
	ErrMinSdkVersion
	ErrInvalidBundle
	ErrBundleToolIO
	ErrApkFormat
	ErrTransferFormat
	ErrCorrelation
	ErrCleanup
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrRuntime:
		return "Runtime"
	case ErrVerification:
		return "Verification"
	case ErrParameter:
		return "Parameter"
	case ErrMinSdkVersion:
		return "MinSdkVersion"
	case ErrInvalidBundle:
		return "InvalidBundle"
	case ErrBundleToolIO:
		return "BundleToolIO"
	case ErrApkFormat:
		return "ApkFormat"
	case ErrTransferFormat:
		return "TransferFormat"
	case ErrCorrelation:
		return "Correlation"
	case ErrCleanup:
		return "Cleanup"
	default:
		return "Unknown"
	}
}

// ExitCode maps an error category to the process exit code contract:
// 1 verification failure, 2 parameter error, 3 undeterminable minimum
// platform version, 5 invalid bundle, 6 bundle-tool I/O, 7 malformed APK,
// 8 workspace cleanup failure. Transfer-format and correlation errors have
// no reserved code and report, like any other unclassified failure, as 4.
func (e ErrorType) ExitCode() int {
	switch e {
	case ErrVerification:
		return 1
	case ErrParameter:
		return 2
	case ErrMinSdkVersion:
		return 3
	case ErrInvalidBundle:
		return 5
	case ErrBundleToolIO:
		return 6
	case ErrApkFormat:
		return 7
	case ErrCleanup:
		return 8
	default:
		return 4
	}
}

// ToolError represents an error during digest generation, signature
// application or verification
type ToolError struct {
	Type    ErrorType
	Subject string
	Err     error
}

// Error implements the error interface
func (e *ToolError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Subject, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Type, e.Err)
}

// Unwrap returns the wrapped error
func (e *ToolError) Unwrap() error {
	return e.Err
}
