// Package exporterr defines the failure kinds of the export engine and the
// user-facing messages they map to.
package exporterr

import (
	"context"
	"fmt"
)

// Error codes surfaced to clients
const (
	CodeAssetLoad        = "ASSET_LOAD_FAILED"
	CodeExportSecurity   = "EXPORT_SECURITY"
	CodeRenderCapture    = "RENDER_CAPTURE_FAILED"
	CodeEncoderBusy      = "ENCODER_BUSY"
	CodeCodecUnsupported = "CODEC_UNSUPPORTED"
	CodeCaptureCanceled  = "CAPTURE_CANCELED"
	CodeConfig           = "CONFIG_INVALID"
	CodeCanceled         = "EXPORT_CANCELED"
	CodeExportFailed     = "EXPORT_FAILED"
)

// AssetLoadError is returned when a photo, clip or logo cannot be fetched or decoded.
type AssetLoadError struct {
	Ref string
	Err error
}

func (e *AssetLoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("asset %s could not be loaded", e.Ref)
	}
	return fmt.Sprintf("asset %s could not be loaded: %v", e.Ref, e.Err)
}

func (e *AssetLoadError) Unwrap() error { return e.Err }

// ExportSecurityError is returned when a surface holding a tainted asset is exported.
type ExportSecurityError struct {
	Ref string
}

func (e *ExportSecurityError) Error() string {
	return fmt.Sprintf("surface is tainted by cross-origin asset %s", e.Ref)
}

// RenderCaptureError is returned when a surface cannot be serialized.
type RenderCaptureError struct {
	Err error
}

func (e *RenderCaptureError) Error() string {
	return fmt.Sprintf("render capture failed: %v", e.Err)
}

func (e *RenderCaptureError) Unwrap() error { return e.Err }

// EncoderBusyError is returned when the video encoder is already checked out.
type EncoderBusyError struct{}

func (e *EncoderBusyError) Error() string { return "video encoder is busy" }

// CodecUnsupportedError is returned when no recorder codec from the preference list is available.
type CodecUnsupportedError struct {
	Tried []string
}

func (e *CodecUnsupportedError) Error() string {
	return fmt.Sprintf("no supported recording codec among %v", e.Tried)
}

// CaptureCancelledError is returned when the capture stream was ended by the user
// or the export was cancelled during a live capture.
type CaptureCancelledError struct {
	Reason string
}

func (e *CaptureCancelledError) Error() string {
	if e.Reason == "" {
		return "capture cancelled"
	}
	return "capture cancelled: " + e.Reason
}

// Is lets errors.Is(err, context.Canceled) hold for capture cancellation.
func (e *CaptureCancelledError) Is(target error) bool {
	return target == context.Canceled
}

// ConfigError is returned for unknown enum values and invalid requests.
type ConfigError struct {
	Field string
	Value string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Msg != "" {
		if e.Field == "" {
			return "invalid configuration: " + e.Msg
		}
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("unknown %s %q", e.Field, e.Value)
}

// Unknown builds a ConfigError for an unrecognised enum value.
func Unknown[T ~string](field string, v T) *ConfigError {
	return &ConfigError{Field: field, Value: string(v)}
}

// Invalid builds a ConfigError with a free-form message.
func Invalid(field, msg string) *ConfigError {
	return &ConfigError{Field: field, Msg: msg}
}
