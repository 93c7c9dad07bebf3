package exporterr

import (
	"context"
	"errors"
)

// Message is what a user sees for a failed export
type Message struct {
	Code   string `json:"code"`
	Text   string `json:"message"`
	Remedy string `json:"remedy,omitempty"`
}

// Describe maps any error in the chain to a short message and a remedy.
func Describe(err error) Message {
	var (
		assetErr   *AssetLoadError
		secErr     *ExportSecurityError
		captureErr *RenderCaptureError
		busyErr    *EncoderBusyError
		codecErr   *CodecUnsupportedError
		cancelErr  *CaptureCancelledError
		cfgErr     *ConfigError
	)

	// Order matters: a RenderCaptureError may wrap an ExportSecurityError.
	switch {
	case errors.As(err, &secErr):
		return Message{
			Code:   CodeExportSecurity,
			Text:   "One of the images cannot be exported because its host does not allow it.",
			Remedy: "Upload the photo or logo instead of linking it.",
		}
	case errors.As(err, &captureErr):
		return Message{
			Code:   CodeRenderCapture,
			Text:   "The frame could not be saved.",
			Remedy: "Retry the export; if it keeps failing, lower the quality setting.",
		}
	case errors.As(err, &assetErr):
		return Message{
			Code:   CodeAssetLoad,
			Text:   "A photo or logo could not be loaded.",
			Remedy: "Check the link or reduce the file size below 5MB, then retry.",
		}
	case errors.As(err, &busyErr):
		return Message{
			Code:   CodeEncoderBusy,
			Text:   "Another video is being generated.",
			Remedy: "Wait for the current video to finish and retry.",
		}
	case errors.As(err, &codecErr):
		return Message{
			Code:   CodeCodecUnsupported,
			Text:   "Video recording is not supported on this server.",
			Remedy: "Export as MP4 or GIF instead.",
		}
	case errors.As(err, &cancelErr):
		return Message{
			Code:   CodeCaptureCanceled,
			Text:   "Recording was stopped before the slideshow finished.",
			Remedy: "Keep the capture running until the export completes, or pick a different tab.",
		}
	case errors.As(err, &cfgErr):
		return Message{
			Code:   CodeConfig,
			Text:   cfgErr.Error(),
			Remedy: "Review the style and listing settings.",
		}
	case errors.Is(err, context.Canceled):
		return Message{
			Code: CodeCanceled,
			Text: "The export was cancelled.",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return Message{
			Code:   CodeExportFailed,
			Text:   "The export took too long.",
			Remedy: "Reduce the number of photos or the video duration.",
		}
	}
	return Message{
		Code:   CodeExportFailed,
		Text:   "The export failed.",
		Remedy: "Retry the export.",
	}
}

// IsCancellation reports whether err means the export was cancelled rather than failed.
func IsCancellation(err error) bool {
	var cancelErr *CaptureCancelledError
	return errors.As(err, &cancelErr) || errors.Is(err, context.Canceled)
}
