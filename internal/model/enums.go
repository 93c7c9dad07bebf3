package model

// Property types
type PropertyType string

const (
	PropertyApartment PropertyType = "apartment"
	PropertyHouse     PropertyType = "house"
	PropertyRetail    PropertyType = "retail"
	PropertyOffice    PropertyType = "office"
	PropertyWarehouse PropertyType = "warehouse"
	PropertyLand      PropertyType = "land"
)

var ValidPropertyTypes = []PropertyType{
	PropertyApartment, PropertyHouse, PropertyRetail,
	PropertyOffice, PropertyWarehouse, PropertyLand,
}

// Listing modality
type Modality string

const (
	ModalityRent Modality = "rent"
	ModalitySale Modality = "sale"
)

// Closed listing variants
type ClosedVariant string

const (
	ClosedLeased ClosedVariant = "leased"
	ClosedSold   ClosedVariant = "sold"
)

// Logo positions
type LogoPosition string

const (
	LogoTopLeft      LogoPosition = "top-left"
	LogoTopRight     LogoPosition = "top-right"
	LogoBottomCenter LogoPosition = "bottom-center"
)

var ValidLogoPositions = []LogoPosition{LogoTopLeft, LogoTopRight, LogoBottomCenter}

// Logo size buckets
type LogoSize string

const (
	LogoSmall  LogoSize = "small"
	LogoMedium LogoSize = "medium"
	LogoLarge  LogoSize = "large"
	LogoXLarge LogoSize = "xlarge"
)

var ValidLogoSizes = []LogoSize{LogoSmall, LogoMedium, LogoLarge, LogoXLarge}

// Logo shapes
type LogoShape string

const (
	ShapeSquare   LogoShape = "square"
	ShapeRounded  LogoShape = "rounded"
	ShapeCircle   LogoShape = "circle"
	ShapeSquircle LogoShape = "squircle"
)

var ValidLogoShapes = []LogoShape{ShapeSquare, ShapeRounded, ShapeCircle, ShapeSquircle}

// Logo background treatments
type LogoBackground string

const (
	BackgroundNone        LogoBackground = "none"
	BackgroundFrosted     LogoBackground = "frosted"
	BackgroundGlow        LogoBackground = "glow"
	BackgroundElevated    LogoBackground = "elevated"
	BackgroundHolographic LogoBackground = "holographic"
	BackgroundIridescent  LogoBackground = "iridescent"
)

var ValidLogoBackgrounds = []LogoBackground{
	BackgroundNone, BackgroundFrosted, BackgroundGlow,
	BackgroundElevated, BackgroundHolographic, BackgroundIridescent,
}

// Idle logo animations, applied once the entrance has finished
type LogoAnimation string

const (
	AnimationNone  LogoAnimation = "none"
	AnimationPulse LogoAnimation = "pulse"
	AnimationFloat LogoAnimation = "float"
)

// Entrance animations
type EntranceAnimation string

const (
	EntranceNone  EntranceAnimation = "none"
	EntranceFade  EntranceAnimation = "fade"
	EntranceZoom  EntranceAnimation = "zoom"
	EntranceSlide EntranceAnimation = "slide"
)

// Badge corner styles
type BadgeStyle string

const (
	BadgeRounded BadgeStyle = "rounded"
	BadgePill    BadgeStyle = "pill"
	BadgeSquare  BadgeStyle = "square"
)

// Vertical spacing buckets
type VerticalSpacing string

const (
	SpacingCompact  VerticalSpacing = "compact"
	SpacingNormal   VerticalSpacing = "normal"
	SpacingSpacious VerticalSpacing = "spacious"
)

// Gradient directions
type GradientDirection string

const (
	GradientNone   GradientDirection = "none"
	GradientTop    GradientDirection = "top"
	GradientBottom GradientDirection = "bottom"
	GradientBoth   GradientDirection = "both"
)

// Summary frame backgrounds
type SummaryBackground string

const (
	SummarySolid  SummaryBackground = "solid"
	SummaryBlur   SummaryBackground = "blur"
	SummaryMosaic SummaryBackground = "mosaic"
)

// Canvas formats
type CanvasFormat string

const (
	CanvasVertical CanvasFormat = "vertical"
	CanvasSquare   CanvasFormat = "square"
)

// Content types
type ContentType string

const (
	ContentSingle   ContentType = "single"
	ContentCarousel ContentType = "carousel"
	ContentVideo    ContentType = "video"
)

// Export formats
type ExportFormat string

const (
	FormatPNG  ExportFormat = "png"
	FormatJPEG ExportFormat = "jpeg"
	FormatGIF  ExportFormat = "gif"
	FormatMP4  ExportFormat = "mp4"
	FormatWebM ExportFormat = "webm"
)

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Export stages
type ExportStage string

const (
	StagePreparing  ExportStage = "preparing"
	StageCapturing  ExportStage = "capturing"
	StageRecording  ExportStage = "recording"
	StageEncoding   ExportStage = "encoding"
	StageProcessing ExportStage = "processing"
	StageComplete   ExportStage = "complete"
)
