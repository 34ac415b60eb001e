package analysis

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/ironsheep/landcover-change-mcp/internal/change"
	"github.com/ironsheep/landcover-change-mcp/internal/landcover"
	"github.com/ironsheep/landcover-change-mcp/internal/tiling"
)

// Kind classifies a failure for the caller.
type Kind string

// Failure kinds.
const (
	// KindInput covers missing or undecodable images and images smaller
	// than the window.
	KindInput Kind = "input"
	// KindModel covers unavailable classifiers and malformed output.
	KindModel Kind = "model"
	// KindResource covers batches that could not be classified even one
	// tile at a time.
	KindResource Kind = "resource"
	// KindCanceled is reported when the caller's context ended.
	KindCanceled Kind = "canceled"
)

// Stage names the step that failed.
type Stage string

// Pipeline stages.
const (
	StageLoad     Stage = "load"
	StageTile     Stage = "tile"
	StageClassify Stage = "classify"
	StageDiff     Stage = "diff"
)

// Which image a failure belongs to.
const (
	ImageBefore = "before"
	ImageAfter  = "after"
)

// Error is the typed failure returned by the Detector.
type Error struct {
	Kind  Kind
	Stage Stage
	// Image is ImageBefore, ImageAfter, or empty when the failure is not
	// tied to one image.
	Image string
	Err   error
}

func (e *Error) Error() string {
	prefix := string(e.Stage)
	if e.Image != "" {
		prefix = e.Image + " image " + prefix
	}
	msg := prefix + " failed (" + string(e.Kind) + ")"
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// Cause returns the underlying error for github.com/pkg/errors.Cause.
func (e *Error) Cause() error { return e.Err }

// KindOf reports the Kind of err. Errors that are not an *Error are
// classified by the sentinel they wrap, falling back to KindModel.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return kindFor(err, KindModel)
}

func kindFor(err error, fallback Kind) Kind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, landcover.ErrResourceExhausted):
		return KindResource
	case errors.Is(err, landcover.ErrModelUnavailable),
		errors.Is(err, landcover.ErrMalformedOutput),
		errors.Is(err, landcover.ErrInvalidLabelSet):
		return KindModel
	case errors.Is(err, tiling.ErrImageTooSmall),
		errors.Is(err, tiling.ErrInvalidWindow),
		errors.Is(err, change.ErrEmptyMap),
		errors.Is(err, os.ErrNotExist),
		errors.Is(err, os.ErrPermission):
		return KindInput
	}
	return fallback
}

// fail wraps err for stage and image unless it already is an *Error.
func fail(stage Stage, img string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	fallback := KindModel
	if stage == StageLoad || stage == StageTile {
		fallback = KindInput
	}
	return &Error{Kind: kindFor(err, fallback), Stage: stage, Image: img, Err: err}
}

// stitchStage attributes a stitching failure to tiling or classification.
func stitchStage(err error) Stage {
	if errors.Is(err, tiling.ErrImageTooSmall) || errors.Is(err, tiling.ErrInvalidWindow) {
		return StageTile
	}
	return StageClassify
}
