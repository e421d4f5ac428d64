package analysis

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind string

const (
	KindEntitlementExhausted     Kind = "entitlement_exhausted"
	KindImageTooLarge            Kind = "image_too_large"
	KindInvalidImage             Kind = "invalid_image"
	KindClassificationFailed     Kind = "classification_failed"
	KindSeverityAssessmentFailed Kind = "severity_assessment_failed"
	KindRemedyGenerationFailed   Kind = "remedy_generation_failed"
	KindIngredientReadFailed     Kind = "ingredient_read_failed"
	KindSuitabilityCheckFailed   Kind = "suitability_check_failed"
	KindFollowUpFailed           Kind = "followup_failed"
	KindProfileNotFound          Kind = "profile_not_found"
	// KindProfileUpdateFailed means the profile store could not be read or
	// the trial debit could not be written.
	KindProfileUpdateFailed Kind = "profile_update_failed"
)

// ErrNoDiagnosis is returned by a suitability check without a prior diagnosis.
var ErrNoDiagnosis = errors.New("no prior diagnosis")

// Error is the failure returned by the orchestrators.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage returns the retry-oriented message shown for a failure kind.
func UserMessage(kind Kind) string {
	switch kind {
	case KindEntitlementExhausted:
		return "You have used all of your free analyses. Upgrade to continue analyzing photos."
	case KindImageTooLarge:
		return "That image is too large. Please send a smaller or more compressed photo."
	case KindInvalidImage:
		return "That file doesn't look like a supported image. Please send a JPEG, PNG, GIF, BMP, TIFF or WebP photo."
	case KindClassificationFailed:
		return "I couldn't identify a skin condition in that photo. Please try again with a clear, well-lit close-up."
	case KindSeverityAssessmentFailed, KindRemedyGenerationFailed:
		return "Something went wrong while analyzing the photo. Please try again."
	case KindIngredientReadFailed:
		return "Could not read the ingredients. Please retry with a clearer image of the ingredient list."
	case KindSuitabilityCheckFailed:
		return "Could not check that product. Please retry with a clearer image of the ingredient list."
	case KindFollowUpFailed:
		return "I couldn't answer that right now. Please try again later."
	case KindProfileNotFound:
		return "Your profile was not found. Send /start to create one."
	case KindProfileUpdateFailed:
		return "We couldn't update your account. Please try again in a moment."
	default:
		return "An unexpected error occurred. Please try again."
	}
}
