package contract

import "errors"

var (
	ErrClassification     = errors.New("intent classification failed")
	ErrExtraction         = errors.New("requirement extraction failed")
	ErrRecommendation     = errors.New("recommendation generation failed")
	ErrPricingUnavailable = errors.New("pricing unavailable")
	ErrSummarization      = errors.New("summarization failed")
	ErrStorePersist       = errors.New("context persist failed")
	ErrSessionBusy        = errors.New("session busy")

	ErrModelInvoke       = errors.New("model invoke failed")
	ErrSchemaViolation   = errors.New("model response violates schema")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid intent status transition")
)
