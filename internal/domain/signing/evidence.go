package signing

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"signflow/internal/domain/apperror"
	"signflow/internal/domain/entity"
)

const (
	DefaultMaxEvidenceBytes = 500 * 1024

	minTypedLength = 2
	maxTypedLength = 200
)

// EvidenceValidator checks a submitted signature before any I/O happens.
type EvidenceValidator struct {
	validate *validator.Validate
	maxBytes int
}

type imageEvidence struct {
	Data string `json:"data" validate:"required,signature_image"`
}

type legalEvidence struct {
	Type      string `json:"type" validate:"required,oneof=drawn typed uploaded"`
	LegalName string `json:"legal_name" validate:"required,max=200"`
}

func NewEvidenceValidator(validate *validator.Validate, maxBytes int) *EvidenceValidator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxEvidenceBytes
	}
	return &EvidenceValidator{
		validate: validate,
		maxBytes: maxBytes,
	}
}

// Validate returns a validation error describing the first problem, or nil.
func (v *EvidenceValidator) Validate(in *entity.SignInput) error {
	if in == nil {
		return apperror.Validation("signature is required")
	}
	if !in.ConsentGiven {
		return apperror.Validation("consent_given must be true")
	}

	legal := legalEvidence{
		Type:      string(in.Type),
		LegalName: strings.TrimSpace(in.LegalName),
	}
	if err := v.validate.Struct(legal); err != nil {
		return apperror.Validation("%s", Describe(err))
	}

	switch in.Type {
	case entity.SignatureTypeTyped:
		n := utf8.RuneCountInString(strings.TrimSpace(in.Data))
		if n < minTypedLength || n > maxTypedLength {
			return apperror.Validation("typed signature must be between %d and %d characters", minTypedLength, maxTypedLength)
		}
	case entity.SignatureTypeDrawn, entity.SignatureTypeUploaded:
		if len(in.Data) > v.maxBytes {
			return apperror.Validation("signature image exceeds %d KB", v.maxBytes/1024)
		}
		if err := v.validate.Struct(imageEvidence{Data: in.Data}); err != nil {
			return apperror.Validation("%s", Describe(err))
		}
	}

	return nil
}
