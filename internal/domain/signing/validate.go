package signing

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// allowedImageTypes are the data URI media types accepted for drawn and uploaded signatures.
var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// NewValidate returns a validator with the signing rules registered.
func NewValidate() (*validator.Validate, error) {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	err := v.RegisterValidation("signature_image", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			panic(fmt.Errorf("%q is not a string", fl.FieldName()))
		}
		return isImageDataURI(fl.Field().String())
	})
	return v, err
}

// isImageDataURI accepts data:<allowed type>;base64,<payload> with a decodable payload.
func isImageDataURI(s string) bool {
	if !strings.HasPrefix(s, "data:") {
		return false
	}

	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok || payload == "" {
		return false
	}

	mediaType, encoding, ok := strings.Cut(header, ";")
	if !ok || !strings.EqualFold(encoding, "base64") {
		return false
	}
	if !allowedImageTypes[strings.ToLower(mediaType)] {
		return false
	}

	_, err := base64.StdEncoding.DecodeString(payload)
	return err == nil
}

// Describe turns the first validation failure into a caller-facing sentence.
func Describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at most %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "signature_image":
		return fmt.Sprintf("%s must be a base64 image data URI (png, jpeg or webp)", field)
	case "gte", "gt":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
