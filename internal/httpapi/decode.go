package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"habittracker/internal/auth"
	"habittracker/internal/domain"
)

const maxBodyBytes = 1 << 20

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("useremail", func(fl validator.FieldLevel) bool {
		return auth.ValidEmail(auth.NormalizeEmail(fl.Field().String()))
	})
	return v
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("multiple json values")
		}
		return err
	}
	return nil
}

// decodeAndValidate decodes a JSON body into dst and runs its validate tags.
// Both kinds of failure come back as a *domain.ValidationError.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return domain.NewValidationError(map[string]string{"body": "invalid json"})
	}

	err := requestValidator.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.NewValidationError(map[string]string{"body": "invalid request payload"})
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = tagMessage(fe)
	}
	return domain.NewValidationError(fields)
}

// fieldPath drops the struct name from the namespace, leaving the JSON path
// (keys.p256dh).
func fieldPath(fe validator.FieldError) string {
	_, path, ok := strings.Cut(fe.Namespace(), ".")
	if !ok {
		return fe.Field()
	}
	return path
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "useremail":
		return "invalid email"
	case "max":
		return "too long"
	case "min":
		return "too short"
	case "datetime":
		return "invalid format"
	default:
		return "invalid"
	}
}
