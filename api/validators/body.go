package validators

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"

	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/messages"
)

// MaxBodyBytes caps every request body the api reads.
const MaxBodyBytes int64 = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// DecodeJSONBody decodes a strict JSON body into dest and runs the struct's
// validate tags. Every failing field is reported at once, keyed by its JSON
// name.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return BodyError(err)
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(messages.LocaleFrom(r.Context()), err)
	}
	return nil
}

// LimitBody caps r.Body at MaxBodyBytes for handlers that read it raw.
func LimitBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
}

// BodyError turns a failed body read or decode into a Validation error.
func BodyError(err error) *pkgerrors.Error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return pkgerrors.Wrapk(pkgerrors.CodeValidation, err, messages.BodyTooLarge, tooLarge.Limit)
	}
	return pkgerrors.Wrapk(pkgerrors.CodeValidation, err, messages.InvalidBody).
		WithDetails(map[string]string{"body": err.Error()})
}

func formatValidationErrors(tag language.Tag, err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := make(map[string]string, len(errs))
		for _, fieldErr := range errs {
			details[fieldPath(fieldErr)] = validationMessage(tag, fieldErr)
		}
		return pkgerrors.Validation(messages.ValidationFailed).WithDetails(details)
	}
	return pkgerrors.Wrapk(pkgerrors.CodeValidation, err, messages.ValidationFailed)
}

// fieldPath drops the root struct name from the namespace so nested fields
// read as "address.city".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func validationMessage(tag language.Tag, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return messages.Render(tag, messages.FieldRequired)
	case "min", "gte":
		return messages.Render(tag, messages.FieldMin, fe.Param())
	case "max", "lte":
		return messages.Render(tag, messages.FieldMax, fe.Param())
	case "email":
		return messages.Render(tag, messages.FieldEmail)
	case "oneof":
		return messages.Render(tag, messages.FieldOneOf, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "uuid", "uuid4":
		return messages.Render(tag, messages.FieldUUID)
	case "numeric", "number":
		return messages.Render(tag, messages.FieldNumeric)
	}
	return messages.Render(tag, messages.FieldInvalid)
}
