// Package validation checks module documents and request payloads and reports failures as
// domain validation errors with one FieldError per offending field.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/fastygo/schoolerp/domain"
)

const (
	permissionTag  = "permission"
	permissionText = "{0} must be a known permission"

	entryNameTag  = "entryname"
	entryNameText = "{0} may only contain letters, digits, '_', '-' and '.' (max 64)"

	requiredTag  = "required"
	requiredText = "{0} is required"
)

var entryNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]{0,63}$`)

// Validator is safe for concurrent use.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func New() *Validator {
	locale := en.New()
	uni := ut.New(locale, locale)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// json names in error fields, matching the request payloads
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(permissionTag, func(fl validator.FieldLevel) bool {
		return domain.IsKnownPermission(fl.Field().String())
	})
	registerTranslation(validate, translator, permissionTag, permissionText, false)

	_ = validate.RegisterValidation(entryNameTag, func(fl validator.FieldLevel) bool {
		return entryNameRegex.MatchString(fl.Field().String())
	})
	registerTranslation(validate, translator, entryNameTag, entryNameText, false)
	registerTranslation(validate, translator, requiredTag, requiredText, true)

	return &Validator{validate: validate, translator: translator}
}

// Struct validates v and converts failures into an INVALID domain error.
func (v *Validator) Struct(s any) error {
	return v.convert(v.validate.Struct(s), "")
}

// StructAt is Struct with every reported field prefixed by path, e.g. "entries[0].data".
func (v *Validator) StructAt(path string, s any) error {
	return v.convert(v.validate.Struct(s), path)
}

// Var validates a single value against tag, reporting it under field.
func (v *Validator) Var(field string, value any, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.WrapError(domain.ErrCodeInvalid, "validation failed", err)
	}
	fields := make([]domain.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		// Var has no field name, so translations render without one
		msg := strings.TrimSpace(fe.Translate(v.translator))
		fields = append(fields, domain.FieldError{Field: field, Message: field + " " + msg})
	}
	return domain.NewValidationError("validation failed", fields...)
}

func (v *Validator) convert(err error, path string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.WrapError(domain.ErrCodeInvalid, "validation failed", err)
	}
	fields := make([]domain.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, domain.FieldError{
			Field:   fieldPath(path, fe.Namespace()),
			Message: fe.Translate(v.translator),
		})
	}
	return domain.NewValidationError("validation failed", fields...)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(prefix, namespace string) string {
	field := namespace
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		field = namespace[i+1:]
	}
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}
