// Package validation wraps go-playground/validator with English translations
// and JSON field names, shared by commands and HTTP request decoding.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const notBlankTag = "notblank"

var (
	once       sync.Once
	validate   *validator.Validate
	translator ut.Translator
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New()

		_en := en.New()
		uni := ut.New(_en, _en)
		translator, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(validate, translator)

		// Use JSON tag names for errors instead of Go struct names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
			if str, ok := fl.Field().Interface().(string); ok {
				return strings.TrimSpace(str) != ""
			}
			return false
		})
		_ = validate.RegisterTranslation(notBlankTag, translator,
			func(ut.Translator) error { return nil },
			func(_ ut.Translator, fe validator.FieldError) string {
				return fe.Field() + " cannot be blank"
			})
	})
	return validate
}

// Struct validates s against its `validate` tags.
func Struct(s interface{}) error {
	return instance().Struct(s)
}

// Fields returns field -> message for validation errors, or nil for any other error.
func Fields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	instance()
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Translate(translator)
	}
	return out
}
