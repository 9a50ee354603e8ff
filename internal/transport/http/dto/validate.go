package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

var (
	validate *validator.Validate
	trans    ut.Translator
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// report json names, not Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	trans, _ = ut.New(english, english).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		panic(err)
	}
}

type normalizer interface {
	Normalize()
}

// Validate normalizes req when it knows how and checks its validate tags.
// Only the first failing field is reported, as a domain validation error.
func Validate(req any) error {
	if n, ok := req.(normalizer); ok {
		n.Normalize()
	}

	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.ErrInternal(err)
	}
	return toDomainError(verrs[0])
}

func toDomainError(fe validator.FieldError) error {
	field := fe.Field()
	switch {
	case fe.Tag() == "required":
		return domain.ErrMissingField(field)
	case isPasswordField(field) && (fe.Tag() == "min" || fe.Tag() == "max"):
		return domain.ErrWeakPassword(fe.Translate(trans))
	case field == "role" && fe.Tag() == "oneof":
		return domain.ErrInvalidRole(asString(fe.Value()))
	default:
		return domain.ErrInvalidField(field, fe.Translate(trans))
	}
}

func isPasswordField(field string) bool {
	return field == "password" || field == "currentPassword"
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
