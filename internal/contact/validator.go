package contact

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/microcosm-cc/bluemonday"
)

var (
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[0-9]{11}$`)
)

// formatPriority orders non-presence failures when several fields are bad.
var formatPriority = map[string]int{"email": 0, "phone": 1, "nickname": 2, "message": 3}

// Validator checks create requests. It has no side effects.
type Validator struct {
	validate *validator.Validate
	sanitize *bluemonday.Policy
}

type ValidatorOption func(*Validator)

// WithStrictPhone toggles the 11-digit phone check. On by default.
func WithStrictPhone(strict bool) ValidatorOption {
	return func(v *Validator) {
		mustRegister(v.validate, "phone11", func(fl validator.FieldLevel) bool {
			return !strict || phonePattern.MatchString(fl.Field().String())
		})
	}
}

// WithSanitizer strips markup from nickname, email and message before
// validation. The result is plain text, so it is never longer than the input.
func WithSanitizer(enabled bool) ValidatorOption {
	return func(v *Validator) {
		if enabled {
			v.sanitize = bluemonday.StrictPolicy()
		} else {
			v.sanitize = nil
		}
	}
}

func NewValidator(opts ...ValidatorOption) *Validator {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	mustRegister(validate, "notblank", validators.NotBlank)
	mustRegister(validate, "contact_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})

	v := &Validator{validate: validate}
	WithStrictPhone(true)(v)
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// mustRegister panics on a malformed tag, which can only be a programming error.
func mustRegister(validate *validator.Validate, tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("contact: register validation %q: %v", tag, err))
	}
}

// Normalize applies the configured sanitizer. The phone is left untouched.
func (v *Validator) Normalize(req CreateRequest) CreateRequest {
	if v.sanitize == nil {
		return req
	}
	req.Nickname = v.plainText(req.Nickname)
	req.Email = v.plainText(req.Email)
	req.Message = v.plainText(req.Message)
	return req
}

// plainText removes markup. bluemonday entity-escapes the text it keeps,
// which would grow "&" into "&amp;", so the entities are decoded again.
func (v *Validator) plainText(s string) string {
	return html.UnescapeString(v.sanitize.Sanitize(s))
}

// Validate returns a *ValidationError for the first offending field.
// Missing fields win over malformed ones, in the order
// nickname, phone, email, message.
func (v *Validator) Validate(req CreateRequest) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "", Reason: "invalid request"}
	}

	// field errors come back in struct order, which is the presence order
	for _, fe := range fieldErrs {
		if isPresenceTag(fe.Tag()) {
			return missingField(fe.Field())
		}
	}

	best := fieldErrs[0]
	for _, fe := range fieldErrs[1:] {
		if formatPriority[fe.Field()] < formatPriority[best.Field()] {
			best = fe
		}
	}
	return formatError(best)
}

func isPresenceTag(tag string) bool {
	return tag == "required" || tag == "notblank"
}

func formatError(fe validator.FieldError) *ValidationError {
	switch fe.Tag() {
	case "contact_email":
		return &ValidationError{Field: fe.Field(), Reason: "invalid email format"}
	case "phone11":
		return &ValidationError{Field: fe.Field(), Reason: "invalid phone format"}
	case "max":
		return &ValidationError{Field: fe.Field(), Reason: fe.Field() + " is too long"}
	default:
		return &ValidationError{Field: fe.Field(), Reason: "invalid " + fe.Field()}
	}
}
