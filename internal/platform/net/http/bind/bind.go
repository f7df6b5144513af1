// Package bind decodes and validates JSON request bodies
package bind

import (
	"encoding/json"
	stderrs "errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"

	perr "chime/internal/platform/errors"
)

const maxBodyBytes = 1 << 20 // 1 MiB

var (
	once     sync.Once
	validate *validator.Validate
	trans    ut.Translator
)

// Validator returns the shared validator with translations and the custom
// tags registered. Exposed so tests can validate structs directly
func Validator() *validator.Validate {
	once.Do(setup)
	return validate
}

func setup() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// report json names, not Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLoc := en.New()
	uni := ut.New(enLoc, enLoc)
	trans, _ = uni.GetTranslator("en")
	_ = entrans.RegisterDefaultTranslations(validate, trans)

	// clock: wall-clock time of day, "HH:MM" or "HH:MM:SS"
	_ = validate.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return validClock(fl.Field().String())
	})
	_ = validate.RegisterTranslation("clock", trans,
		func(ut ut.Translator) error {
			return ut.Add("clock", "{0} must be a time of day like 07:30 or 07:30:00", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("clock", fe.Field())
			return t
		})

	// weekdays: comma-separated day names, "Mon,Wed,Fri"
	_ = validate.RegisterValidation("weekdays", func(fl validator.FieldLevel) bool {
		return validWeekdays(fl.Field().String())
	})
	_ = validate.RegisterTranslation("weekdays", trans,
		func(ut ut.Translator) error {
			return ut.Add("weekdays", "{0} must be day names like Mon,Wed,Fri", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("weekdays", fe.Field())
			return t
		})

	// tzname: IANA zone name loadable on this host is checked later by the
	// temporal layer; here we only reject whitespace and empty segments
	_ = validate.RegisterValidation("tzname", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && !strings.ContainsAny(s, " \t\n")
	})
}

func validClock(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return false
	}
	lims := []int{23, 59, 59}
	for i, p := range parts {
		if len(p) != 2 {
			return false
		}
		n := 0
		for _, c := range p {
			if c < '0' || c > '9' {
				return false
			}
			n = n*10 + int(c-'0')
		}
		if n > lims[i] {
			return false
		}
	}
	return true
}

var dayNames = map[string]bool{
	"Mon": true, "Tue": true, "Wed": true, "Thu": true,
	"Fri": true, "Sat": true, "Sun": true,
}

func validWeekdays(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	for _, part := range strings.Split(s, ",") {
		if !dayNames[strings.TrimSpace(part)] {
			return false
		}
	}
	return true
}

// ParseJSON decodes r's body into T, rejects unknown fields, and runs
// struct validation. Errors carry the platform taxonomy so the transport
// maps them to 400/422 without inspecting strings
func ParseJSON[T any](r *http.Request) (T, error) {
	var v T

	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&v); err != nil {
		if err == io.EOF {
			return v, perr.JSONErrf("empty request body")
		}
		return v, perr.Wrap(err, perr.ErrorCodeJSON, "malformed JSON body")
	}
	if dec.More() {
		return v, perr.JSONErrf("trailing data after JSON body")
	}

	if err := Validator().Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if stderrs.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return v, perr.WithField(perr.Validationf("%s", fe.Translate(trans)), fieldName(fe))
		}
		return v, perr.Wrap(err, perr.ErrorCodeValidation, "validation failed")
	}
	return v, nil
}

// fieldName lowercases as a guard for structs without json tags
func fieldName(fe validator.FieldError) string {
	return strings.ToLower(fe.Field())
}
