package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// ErrInvalidConfig indicates a configuration failed decoding or
// validation.
var ErrInvalidConfig = errors.New("invalid config")

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses RFC 3339 timestamps, common date-time layouts, and
// plain dates. Times without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable time %q", ErrInvalidConfig, s)
}

var timeType = reflect.TypeOf(time.Time{})

func stringToTimeHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != timeType {
		return data, nil
	}
	s, _ := data.(string)
	if s == "" {
		return time.Time{}, nil
	}
	return ParseTime(s)
}

// Decode copies input into the struct pointed to by out, using
// `mapstructure` tags, then validates it with `validate` tags.
//
// Unknown keys are rejected. Durations ("5m") and timestamps
// ("2000-01-03", RFC 3339) are decoded from strings.
func Decode(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToTimeHook,
		),
		ErrorUnused: true,
		Result:      out,
		TagName:     "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return Validate(out)
}

// DecodeConfig is Decode for a Config.
func DecodeConfig(c Config, out any) error {
	return Decode(c.Raw(), out)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks `validate` struct tags. Every failing field is
// reported, named by its mapstructure key.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fieldError(fe))
	}
	return errors.Join(errs...)
}

func fieldError(fe validator.FieldError) error {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s", ErrMissingKey, field)
	case "oneof":
		return fmt.Errorf("%w: %s must be one of [%s], got %v", ErrInvalidConfig, field, fe.Param(), fe.Value())
	case "min", "max", "gte", "gt", "lte", "lt":
		return fmt.Errorf("%w: %s must satisfy %s=%s, got %v", ErrInvalidConfig, field, fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%w: %s failed %q", ErrInvalidConfig, field, fe.Tag())
	}
}
