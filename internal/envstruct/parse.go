package envstruct

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

var (
	ErrEnvNotSet    = errors.New("environment variable not set")
	ErrInvalidValue = errors.New("v must be a pointer to a struct")
	ErrUnparsable   = errors.New("environment variable cannot be parsed")
)

//nolint:gochecknoglobals // type identity used in a switch.
var durationType = reflect.TypeFor[time.Duration]()

// Populate populates the fields of the pointer to struct v with values from the environment.
//
// lookupEnv has the same signature as [os.LookupEnv]. Fields tagged with `env:"ENV_VAR"` are read from ENV_VAR and
// fall back to the `envDefault:"value"` tag. A missing variable without default yields ErrEnvNotSet.
//
// Supported field types are string, bool, int, float64 and [time.Duration].
func Populate(v any, lookupEnv func(string) (string, bool)) error {
	ptrRef := reflect.ValueOf(v)
	if ptrRef.Kind() != reflect.Pointer {
		return fmt.Errorf("%w: not pointer: %v", ErrInvalidValue, v)
	}
	ref := ptrRef.Elem()
	if ref.Kind() != reflect.Struct {
		return fmt.Errorf("%w: not struct: %v", ErrInvalidValue, v)
	}

	var (
		errs    []error
		refType = ref.Type()
	)
	for i := range refType.NumField() {
		field, structField := ref.Field(i), refType.Field(i)
		envVarName, ok := structField.Tag.Lookup("env")
		if !ok {
			continue
		}
		if !field.CanSet() {
			errs = append(errs, fmt.Errorf("%w: cannot set field: %s", ErrInvalidValue, structField.Name))
			continue
		}
		raw, err := envLookupWithFallback(envVarName, structField.Tag, lookupEnv)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err = setField(field, raw); err != nil {
			errs = append(errs, fmt.Errorf("field %s, env %s: %w", structField.Name, envVarName, err))
		}
	}

	return errors.Join(errs...)
}

func setField(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnparsable, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() { //nolint:exhaustive // unsupported kinds handled by default.
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnparsable, err)
		}
		field.SetBool(b)
	case reflect.Int:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnparsable, err)
		}
		field.SetInt(int64(i))
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnparsable, err)
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("%w: unsupported type %s", ErrInvalidValue, field.Type())
	}
	return nil
}

func envLookupWithFallback(
	envVarName string, tag reflect.StructTag, lookupEnv func(string) (string, bool)) (string, error) {
	envVarValue, ok := lookupEnv(envVarName)
	if !ok {
		envVarValue, ok = tag.Lookup("envDefault")
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrEnvNotSet, envVarName)
		}
	}
	return envVarValue, nil
}
