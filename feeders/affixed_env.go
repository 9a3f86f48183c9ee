package feeders

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"
)

// AffixedEnvFeeder populates `env`-tagged struct fields from environment
// variables named PREFIX_TAG_SUFFIX. Nested structs are walked; fields
// without an env tag and variables that are unset or empty are left alone.
//
// Example: with Prefix "MT_TENANT", a field tagged `env:"PRIORITY"` is read
// from MT_TENANT_PRIORITY.
type AffixedEnvFeeder struct {
	Prefix string
	Suffix string

	// Lookup resolves a variable; nil selects os.LookupEnv.
	Lookup func(name string) (string, bool)
}

// NewAffixedEnvFeeder creates a new AffixedEnvFeeder with the specified prefix and suffix
func NewAffixedEnvFeeder(prefix, suffix string) AffixedEnvFeeder {
	return AffixedEnvFeeder{Prefix: prefix, Suffix: suffix}
}

// VarName returns the environment variable consulted for tag.
func (f AffixedEnvFeeder) VarName(tag string) string {
	name := strings.ToUpper(tag)
	if f.Prefix != "" {
		name = strings.ToUpper(f.Prefix) + "_" + name
	}
	if f.Suffix != "" {
		name = name + "_" + strings.ToUpper(f.Suffix)
	}
	return name
}

// Feed reads environment variables into structure, which must be a pointer
// to a struct.
func (f AffixedEnvFeeder) Feed(structure any) error {
	if f.Prefix == "" && f.Suffix == "" {
		return ErrEnvEmptyPrefixAndSuffix
	}
	rv := reflect.ValueOf(structure)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: got %T", ErrEnvInvalidStructure, structure)
	}
	return f.fillStruct(rv.Elem())
}

func (f AffixedEnvFeeder) lookup(name string) (string, bool) {
	if f.Lookup != nil {
		return f.Lookup(name)
	}
	return os.LookupEnv(name)
}

func (f AffixedEnvFeeder) fillStruct(rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}

		if tag, ok := sf.Tag.Lookup("env"); ok && tag != "" && tag != "-" {
			if err := f.setField(field, tag); err != nil {
				return fmt.Errorf("error in field '%s': %w", sf.Name, err)
			}
			continue
		}

		switch {
		case field.Kind() == reflect.Struct:
			if err := f.fillStruct(field); err != nil {
				return err
			}
		case field.Kind() == reflect.Pointer && !field.IsNil() && field.Elem().Kind() == reflect.Struct:
			if err := f.fillStruct(field.Elem()); err != nil {
				return err
			}
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func (f AffixedEnvFeeder) setField(field reflect.Value, tag string) error {
	value, ok := f.lookup(f.VarName(tag))
	if !ok || value == "" {
		return nil
	}
	if !field.CanSet() {
		return ErrEnvFieldCannotBeSet
	}

	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
		}
		field.SetInt(int64(d))
		return nil
	}

	converted, err := cast.FromType(value, field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
	}
	field.Set(reflect.ValueOf(converted).Convert(field.Type()))
	return nil
}
