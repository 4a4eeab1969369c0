// Package env binds backend connection options to process environment
// variables. The variable names used by each backend are a stable external
// interface; missing required variables are reported together in a single
// error so operators can fix the whole set at once.
package env

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/augentic/yetti/errors"
)

// Load reads .env files into the process environment before binding.
// Existing variables are not overwritten. Missing files are ignored so the
// same binary runs with or without a local .env.
func Load(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Internal(errors.PhaseStartup, fmt.Sprintf("load %s", f), err)
		}
	}
	return nil
}

// MustHave panics unless every named variable is set. Intended for program
// entry points that cannot proceed without their configuration.
func MustHave(names ...string) {
	var missing []string
	for _, name := range names {
		if _, ok := os.LookupEnv(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		panic(errors.ConfigMissing(missing).Error())
	}
}

// Bind fills a struct's fields from environment variables using tags:
//
//	type Options struct {
//	    Addr string        `env:"HTTP_ADDR" default:"http://localhost:8080"`
//	    DSN  string        `env:"SQL_DSN" required:"true"`
//	    TTL  time.Duration `env:"CACHE_TTL" default:"60s"`
//	}
//
// Supported field types: string, bool, int kinds, time.Duration, []string
// (comma-separated). All missing required variables are collected into one
// ConfigMissing error.
func Bind(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return errors.Internal(errors.PhaseStartup, "env.Bind requires a struct pointer", nil)
	}
	rv = rv.Elem()
	rt := rv.Type()

	var missing []string

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		name := field.Tag.Get("env")
		if name == "" || !field.IsExported() {
			continue
		}

		raw, ok := os.LookupEnv(name)
		if !ok || raw == "" {
			if def, has := field.Tag.Lookup("default"); has {
				raw = def
			} else if field.Tag.Get("required") == "true" {
				missing = append(missing, name)
				continue
			} else {
				continue
			}
		}

		if err := setField(rv.Field(i), raw); err != nil {
			return errors.Internal(errors.PhaseStartup,
				fmt.Sprintf("parse %s=%q", name, raw), err)
		}
	}

	if len(missing) > 0 {
		return errors.ConfigMissing(missing)
	}
	return nil
}

func setField(f reflect.Value, raw string) error {
	// time.Duration before the generic int kinds
	if f.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		f.SetInt(int64(d))
		return nil
	}

	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		f.SetUint(n)
	case reflect.Slice:
		if f.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element %s", f.Type().Elem())
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		f.Set(reflect.ValueOf(out))
	default:
		return fmt.Errorf("unsupported field kind %s", f.Kind())
	}
	return nil
}
