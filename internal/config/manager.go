package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// DefaultName is the config resource name; the extension is resolved on load.
const DefaultName = "config"

var ErrMissingInterval = errors.New("missing required key \"interval\"")

// ParseError reports a config resource that is missing, unreadable,
// or does not match the Settings shape.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("config %s: %v", e.Path, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Source loads Settings from a named file.
//
// With Path set, exactly that file is read. Otherwise Name (default "config")
// is looked up in Dirs (default: working directory) with any extension viper
// understands (json, toml, yaml, yml, ...).
type Source struct {
	Name string
	Path string
	Dirs []string
}

// NewSource returns a Source for an explicit path, or the default name when path is empty.
func NewSource(path string) Source {
	return Source{Name: DefaultName, Path: strings.TrimSpace(path)}
}

func (s Source) describe() string {
	if s.Path != "" {
		return s.Path
	}
	name := s.Name
	if name == "" {
		name = DefaultName
	}
	return name
}

// viper instances are not safe for concurrent use, so every load gets its own.
func (s Source) newViper() *viper.Viper {
	v := viper.New()
	if s.Path != "" {
		v.SetConfigFile(s.Path)
		return v
	}
	name := s.Name
	if name == "" {
		name = DefaultName
	}
	v.SetConfigName(name)
	dirs := s.Dirs
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	return v
}

// Resolve returns the path of the file Load would read.
func (s Source) Resolve() (string, error) {
	v := s.newViper()
	if err := v.ReadInConfig(); err != nil {
		return "", &ParseError{Path: s.describe(), Err: err}
	}
	return filepath.Clean(v.ConfigFileUsed()), nil
}

// Load reads and decodes a fresh Settings snapshot.
func (s Source) Load() (*Settings, error) {
	v := s.newViper()
	if err := v.ReadInConfig(); err != nil {
		return nil, &ParseError{Path: s.describe(), Err: err}
	}
	path := v.ConfigFileUsed()
	if !v.IsSet("interval") {
		return nil, &ParseError{Path: path, Err: ErrMissingInterval}
	}

	var st Settings
	if err := v.Unmarshal(&st, strictDecoding); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if st.Lyrics == nil {
		st.Lyrics = []string{}
	}
	if _, err := st.IdleDuration(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &st, nil
}

// strictDecoding turns off viper's lenient conversions so "5" is not an
// interval and a bare string is not a lyrics list.
func strictDecoding(c *mapstructure.DecoderConfig) {
	c.WeaklyTypedInput = false
	c.DecodeHook = exactIntegerHook
}

// exactIntegerHook rejects numbers that would not survive conversion into an
// integer field unchanged: fractions, and values outside the target's range.
func exactIntegerHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	to = indirectType(to)
	if !isIntegerKind(to.Kind()) {
		return data, nil
	}
	v := reflect.ValueOf(data)
	target := reflect.New(to).Elem()
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not a whole number", data)
		}
		if isUnsignedKind(to.Kind()) {
			if f < 0 || f >= math.Ldexp(1, to.Bits()) {
				return nil, fmt.Errorf("%v is out of range for %s", data, to)
			}
			return uint64(f), nil
		}
		if f < math.Ldexp(-1, to.Bits()-1) || f >= math.Ldexp(1, to.Bits()-1) {
			return nil, fmt.Errorf("%v is out of range for %s", data, to)
		}
		return int64(f), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := v.Int()
		if isUnsignedKind(to.Kind()) {
			if i < 0 || target.OverflowUint(uint64(i)) {
				return nil, fmt.Errorf("%d is out of range for %s", i, to)
			}
		} else if target.OverflowInt(i) {
			return nil, fmt.Errorf("%d is out of range for %s", i, to)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if isUnsignedKind(to.Kind()) {
			if target.OverflowUint(u) {
				return nil, fmt.Errorf("%d is out of range for %s", u, to)
			}
		} else if u > math.MaxInt64 || target.OverflowInt(int64(u)) {
			return nil, fmt.Errorf("%d is out of range for %s", u, to)
		}
	}
	return data, nil
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return isUnsignedKind(k)
}

func isUnsignedKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
