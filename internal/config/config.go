package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/zerobyte/warden/internal/logging"
)

// EnvPrefix is prepended to every env tag when reading overrides.
const EnvPrefix = "WARDEN_"

// Load fills opts with proper precedence: CLI flags > env vars > TOML
// file. Fields carry `toml` tags naming the file key (dot notation for
// nesting) and `env` tags naming the variable suffix. Fields whose flag
// was set explicitly on cmd are left untouched.
func Load(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()

	pinned := flagPinnedFields(cmd)

	if err := applyTOML(v, pinned); err != nil {
		return err
	}
	applyEnv(v, pinned)
	return nil
}

// flagPinnedFields collects the flag names the user set explicitly;
// those fields never get overwritten from file or environment.
func flagPinnedFields(cmd *cobra.Command) map[string]bool {
	pinned := make(map[string]bool)
	if cmd == nil {
		return pinned
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			pinned[f.Name] = true
		}
	})
	return pinned
}

func applyTOML(v reflect.Value, pinned map[string]bool) error {
	// The Config field of the options struct names the TOML file.
	path := ""
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String {
		path = f.String()
	}
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// A missing file is not an error; defaults and env still apply.
		return nil
	}

	var file map[string]any
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}

	for _, sf := range reflect.VisibleFields(v.Type()) {
		if pinned[fieldNameToFlag(sf.Name)] {
			continue
		}
		key := sf.Tag.Get("toml")
		if key == "" {
			continue
		}
		if value := nestedValue(file, key); value != nil {
			assignValue(v.FieldByIndex(sf.Index), value)
		}
	}
	return nil
}

func applyEnv(v reflect.Value, pinned map[string]bool) {
	for _, sf := range reflect.VisibleFields(v.Type()) {
		if pinned[fieldNameToFlag(sf.Name)] {
			continue
		}
		suffix := sf.Tag.Get("env")
		if suffix == "" {
			continue
		}
		if value := os.Getenv(EnvPrefix + suffix); value != "" {
			assignString(v.FieldByIndex(sf.Index), value)
		}
	}
}

// fieldNameToFlag converts a struct field name to its CLI flag name.
// Example: "GracePeriod" -> "grace-period".
func fieldNameToFlag(fieldName string) string {
	var b strings.Builder
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// nestedValue walks a parsed TOML tree along a dot-notation path.
func nestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := data[part].(map[string]any)
		if !ok {
			return nil
		}
		data = next
	}
	return data[parts[len(parts)-1]]
}

// assignValue sets field from a decoded TOML value, ignoring values of
// the wrong type.
func assignValue(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int:
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		arr, ok := value.([]any)
		if !ok {
			return
		}
		out := make([]string, len(arr))
		for i, item := range arr {
			if s, ok := item.(string); ok {
				out[i] = s
			}
		}
		field.Set(reflect.ValueOf(out))
	}
}

// assignString sets field from an environment string, parsing it to the
// field's type. String slices split on commas.
func assignString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(n)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(value, ",")
		out := make([]string, len(parts))
		for i, part := range parts {
			out[i] = strings.TrimSpace(part)
		}
		field.Set(reflect.ValueOf(out))
	}
}

// LoadLoggingConfig reads the [logging] table from a TOML config file.
// It returns working defaults when the file is missing or unparsable so
// logging always comes up.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}
	if configPath == "" {
		return cfg
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}
	var raw struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg
	}

	// level and format are reserved keys; every other key is a
	// per-module level override.
	for key, value := range raw.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}
