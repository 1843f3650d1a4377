package config

import (
	"sort"
	"strconv"

	"github.com/thinktide/tasks/internal/db"
)

const (
	KeyOutputFormat = "output.format"
	KeyPRLimit      = "pr.limit"
)

var OutputFormats = []string{"table", "json", "csv", "yaml"}

var defaults = map[string]string{
	KeyOutputFormat: "table",
	KeyPRLimit:      "10",
}

func Get(key string) (string, error) {
	value, err := db.GetConfig(key)
	if err != nil {
		return "", err
	}
	if value == "" {
		if def, ok := defaults[key]; ok {
			return def, nil
		}
	}
	return value, nil
}

func Set(key, value string) error {
	return db.SetConfig(key, value)
}

func List() (map[string]string, error) {
	stored, err := db.ListConfig()
	if err != nil {
		return nil, err
	}

	// Merge with defaults
	result := make(map[string]string)
	for k, v := range defaults {
		result[k] = v
	}
	for k, v := range stored {
		result[k] = v
	}
	return result, nil
}

// GetInt returns the stored integer for key, falling back to its default when
// the stored value does not parse.
func GetInt(key string) (int, error) {
	value, err := Get(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return strconv.Atoi(defaults[key])
	}
	return n, nil
}

func ValidKeys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func IsValidKey(key string) bool {
	_, ok := defaults[key]
	return ok
}

func IsValidFormat(format string) bool {
	for _, f := range OutputFormats {
		if f == format {
			return true
		}
	}
	return false
}
