package lexicon

import "fmt"

// ConfigError reports a malformed drug list or class definition.
// It is fatal: no note is analyzed against a lexicon that failed to build.
type ConfigError struct {
	Source string // class name or file path
	Line   int    // 1-based, 0 when not tied to a line
	Msg    string
	Err    error
}

func (e *ConfigError) Error() string {
	prefix := "lexicon config"
	if e.Source != "" {
		prefix += ": " + e.Source
		if e.Line > 0 {
			prefix += fmt.Sprintf(":%d", e.Line)
		}
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
