// Package seniority defines the ordered seniority scale shared by candidates and jobs.
package seniority

import (
	"fmt"
	"strings"
	"unicode"
)

// Level is an ordered seniority level. The zero value means unknown.
type Level int

const (
	Unknown Level = iota
	Intern
	Junior
	Mid
	Senior
	Staff
)

// Levels lists every known level in ascending order.
var Levels = []Level{Intern, Junior, Mid, Senior, Staff}

var names = map[Level]string{
	Unknown: "unknown",
	Intern:  "intern",
	Junior:  "junior",
	Mid:     "mid",
	Senior:  "senior",
	Staff:   "staff",
}

var aliases = map[string]Level{
	"intern":       Intern,
	"internship":   Intern,
	"trainee":      Intern,
	"entry":        Intern,
	"graduate":     Intern,
	"junior":       Junior,
	"jr":           Junior,
	"mid":          Mid,
	"middle":       Mid,
	"intermediate": Mid,
	"senior":       Senior,
	"sr":           Senior,
	"staff":        Staff,
	"lead":         Staff,
	"principal":    Staff,
}

func (l Level) String() string {
	if name, ok := names[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

func (l Level) Known() bool { return l >= Intern && l <= Staff }

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Parse maps a level name or alias (case-insensitive, "mid-level" style suffixes allowed) to a
// Level. An empty string yields Unknown without error.
func Parse(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "unknown" {
		return Unknown, nil
	}
	s = strings.TrimSuffix(s, "-level")
	s = strings.TrimSuffix(s, " level")
	if level, ok := aliases[s]; ok {
		return level, nil
	}
	return Unknown, fmt.Errorf("unknown seniority level %q", s)
}

// Detect returns the first level named in free text such as a job title, or Unknown.
func Detect(text string) Level {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, word := range words {
		if level, ok := aliases[word]; ok {
			return level
		}
	}
	return Unknown
}

// Window is an inclusive range of levels.
type Window struct {
	Min Level
	Max Level
}

// Around returns the window of levels within tolerance steps of l, clamped to the known scale.
func Around(l Level, tolerance int) Window {
	if tolerance < 0 {
		tolerance = 0
	}
	if tolerance > len(Levels) {
		tolerance = len(Levels)
	}
	lo := l - Level(tolerance)
	hi := l + Level(tolerance)
	if lo < Intern {
		lo = Intern
	}
	if hi > Staff {
		hi = Staff
	}
	return Window{Min: lo, Max: hi}
}

func (w Window) Contains(l Level) bool {
	return l >= w.Min && l <= w.Max
}
