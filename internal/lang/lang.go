// ============================================================================
// Death message templates
// ============================================================================
//
// Package: internal/lang
// Purpose: Extract death-message templates from a game language file.
//
// The language file maps translation keys to message templates. Every entry
// whose key carries the "death." marker describes a way a player can die,
// with the victim substituted for the "%1$s" token:
//
//   "death.attack.anvil": "%1$s was squashed by a falling anvil"
//
// The template we keep is the literal text following the first victim token,
// truncated at the first character that is not a letter, digit, whitespace
// or apostrophe (later tokens such as "%2$s" name the attacker and vary per
// death). A death line in the server log then matches when its message
// portion starts with one of these templates.
//
// Both the JSON asset format and the older line-based "key=value" format are
// supported; the file is sniffed, not declared.
//
// ============================================================================

package lang

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

var log = slog.Default()

const (
	deathMarker = "death."
	victimToken = "%1$s"
)

// Load reads the language file at path and returns the death-message
// templates it defines, in file order.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lang file: %w", err)
	}

	var templates []string
	if isJSONObject(data) {
		templates = parseJSON(data)
	} else {
		templates, err = parseLines(data)
		if err != nil {
			return nil, err
		}
	}

	if len(templates) == 0 {
		log.Warn("no death messages found in lang file", "path", path)
	} else {
		log.Info("loaded death messages", "path", path, "count", len(templates))
	}
	return templates, nil
}

func isJSONObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{' && gjson.ValidBytes(trimmed)
}

// parseJSON walks a JSON language asset and extracts templates from every
// "death.*" key.
func parseJSON(data []byte) []string {
	var templates []string
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		if strings.HasPrefix(key.String(), deathMarker) {
			if tpl, ok := extract(value.String()); ok {
				templates = append(templates, tpl)
			}
		}
		return true
	})
	return templates
}

// parseLines scans a line-based language file for lines carrying the death
// marker anywhere on the line.
func parseLines(data []byte) ([]string, error) {
	var templates []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, deathMarker) {
			continue
		}
		if tpl, ok := extract(line); ok {
			templates = append(templates, tpl)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan lang file: %w", err)
	}
	return templates, nil
}

// extract returns the template text following the first victim token,
// truncated at the first character outside letters/digits/whitespace/
// apostrophe and trimmed of trailing whitespace.
func extract(s string) (string, bool) {
	idx := strings.Index(s, victimToken)
	if idx < 0 {
		return "", false
	}
	msg := s[idx+len(victimToken):]

	end := strings.IndexFunc(msg, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '\'')
	})
	if end >= 0 {
		msg = msg[:end]
	}
	return strings.TrimRightFunc(msg, unicode.IsSpace), true
}
