// ============================================================================
// Log line classifier
// ============================================================================
//
// Package: internal/classify
// Purpose: Turn one normalized server log line into a typed event.
//
// The server log has no formal grammar; classification is positional:
//
//   [12:34:56] [Server thread/INFO]: Steve was slain by a zombie
//   \_________/\___________________/ \___/\_____________________/
//    bracket 1      bracket 2        player       message
//
//  1. Strip bracket_count leading [...] segments (everything up to and
//     including each closing bracket). Fewer brackets than required means
//     the line is ignored.
//  2. Skip forward to the first player-name character; none means ignored.
//  3. The maximal run of name characters is the candidate player; the rest
//     of the line is the message.
//  4. Players not on the allow-list are ignored unless allow_all is set.
//  5. Ignore-phrases take priority over death templates: a message matching
//     both is ignored.
//  6. A message starting with a death template is a death; the literal
//     " joined the game" / " left the game" suffixes are join/leave.
//
// All matching is exact, case-sensitive prefix comparison.
//
// ============================================================================

package classify

import (
	"strings"

	"github.com/okvist/hardwarden/pkg/types"
)

// Rules holds the immutable classification context for one session.
type Rules struct {
	BracketCount   int
	Players        map[string]struct{}
	AllowAll       bool
	IgnorePhrases  []string
	DeathTemplates []string
}

// Literal message suffixes the server emits for presence changes.
const (
	joinedSuffix = " joined the game"
	leftSuffix   = " left the game"
)

// isNameChar reports whether c may appear in a player name: ASCII letters,
// digits, underscore and hyphen.
func isNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '_' || c == '-'
}

// Classify maps one log line onto an event. It is a pure function of the
// line and the rules.
func Classify(line string, rules Rules) types.Event {
	ignored := types.Event{Kind: types.EventIgnored}

	// 1. Strip the leading [...] segments.
	for i := 0; i < rules.BracketCount; i++ {
		bracket := strings.IndexByte(line, ']')
		if bracket < 0 {
			return ignored
		}
		line = line[bracket+1:]
	}

	// 2. Advance to the first name character.
	start := strings.IndexFunc(line, func(r rune) bool {
		return r < 128 && isNameChar(byte(r))
	})
	if start < 0 {
		return ignored
	}
	line = line[start:]

	// 3. The player name is the maximal run of name characters.
	msgStart := len(line)
	for i := 0; i < len(line); i++ {
		if !isNameChar(line[i]) {
			msgStart = i
			break
		}
	}
	player, msg := line[:msgStart], line[msgStart:]

	// 4. Allow-list check.
	if !rules.AllowAll {
		if _, ok := rules.Players[player]; !ok {
			return ignored
		}
	}

	// 5. Ignore-phrases suppress everything, death templates included.
	for _, phrase := range rules.IgnorePhrases {
		if strings.HasPrefix(msg, phrase) {
			return ignored
		}
	}

	// 6. Death templates, then the presence suffixes.
	for _, tpl := range rules.DeathTemplates {
		if strings.HasPrefix(msg, tpl) {
			return types.Event{Kind: types.EventDeath, Player: types.PlayerID(player)}
		}
	}
	if strings.HasPrefix(msg, joinedSuffix) {
		return types.Event{Kind: types.EventJoin, Player: types.PlayerID(player)}
	}
	if strings.HasPrefix(msg, leftSuffix) {
		return types.Event{Kind: types.EventLeave, Player: types.PlayerID(player)}
	}
	return ignored
}
