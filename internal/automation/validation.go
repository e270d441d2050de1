package automation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/yuin/gopher-lua/parse"
)

// ValidateScript checks that script is acceptable for its type.
// Every failure wraps ErrValidation.
//
// Lua scripts are parsed but never executed. Shell scripts only get the
// emptiness check; /bin/sh -n would accept almost anything.
func ValidateScript(script string, scriptType ScriptType) error {
	if strings.TrimSpace(script) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyScript)
	}

	switch scriptType {
	case ScriptShell:
		return nil
	case ScriptLua:
		if _, err := parse.Parse(strings.NewReader(script), "<script>"); err != nil {
			return fmt.Errorf("%w: %w: %v", ErrValidation, ErrInvalidSyntax, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrUnknownScriptType, scriptType)
	}
}

// ContentHash returns the lowercase hex SHA-256 of script.
func ContentHash(script string) string {
	sum := sha256.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}
