package keymap

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

var modifierNames = map[string]byte{
	"CTRL":    ModCtrl,
	"CONTROL": ModCtrl,
	"SHIFT":   ModShift,
	"ALT":     ModAlt,
	"GUI":     ModGUI,
	"WIN":     ModGUI,
	"WINDOWS": ModGUI,
	"META":    ModGUI,
	"COMMAND": ModGUI,
	"RCTRL":   ModRCtrl,
	"RSHIFT":  ModRShift,
	"RALT":    ModRAlt,
	"ALTGR":   ModRAlt,
	"RGUI":    ModRGUI,
}

var keyNames = map[string]byte{
	"ENTER":       KeyEnter,
	"RETURN":      KeyEnter,
	"ESC":         KeyEscape,
	"ESCAPE":      KeyEscape,
	"TAB":         KeyTab,
	"SPACE":       KeySpace,
	"BACKSPACE":   KeyBackspace,
	"DELETE":      KeyDelete,
	"DEL":         KeyDelete,
	"INSERT":      KeyInsert,
	"HOME":        KeyHome,
	"END":         KeyEnd,
	"PAGEUP":      KeyPageUp,
	"PAGEDOWN":    KeyPageDown,
	"UP":          KeyUp,
	"DOWN":        KeyDown,
	"LEFT":        KeyLeft,
	"RIGHT":       KeyRight,
	"CAPSLOCK":    KeyCapsLock,
	"NUMLOCK":     KeyNumLock,
	"SCROLLLOCK":  KeyScrollLock,
	"PRINTSCREEN": KeyPrintScreen,
	"PAUSE":       KeyPause,
	"MENU":        KeyMenu,
	"APP":         KeyMenu,
}

func init() {
	for i := 0; i < 12; i++ {
		keyNames[fmt.Sprintf("F%d", i+1)] = KeyF1 + byte(i)
	}
}

// Combo is a chord of modifiers plus up to six keys pressed together.
type Combo struct {
	Modifiers byte
	Keys      []byte
}

// ParseCombo parses whitespace separated tokens such as "CTRL ALT DELETE"
// or "GUI r". Names are case-insensitive; single characters are resolved
// through the layout and contribute their own modifiers.
func ParseCombo(l Layout, text string) (Combo, error) {
	var c Combo
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return c, fmt.Errorf("%w: empty combo", ErrUnknownKey)
	}

	for _, tok := range tokens {
		upper := strings.ToUpper(tok)
		if m, ok := modifierNames[upper]; ok {
			c.Modifiers |= m
			continue
		}
		if k, ok := keyNames[upper]; ok {
			c.Keys = append(c.Keys, k)
			continue
		}
		if utf8.RuneCountInString(tok) == 1 {
			r, _ := utf8.DecodeRuneInString(tok)
			s, ok := l.Lookup(r)
			if !ok {
				return Combo{}, fmt.Errorf("%w: %q in layout %s", ErrUnmappable, r, l.Name())
			}
			c.Modifiers |= s.Modifiers
			c.Keys = append(c.Keys, s.Key)
			continue
		}
		return Combo{}, fmt.Errorf("%w: %q", ErrUnknownKey, tok)
	}

	if len(c.Keys) > 6 {
		return Combo{}, ErrTooMany
	}
	return c, nil
}
