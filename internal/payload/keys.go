package payload

import (
	"fmt"
	"strconv"

	"hidject/internal/keymap"
	"hidject/internal/protocol"
)

// Keys replays a precomputed list of keyboard reports.
type Keys struct {
	target  Target
	reports []protocol.KeyboardReport
	cursor  int
}

func newKeys(target Target, reports []protocol.KeyboardReport) *Keys {
	return &Keys{target: target, reports: reports}
}

func (k *Keys) Next() (protocol.Frame, error) {
	if k.cursor >= len(k.reports) {
		return protocol.Frame{}, ErrExhausted
	}
	f, err := k.target.keyboard(k.reports[k.cursor])
	if err != nil {
		return protocol.Frame{}, err
	}
	k.cursor++
	return f, nil
}

func (k *Keys) Reset() { k.cursor = 0 }

// Len returns the number of reports in the sequence.
func (k *Keys) Len() int { return len(k.reports) }

func down(mods byte, keys ...byte) protocol.KeyboardReport {
	r := protocol.KeyboardReport{Modifiers: mods}
	copy(r.Keys[:], keys)
	return r
}

// NewPress presses a combo once and releases it.
func NewPress(target Target, layout keymap.Layout, combo string) (*Keys, error) {
	c, err := keymap.ParseCombo(layout, combo)
	if err != nil {
		return nil, err
	}
	return newKeys(target, []protocol.KeyboardReport{down(c.Modifiers, c.Keys...), {}}), nil
}

// NewString types text with a press and release per rune.
func NewString(target Target, layout keymap.Layout, text string) (*Keys, error) {
	strokes, err := keymap.Strokes(layout, text)
	if err != nil {
		return nil, err
	}
	reports := make([]protocol.KeyboardReport, 0, 2*len(strokes))
	for _, s := range strokes {
		reports = append(reports, down(s.Modifiers, s.Key), protocol.KeyboardReport{})
	}
	return newKeys(target, reports), nil
}

// NewAltString types text as Windows ALT codes: hold ALT, tap the numpad
// digits of "0<code>", release. Only runes up to 255 have a code.
func NewAltString(target Target, text string) (*Keys, error) {
	var reports []protocol.KeyboardReport
	for _, r := range text {
		if r > 255 {
			return nil, fmt.Errorf("%w: %q has no alt code", keymap.ErrUnmappable, r)
		}
		reports = append(reports, down(keymap.ModAlt))
		for _, d := range "0" + strconv.Itoa(int(r)) {
			reports = append(reports,
				down(keymap.ModAlt, keymap.KeypadDigit(int(d-'0'))),
				down(keymap.ModAlt),
			)
		}
		reports = append(reports, protocol.KeyboardReport{})
	}
	return newKeys(target, reports), nil
}
