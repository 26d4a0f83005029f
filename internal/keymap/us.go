package keymap

func init() {
	register(usLayout())
}

func usLayout() *table {
	t := &table{name: "us", strokes: make(map[rune]Stroke, 100)}

	addLetters(t, 0)
	addDigits(t)
	addWhitespace(t)

	shifted := map[rune]byte{
		'!': 0x1E, '@': 0x1F, '#': 0x20, '$': 0x21, '%': 0x22,
		'^': 0x23, '&': 0x24, '*': 0x25, '(': 0x26, ')': 0x27,
		'_': 0x2D, '+': 0x2E, '{': 0x2F, '}': 0x30, '|': 0x31,
		':': 0x33, '"': 0x34, '~': 0x35, '<': 0x36, '>': 0x37, '?': 0x38,
	}
	plain := map[rune]byte{
		'-': 0x2D, '=': 0x2E, '[': 0x2F, ']': 0x30, '\\': 0x31,
		';': 0x33, '\'': 0x34, '`': 0x35, ',': 0x36, '.': 0x37, '/': 0x38,
	}
	for r, k := range plain {
		t.strokes[r] = Stroke{Key: k}
	}
	for r, k := range shifted {
		t.strokes[r] = Stroke{Modifiers: ModShift, Key: k}
	}
	return t
}

// addLetters maps a-z and A-Z. swap exchanges the y and z positions.
func addLetters(t *table, swap byte) {
	for i := 0; i < 26; i++ {
		key := byte(0x04 + i)
		r := rune('a' + i)
		if swap != 0 {
			switch r {
			case 'y':
				key = 0x1D
			case 'z':
				key = 0x1C
			}
		}
		t.strokes[r] = Stroke{Key: key}
		t.strokes[r-'a'+'A'] = Stroke{Modifiers: ModShift, Key: key}
	}
}

func addDigits(t *table) {
	for i := 1; i <= 9; i++ {
		t.strokes[rune('0'+i)] = Stroke{Key: byte(0x1E + i - 1)}
	}
	t.strokes['0'] = Stroke{Key: 0x27}
}

func addWhitespace(t *table) {
	t.strokes[' '] = Stroke{Key: KeySpace}
	t.strokes['\n'] = Stroke{Key: KeyEnter}
	t.strokes['\t'] = Stroke{Key: KeyTab}
	t.strokes['\b'] = Stroke{Key: KeyBackspace}
}
