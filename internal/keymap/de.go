package keymap

func init() {
	register(deLayout())
}

func deLayout() *table {
	t := &table{name: "de", strokes: make(map[rune]Stroke, 110)}

	addLetters(t, 1)
	addDigits(t)
	addWhitespace(t)

	shifted := map[rune]byte{
		'!': 0x1E, '"': 0x1F, '§': 0x20, '$': 0x21, '%': 0x22,
		'&': 0x23, '/': 0x24, '(': 0x25, ')': 0x26, '=': 0x27,
		'?': 0x2D, '`': 0x2E, 'Ü': 0x2F, '*': 0x30, '\'': 0x32,
		'Ö': 0x33, 'Ä': 0x34, '°': 0x35, ';': 0x36, ':': 0x37, '_': 0x38,
		'>': 0x64,
	}
	plain := map[rune]byte{
		'ß': 0x2D, '´': 0x2E, 'ü': 0x2F, '+': 0x30, '#': 0x32,
		'ö': 0x33, 'ä': 0x34, '^': 0x35, ',': 0x36, '.': 0x37, '-': 0x38,
		'<': 0x64,
	}
	altGr := map[rune]byte{
		'²': 0x1F, '³': 0x20, '{': 0x24, '[': 0x25, ']': 0x26, '}': 0x27,
		'\\': 0x2D, '@': 0x14, '€': 0x08, '~': 0x30, '|': 0x64, 'µ': 0x10,
	}
	for r, k := range plain {
		t.strokes[r] = Stroke{Key: k}
	}
	for r, k := range shifted {
		t.strokes[r] = Stroke{Modifiers: ModShift, Key: k}
	}
	for r, k := range altGr {
		t.strokes[r] = Stroke{Modifiers: ModRAlt, Key: k}
	}
	return t
}
