package reindent

// writer is the output buffer of a single Reindent call. Indentation is
// written lazily before the first content byte of a line, so a line break
// never leaves indentation behind on an empty line.
type writer struct {
	out       []byte
	indent    string
	depth     int
	lineStart bool
}

// emit appends c as content, indenting first when the line is fresh.
func (w *writer) emit(c byte) {
	if w.lineStart {
		for i := 0; i < w.depth; i++ {
			w.out = append(w.out, w.indent...)
		}
		w.lineStart = false
	}
	w.out = append(w.out, c)
}

// raw appends c verbatim. Used for the inside of strings and comments.
func (w *writer) raw(c byte) {
	w.out = append(w.out, c)
	w.lineStart = false
}

// breakLine ends the current line. At most one blank line is kept in a row
// and the output never starts with a blank line.
func (w *writer) breakLine() {
	w.trimLine()
	w.lineStart = true

	n := len(w.out)
	if n == 0 {
		return
	}
	if n >= 2 && w.out[n-1] == '\n' && w.out[n-2] == '\n' {
		return
	}
	w.out = append(w.out, '\n')
}

// trimLine drops spaces, tabs and carriage returns at the end of the line.
func (w *writer) trimLine() {
	n := len(w.out)
	for n > 0 && isBlank(w.out[n-1]) {
		n--
	}
	w.out = w.out[:n]
}

// finish trims trailing whitespace and terminates the output with one
// newline.
func (w *writer) finish() {
	n := len(w.out)
	for n > 0 && (isBlank(w.out[n-1]) || w.out[n-1] == '\n') {
		n--
	}
	w.out = w.out[:n]
	if n > 0 {
		w.out = append(w.out, '\n')
	}
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}
