// Package reindent re-indents minified JavaScript with a single textual pass.
//
// It is a heuristic and not a formatter: line breaks are inserted after
// '{', '[', ';' and ',' and before '}' and ']', while string literals,
// template literals and comments are copied through untouched. Only
// whitespace is ever added or removed.
package reindent

// DefaultIndent is the indentation unit used by Reindent.
const DefaultIndent = "    "

// lexContext is what the scanner is currently inside of.
type lexContext int

const (
	contextNone lexContext = iota
	contextSingle
	contextDouble
	contextBacktick
	contextLineComment
	contextBlockComment
)

// closer returns the quote byte that ends a quote context.
func (c lexContext) closer() byte {
	switch c {
	case contextSingle:
		return '\''
	case contextDouble:
		return '"'
	case contextBacktick:
		return '`'
	default:
		return 0
	}
}

func quoteContext(c byte) lexContext {
	switch c {
	case '\'':
		return contextSingle
	case '"':
		return contextDouble
	default:
		return contextBacktick
	}
}

// Reindent re-indents source using DefaultIndent. It never fails.
func Reindent(source string) string {
	return ReindentWith(source, DefaultIndent)
}

// ReindentWith re-indents source using indent as the indentation unit.
// An empty indent selects DefaultIndent.
func ReindentWith(source, indent string) string {
	if indent == "" {
		indent = DefaultIndent
	}

	w := &writer{
		out:       make([]byte, 0, len(source)+len(source)/4),
		indent:    indent,
		lineStart: true,
	}

	ctx := contextNone
	escaped := false
	commentStart := 0
	// afterNewline is set while only whitespace follows a source newline.
	afterNewline := false

	for i := 0; i < len(source); i++ {
		c := source[i]

		switch ctx {
		case contextSingle, contextDouble, contextBacktick:
			w.raw(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == ctx.closer():
				ctx = contextNone
			}
			continue

		case contextLineComment:
			if c == '\n' {
				ctx = contextNone
				w.breakLine()
				afterNewline = true
				continue
			}
			w.raw(c)
			continue

		case contextBlockComment:
			w.raw(c)
			// "*/" only closes once it is past the opening "/*".
			if c == '/' && i-1 >= commentStart+2 && source[i-1] == '*' {
				ctx = contextNone
			}
			continue
		}

		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			afterNewline = false
		}

		switch c {
		case '\'', '"', '`':
			w.emit(c)
			ctx = quoteContext(c)

		case '/':
			w.emit(c)
			if i+1 < len(source) && !opensClass(source, i) {
				switch source[i+1] {
				case '/':
					ctx = contextLineComment
				case '*':
					ctx = contextBlockComment
					commentStart = i
				}
			}

		case '\\':
			// Outside strings a backslash only appears in regex literals and
			// identifier escapes; keep the escaped byte away from the scanner.
			w.emit(c)
			if i+1 < len(source) && source[i+1] != '\n' {
				i++
				w.raw(source[i])
			}

		case '{', '[':
			w.emit(c)
			w.depth++
			w.breakLine()

		case '}', ']':
			if w.depth > 0 {
				w.depth--
			}
			if !w.lineStart {
				w.breakLine()
			}
			w.emit(c)

		case ';', ',':
			w.emit(c)
			w.breakLine()

		case '\n':
			// A newline on an already empty line is only kept when the
			// source itself has a blank line there.
			if !w.lineStart || afterNewline {
				w.breakLine()
			}
			afterNewline = true

		case ' ', '\t', '\r':
			if !w.lineStart {
				w.raw(c)
			}

		default:
			w.emit(c)
		}
	}

	// Unterminated strings and block comments keep their trailing bytes.
	if ctx == contextNone || ctx == contextLineComment {
		w.finish()
	}

	return string(w.out)
}

// opensClass reports whether source[i] is the first byte of a bracket
// expression such as the "/*" in /[/*]/ or the "//" in /[^//]/. A comment
// never starts there in practice, a regex character class often does.
func opensClass(source string, i int) bool {
	switch {
	case i >= 1 && source[i-1] == '[':
		return true
	case i >= 2 && source[i-2] == '[' && source[i-1] == '^':
		return true
	}
	return false
}
