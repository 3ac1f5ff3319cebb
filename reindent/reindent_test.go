package reindent

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func TestReindentFunctionBoundaries(t *testing.T) {
	got := Reindent("function f(a,b){return a+b;}")
	assert.Equal(t, "function f(a,\nb){\n    return a+b;\n}\n", got)
}

func TestReindentPreservesContent(t *testing.T) {
	inputs := []string{
		"function f(a,b){return a+b;}",
		`var a={x:[1,2,{y:"}"}],z:'[;'};if(a){b()}else{c()}`,
		"!function(){var e=`a${b};c`,t=/x/g;for(;;){break}}();",
		"a;/* {;} */b;// trailing, comment\nc();",
		"}}}{{{",
		`x="unterminated;{`,
		"",
		"   leading   spaces ;  and\ttabs\t;",
		"é={ü:'ß;',ñ:[\"日本\",1]};",
	}

	for _, in := range inputs {
		out := Reindent(in)
		assert.Equal(t, stripSpace(in), stripSpace(out), "input %q", in)
	}
}

func TestReindentStringLiteralImmunity(t *testing.T) {
	got := Reindent(`const x = "a;b{c}d,e";`)
	assert.Contains(t, got, `"a;b{c}d,e"`)
	assert.Equal(t, "const x = \"a;b{c}d,e\";\n", got)

	got = Reindent(`f('{[;,]}',` + "`x;${y},{z}`" + `)`)
	assert.Contains(t, got, `'{[;,]}'`)
	assert.Contains(t, got, "`x;${y},{z}`")
}

func TestReindentEscapedQuote(t *testing.T) {
	got := Reindent(`"a\"b";x`)
	assert.Equal(t, "\"a\\\"b\";\nx\n", got)

	// An escaped backslash does not escape the closing quote.
	got = Reindent(`'a\\';b`)
	assert.Equal(t, "'a\\\\';\nb\n", got)
}

func TestReindentDepthNeverNegative(t *testing.T) {
	var got string
	require.NotPanics(t, func() { got = Reindent("}}}") })
	assert.Equal(t, "}\n}\n}\n", got)

	for _, line := range strings.Split(Reindent("]}{a}"), "\n") {
		assert.False(t, strings.HasPrefix(line, " ") && strings.TrimSpace(line) == "}", "line %q", line)
	}
}

func TestReindentCollapsesBlankLines(t *testing.T) {
	got := Reindent("a;\n\n\n\n\nb;")
	assert.Equal(t, "a;\n\nb;\n", got)
	assert.NotContains(t, got, "\n\n\n")

	got = Reindent("{\n\n\n;\n\n\n}")
	assert.NotContains(t, got, "\n\n\n")
}

func TestReindentKeepsBlankLinesInsideTemplates(t *testing.T) {
	in := "x=`a\n\n\n\nb`;"
	assert.Equal(t, "x=`a\n\n\n\nb`;\n", Reindent(in))
}

func TestReindentDeterministic(t *testing.T) {
	in := `!function(e){var t={};function n(r){if(t[r])return t[r].exports}n.m=e,n.c=t}([function(e,t){"use strict";e.exports="{;}"}]);`
	assert.Equal(t, Reindent(in), Reindent(in))
}

func TestReindentComments(t *testing.T) {
	assert.Equal(t, "// a;b{\nc;\n", Reindent("// a;b{\nc;"))
	assert.Equal(t, "/* {;} */a;\n", Reindent("/* {;} */a;"))
	assert.Equal(t, "/*/ ; */b;\n", Reindent("/*/ ; */b;"))
}

func TestReindentRegexCharacterClass(t *testing.T) {
	tests := map[string]string{
		"x=/[//]/;if(a){b;c}": "x=/[\n    //\n]/;\nif(a){\n    b;\n    c\n}\n",
		"x=/[/*]/;if(a){b}":   "x=/[\n    /*\n]/;\nif(a){\n    b\n}\n",
		"r=/[^/*]+/g;x()":     "r=/[\n    ^/*\n]+/g;\nx()\n",
	}
	for in, want := range tests {
		got := Reindent(in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, stripSpace(in), stripSpace(got), in)
	}
}

func TestReindentDropsLeadingWhitespace(t *testing.T) {
	assert.Equal(t, "a;\nb;\n", Reindent("a;   b;"))
	assert.Equal(t, "{\n    a\n}\n", Reindent("{\n      a\n}"))
}

func TestReindentUnterminated(t *testing.T) {
	assert.Equal(t, `x="abc;  `, Reindent(`x="abc;  `))
	assert.Equal(t, "a;\n/* open {", Reindent("a;/* open {"))
}

func TestReindentWithCustomIndent(t *testing.T) {
	assert.Equal(t, "{\n\ta\n}\n", ReindentWith("{a}", "\t"))
	assert.Equal(t, "[\n    1,\n    2\n]\n", ReindentWith("[1,2]", ""))
}

func TestReindentEmpty(t *testing.T) {
	assert.Equal(t, "", Reindent(""))
	assert.Equal(t, "", Reindent(" \n\n\t"))
}
