package formatter

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/tomyedwab/jsprettify/config"
)

// ESBuild parses the source and prints it back unminified. Comments other
// than legal comments are not preserved.
type ESBuild struct {
	// Sourcefile names the input in error messages
	Sourcefile string
}

func (ESBuild) Name() string { return config.StrategyESBuild }

func (e ESBuild) Format(_ context.Context, source string) (string, error) {
	sourcefile := e.Sourcefile
	if sourcefile == "" {
		sourcefile = "input.js"
	}

	result := api.Transform(source, api.TransformOptions{
		Loader:        api.LoaderJS,
		Sourcefile:    sourcefile,
		Charset:       api.CharsetUTF8,
		LegalComments: api.LegalCommentsInline,
		LogLevel:      api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("parse failed: %s", describeMessages(result.Errors))
	}
	return string(result.Code), nil
}

// describeMessages renders the first esbuild error and a count of the rest
func describeMessages(msgs []api.Message) string {
	first := msgs[0]
	var b strings.Builder
	if loc := first.Location; loc != nil {
		fmt.Fprintf(&b, "%s:%d:%d: ", loc.File, loc.Line, loc.Column)
	}
	b.WriteString(first.Text)
	if len(msgs) > 1 {
		fmt.Fprintf(&b, " (and %d more)", len(msgs)-1)
	}
	return b.String()
}
