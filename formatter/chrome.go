package formatter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/tomyedwab/jsprettify/config"
)

// Chrome formats with prettier's standalone build inside a headless browser
type Chrome struct {
	ExecPath string
	Headless bool
	Scripts  []string
	Options  config.PrettierConfig
}

// NewChrome creates the browser strategy for the browser at execPath
func NewChrome(execPath string, cfg config.ChromeConfig, opts config.PrettierConfig) *Chrome {
	return &Chrome{
		ExecPath: execPath,
		Headless: cfg.Headless,
		Scripts:  cfg.Scripts,
		Options:  opts,
	}
}

func (*Chrome) Name() string { return config.StrategyChrome }

func (c *Chrome) Format(ctx context.Context, source string) (string, error) {
	loadExpr, err := loadScriptsExpression(c.Scripts)
	if err != nil {
		return "", err
	}
	formatExpr, err := formatExpression(source, c.Options)
	if err != nil {
		return "", err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(c.ExecPath),
		chromedp.Flag("headless", c.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var loaded bool
	var output string
	err = chromedp.Run(browserCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return compileCheck(ctx, source)
		}),
		chromedp.Evaluate(loadExpr, &loaded, awaitPromise),
		chromedp.Evaluate(formatExpr, &output, awaitPromise),
	)
	if err != nil {
		return "", fmt.Errorf("browser formatting failed: %w", err)
	}
	return output, nil
}

// compileCheck asks the browser to compile the source without running it
func compileCheck(ctx context.Context, source string) error {
	_, exception, err := runtime.CompileScript(source, "inline-script.js", false).Do(ctx)
	if err != nil {
		return err
	}
	if exception != nil {
		return fmt.Errorf("syntax error at %d:%d: %s", exception.LineNumber+1, exception.ColumnNumber+1, exceptionText(exception))
	}
	return nil
}

func exceptionText(e *runtime.ExceptionDetails) string {
	if e.Exception != nil && e.Exception.Description != "" {
		return e.Exception.Description
	}
	return e.Text
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// loadScriptsExpression loads each script in order into the page
func loadScriptsExpression(scripts []string) (string, error) {
	if len(scripts) == 0 {
		return "", fmt.Errorf("no formatter scripts configured")
	}
	list, err := json.Marshal(scripts)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(async () => {
	for (const src of %s) {
		await new Promise((resolve, reject) => {
			const s = document.createElement("script");
			s.src = src;
			s.onload = resolve;
			s.onerror = () => reject(new Error("failed to load " + src));
			document.head.appendChild(s);
		});
	}
	return true;
})()`, list), nil
}

// formatExpression calls prettier.format with every loaded plugin
func formatExpression(source string, opts config.PrettierConfig) (string, error) {
	src, err := json.Marshal(source)
	if err != nil {
		return "", err
	}
	options, err := json.Marshal(map[string]interface{}{
		"parser":      opts.Parser,
		"semi":        opts.Semi,
		"singleQuote": opts.SingleQuote,
		"tabWidth":    opts.TabWidth,
		"printWidth":  opts.PrintWidth,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		`prettier.format(%s, Object.assign(%s, {plugins: Object.values(globalThis.prettierPlugins || {})}))`,
		src, options), nil
}
