package ux

import (
	"errors"
	"strings"

	smitherrors "github.com/felixgeelhaar/smith/internal/errors"
)

// RenderError formats err for the terminal. Coded errors show their code,
// cause and suggestions on separate lines.
func RenderError(err error, styles Styles) string {
	if err == nil {
		return ""
	}

	var smithErr *smitherrors.SmithError
	if !errors.As(err, &smithErr) {
		return styles.Fail.Render("Error:") + " " + err.Error()
	}

	var b strings.Builder
	b.WriteString(styles.Fail.Render("Error [" + string(smithErr.Code) + "]:"))
	b.WriteString(" ")
	b.WriteString(smithErr.Message)

	if smithErr.Cause != nil {
		b.WriteString("\n  ")
		b.WriteString(styles.Muted.Render("cause: " + causeText(smithErr.Cause)))
	}
	if len(smithErr.Suggestions) > 0 {
		b.WriteString("\n\n")
		b.WriteString(styles.Label.Render("Suggestions:"))
		for _, s := range smithErr.Suggestions {
			b.WriteString("\n  • ")
			b.WriteString(s)
		}
	}
	if smithErr.DocsURL != "" {
		b.WriteString("\n\n")
		b.WriteString(styles.Muted.Render("Documentation: " + smithErr.DocsURL))
	}
	return b.String()
}

// causeText flattens a cause to its first line; nested coded errors would
// otherwise repeat their own suggestions.
func causeText(err error) string {
	var nested *smitherrors.SmithError
	if errors.As(err, &nested) {
		return "[" + string(nested.Code) + "] " + nested.Message
	}
	text, _, _ := strings.Cut(err.Error(), "\n")
	return text
}
