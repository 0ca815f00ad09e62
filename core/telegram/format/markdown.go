package format

import "strings"

var markdownEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"[", `\[`,
	"`", "\\`",
)

// EscapeMarkdown escapes Telegram Markdown (v1) special characters in
// user-supplied text so machine and item names render literally.
func EscapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}
