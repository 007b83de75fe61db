package automator

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/entrhq/bugson/pkg/protocol"
)

// Tracker form fields the snippets write to.
const (
	AttachmentBodyField        = "att-textarea"
	AttachmentDescriptionField = "att-description"
	CommentField               = "comment"
)

var lineTerminators = strings.NewReplacer(
	"\n", `\n`,
	"\r", `\r`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

// Sanitize makes text safe to place between the double quotes of a
// JavaScript string literal. Backslashes are escaped before quotes so the
// escapes added for quotes are not escaped again.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, `"`, `\"`)
	return lineTerminators.Replace(text)
}

// The input event makes the attachment form's own handlers pick up the
// scripted value as if it had been typed.
var attachTemplate = template.Must(template.New("attach").Parse(`(() => {
	const att = document.getElementById("{{.BodyField}}");
	att.value = "{{.Body}}";
	att.dispatchEvent(new Event("input", { bubbles: true, cancelable: true }));
	const desc = document.getElementById("{{.DescriptionField}}");
	desc.value = "{{.Description}}";
	att.focus();
})();`))

var commentTemplate = template.Must(template.New("comment").Parse(`(() => {
	const textarea = document.getElementById("{{.CommentField}}");
	textarea.value = "{{.Comment}}";
	textarea.focus();
})();`))

// AttachDescription is the attachment description written for r.
func AttachDescription(r protocol.AttachLink) string {
	return fmt.Sprintf("[%s/%s] %s (#%s)", r.RepoOrg, r.RepoName, r.PRTitle, r.PRNumber)
}

// MergeCommentText is the Markdown comment recorded on a ticket when a pull
// request merges.
func MergeCommentText(r protocol.MergeComment) string {
	return fmt.Sprintf("[%s](%s) merged PR [[%s/%s]: %s (#%s)](%s) in [%s](%s).",
		r.Author, r.AuthorURL, r.RepoOrg, r.RepoName, r.PRTitle, r.PRNumber, r.PRURL, r.CommitSHA, r.CommitURL)
}

// AttachSnippet builds the script that fills the attachment form for r.
func AttachSnippet(r protocol.AttachLink) (string, error) {
	var b strings.Builder
	err := attachTemplate.Execute(&b, map[string]string{
		"BodyField":        AttachmentBodyField,
		"DescriptionField": AttachmentDescriptionField,
		"Body":             Sanitize(r.PRURL),
		"Description":      Sanitize(AttachDescription(r)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to build attach snippet: %w", err)
	}
	return b.String(), nil
}

// MergeCommentSnippet builds the script that fills the comment box for r.
func MergeCommentSnippet(r protocol.MergeComment) (string, error) {
	var b strings.Builder
	err := commentTemplate.Execute(&b, map[string]string{
		"CommentField": CommentField,
		"Comment":      Sanitize(MergeCommentText(r)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to build comment snippet: %w", err)
	}
	return b.String(), nil
}
