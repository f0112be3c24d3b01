package app

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
)

// DefaultMessageTemplate renders "<sender name>: <text>".
const DefaultMessageTemplate = "{{.Sender.DisplayName}}: {{.Text}}"

// TemplateData is what a message template is executed against.
type TemplateData struct {
	Message   domain.Message
	Sender    domain.Identity
	Recipient domain.Identity
	Text      string
}

// MessageRenderer turns a conversation message into SMS text.
type MessageRenderer struct {
	tmpl *template.Template
}

// NewMessageRenderer parses text as a text/template. An empty text selects
// DefaultMessageTemplate.
func NewMessageRenderer(text string) (*MessageRenderer, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultMessageTemplate
	}
	tmpl, err := template.New("sms").Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing message template: %w", err)
	}
	return &MessageRenderer{tmpl: tmpl}, nil
}

// Render executes the template.
func (r *MessageRenderer) Render(data TemplateData) (string, error) {
	var sb strings.Builder
	if err := r.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering message template: %w", err)
	}
	return sb.String(), nil
}

// ComposeSMS prepends intro to body, separated by a blank line.
func ComposeSMS(intro, body string) string {
	if intro == "" {
		return body
	}
	return intro + "\n\n" + body
}
