package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/stepform/types"
	"github.com/tbxark/stepform/validate"
	"github.com/tbxark/stepform/wizard"
)

// DefaultGuideSystemPromptTemplate may contain one "%s" for the language.
const DefaultGuideSystemPromptTemplate = `You are a friendly form assistant guiding a user through one step of a multi-step form.

Respond as if chatting with a friend:
- If required fields are missing, mention them casually and ask for the information. Don't ask for everything at once if there are many.
- If there are validation errors, point them out gently and suggest a correction in plain language.
- Acknowledge what they have already filled in.
- If the step is complete, ask whether they want to continue to the next step.
- Avoid lists or bullet points.
- Reply in %s.
`

// Guide writes the assistant's next line for the active step.
type Guide struct {
	chatModel    model.BaseChatModel
	lang         string
	systemPrompt string
}

type GuideOption func(*Guide)

func WithLang(lang string) GuideOption {
	return func(g *Guide) {
		g.lang = lang
	}
}

// WithSystemPrompt replaces the rendered default template.
func WithSystemPrompt(prompt string) GuideOption {
	return func(g *Guide) {
		g.systemPrompt = prompt
	}
}

func NewGuide(chatModel model.BaseChatModel, opts ...GuideOption) *Guide {
	g := &Guide{chatModel: chatModel, lang: "English"}
	for _, opt := range opts {
		opt(g)
	}
	if g.systemPrompt == "" {
		g.systemPrompt = fmt.Sprintf(DefaultGuideSystemPromptTemplate, g.lang)
	}
	return g
}

// Next describes the active step's filled, missing and invalid fields to the
// model and returns its reply.
func (g *Guide) Next(ctx context.Context, session *wizard.Session) (string, error) {
	status := session.Status()
	if status.State.Phase != types.PhaseEditing {
		return "", fmt.Errorf("%w: %s", wizard.ErrNotEditing, status.State)
	}
	step := session.Steps()[status.State.Step]
	snapshot := session.Snapshot()
	errs := validate.Validate(step, snapshot)

	var filled, open []string
	for _, f := range step.Fields {
		name := f.Label
		if name == "" {
			name = f.Key
		}
		if msg, bad := errs[f.Key]; bad {
			open = append(open, fmt.Sprintf("%s: %s", name, msg))
			continue
		}
		if v := wizard.DisplayValue(snapshot, f.Key); v != "" {
			filled = append(filled, fmt.Sprintf("%s = %s", name, v))
		}
	}
	sections := []string{
		fmt.Sprintf("# Step %d of %d: %s", status.State.Step+1, len(session.Steps()), step.Label),
		"# Filled:\n" + orNone(filled),
		"# Needs attention:\n" + orNone(open),
	}
	response, err := g.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(g.systemPrompt),
		schema.UserMessage(strings.Join(sections, "\n\n")),
	})
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	return strings.TrimSpace(response.Content), nil
}

func orNone(lines []string) string {
	if len(lines) == 0 {
		return "none"
	}
	return strings.Join(lines, "\n")
}
