package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/stepform/structured"
)

const (
	parseCommandToolName        = "parse_wizard_intent"
	parseCommandToolDescription = "Classify user input typed into a multi-step form wizard."
)

type parseCommandInput struct {
	Intent Kind   `json:"intent" jsonschema:"required,enum=advance,enum=back,enum=cancel,enum=jump,enum=edit,enum=review,enum=none,description=The user's intent"`
	Step   int    `json:"step,omitempty" jsonschema:"description=One based step number for jump"`
	Key    string `json:"key,omitempty" jsonschema:"description=Field key when the user sets exactly one field"`
	Value  string `json:"value,omitempty" jsonschema:"description=Value for key"`
}

// ToolParser asks a chat model to classify the input.
type ToolParser struct {
	chain *structured.Chain[*Request, parseCommandInput]
}

func NewToolParser(chatModel model.ToolCallingChatModel) (*ToolParser, error) {
	chain, err := structured.NewChain[*Request, parseCommandInput](
		chatModel,
		buildParseCommandPrompt,
		parseCommandToolName,
		parseCommandToolDescription,
	)
	if err != nil {
		return nil, err
	}
	return &ToolParser{chain: chain}, nil
}

func (p *ToolParser) Parse(ctx context.Context, req *Request) (Command, error) {
	result, err := p.chain.Invoke(ctx, req)
	if err != nil {
		return Command{Kind: None}, err
	}
	switch result.Intent {
	case "":
		return Command{Kind: None}, fmt.Errorf("empty intent returned by %s", parseCommandToolName)
	case Jump:
		return Command{Kind: Jump, Step: result.Step - 1}, nil
	case Edit:
		key, ok := lookupFold(req.Fields, strings.TrimSpace(result.Key))
		if !ok {
			return Command{Kind: Edit}, nil
		}
		return Command{Kind: Edit, Key: key, Value: result.Value}, nil
	case Advance, Back, Cancel, Review, None:
		return Command{Kind: result.Intent}, nil
	default:
		return Command{Kind: None}, fmt.Errorf("unknown intent %q returned by %s", result.Intent, parseCommandToolName)
	}
}

func lookupFold(list []string, s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return item, true
		}
	}
	return "", false
}

func buildParseCommandPrompt(_ context.Context, req *Request) ([]*schema.Message, error) {
	var steps strings.Builder
	for i, label := range req.Steps {
		fmt.Fprintf(&steps, "%d. %s\n", i+1, label)
	}
	systemPrompt := fmt.Sprintf(`You help a user move through a multi-step form wizard.

Classify the user's latest input:
- advance: the user wants to save the current step and continue (e.g. "next", "looks good, continue").
- back: the user wants the previous step.
- cancel: the user explicitly wants to abandon the wizard. Plain negations are not cancel.
- jump: the user names a step to go to; put its number in step.
- edit: the input provides values for fields of the current step. Fill key and value only when exactly one field is set verbatim, otherwise leave them empty.
- review: the user asks what has been entered so far.
- none: chatter unrelated to the wizard.

Call the '%s' tool with the result.`, parseCommandToolName)

	userPrompt := fmt.Sprintf("# Steps\n%s\n# Current step\n%s (fields: %s)\n\n# User input\n%s",
		strings.TrimRight(steps.String(), "\n"),
		req.Step,
		strings.Join(req.Fields, ", "),
		req.Input,
	)
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}, nil
}
