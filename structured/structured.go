// Package structured turns a tool-calling chat model into a typed extractor:
// the model is forced to call a single tool whose parameters are the output
// type, and the call arguments are decoded into it.
package structured

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

var ErrNoToolCall = errors.New("model response has no tool call")

type PromptBuilder[In any] func(ctx context.Context, input In) ([]*schema.Message, error)

type Chain[In, Out any] struct {
	prompt PromptBuilder[In]
	model  model.ToolCallingChatModel
	tool   *schema.ToolInfo
}

func NewChain[In, Out any](
	chatModel model.ToolCallingChatModel,
	prompt PromptBuilder[In],
	toolName string,
	toolDesc string,
) (*Chain[In, Out], error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	tool, err := utils.GoStruct2ToolInfo[Out](toolName, toolDesc)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	return &Chain[In, Out]{prompt: prompt, model: chatModel, tool: tool}, nil
}

func (c *Chain[In, Out]) Tool() *schema.ToolInfo {
	return c.tool
}

func (c *Chain[In, Out]) Invoke(ctx context.Context, input In) (*Out, error) {
	messages, err := c.prompt(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("build prompt failed: %w", err)
	}

	response, err := c.model.Generate(ctx, messages,
		model.WithTools([]*schema.ToolInfo{c.tool}),
		model.WithToolChoice(schema.ToolChoiceForced, c.tool.Name),
	)
	if err != nil {
		return nil, fmt.Errorf("call model failed: %w", err)
	}
	call, ok := c.pickCall(response)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoToolCall, response.Content)
	}

	var result Out
	if err := sonic.UnmarshalString(call.Function.Arguments, &result); err != nil {
		return nil, fmt.Errorf("parse %s arguments failed: %w", c.tool.Name, err)
	}
	return &result, nil
}

// pickCall prefers the call to our tool and falls back to the first one, as
// some providers rename forced tools.
func (c *Chain[In, Out]) pickCall(response *schema.Message) (schema.ToolCall, bool) {
	if response == nil || len(response.ToolCalls) == 0 {
		return schema.ToolCall{}, false
	}
	for _, call := range response.ToolCalls {
		if call.Function.Name == c.tool.Name {
			return call, true
		}
	}
	return response.ToolCalls[0], true
}
