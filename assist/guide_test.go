package assist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type chatModel struct {
	system, user string
}

func (c *chatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	c.system, c.user = input[0].Content, input[1].Content
	return schema.AssistantMessage("  What's your job title?\n", nil), nil
}

func (c *chatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestGuideNext(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("years", "7"); err != nil {
		t.Fatal(err)
	}
	cm := &chatModel{}
	reply, err := NewGuide(cm, WithLang("French")).Next(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if reply != "What's your job title?" {
		t.Errorf("reply = %q", reply)
	}
	if !strings.Contains(cm.system, "Reply in French") {
		t.Errorf("language not applied:\n%s", cm.system)
	}
	for _, want := range []string{"Step 1 of 3: bio", "Years of experience = 7", "Title: required"} {
		if !strings.Contains(cm.user, want) {
			t.Errorf("prompt misses %q:\n%s", want, cm.user)
		}
	}

	if _, err := NewGuide(cm, WithSystemPrompt("custom")).Next(ctx, s); err != nil || cm.system != "custom" {
		t.Errorf("custom prompt: %q, %v", cm.system, err)
	}
}
