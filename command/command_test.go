package command

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/go-cmp/cmp"
)

var steps = []string{"bio", "links", "review"}

func TestLocalParser(t *testing.T) {
	p := NewLocalParser()
	tests := []struct {
		input   string
		want    Command
		wantErr error
	}{
		{"next", Command{Kind: Advance}, nil},
		{"  Back ", Command{Kind: Back}, nil},
		{"quit", Command{Kind: Cancel}, nil},
		{"summary", Command{Kind: Review}, nil},
		{"", Command{Kind: None}, nil},
		{"jump 3", Command{Kind: Jump, Step: 2}, nil},
		{"goto Links", Command{Kind: Jump, Step: 1}, nil},
		{"title = Staff engineer", Command{Kind: Edit, Key: "title", Value: "Staff engineer"}, nil},
		{"website=", Command{Kind: Edit, Key: "website"}, nil},
		{"upload logo ./My Logo.png", Command{Kind: Upload, Key: "logo", Value: "./My Logo.png"}, nil},
		{"discard logo", Command{Kind: Discard, Key: "logo"}, nil},
		{"upload logo", Command{Kind: None}, ErrUnrecognized},
		{"jump nowhere", Command{Kind: None}, ErrUnrecognized},
		{"my title is engineer", Command{Kind: None}, ErrUnrecognized},
		{"a b = c", Command{Kind: None}, ErrUnrecognized},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := p.Parse(context.Background(), &Request{Input: tt.input, Steps: steps})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("command mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type fakeModel struct {
	args string
	err  error
}

func (f *fakeModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &schema.Message{ToolCalls: []schema.ToolCall{{
		Function: schema.FunctionCall{Name: parseCommandToolName, Arguments: f.args},
	}}}, nil
}

func (f *fakeModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func (f *fakeModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func TestToolParser(t *testing.T) {
	req := &Request{Input: "...", Step: "bio", Fields: []string{"title", "bio"}, Steps: steps}
	tests := []struct {
		name    string
		args    string
		want    Command
		wantErr bool
	}{
		{"advance", `{"intent":"advance"}`, Command{Kind: Advance}, false},
		{"jump is one based", `{"intent":"jump","step":2}`, Command{Kind: Jump, Step: 1}, false},
		{"edit known key", `{"intent":"edit","key":"Title","value":"Engineer"}`, Command{Kind: Edit, Key: "title", Value: "Engineer"}, false},
		{"edit other step key", `{"intent":"edit","key":"website","value":"x"}`, Command{Kind: Edit}, false},
		{"empty", `{}`, Command{Kind: None}, true},
		{"unknown", `{"intent":"dance"}`, Command{Kind: None}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewToolParser(&fakeModel{args: tt.args})
			if err != nil {
				t.Fatal(err)
			}
			got, err := p.Parse(context.Background(), req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("command mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFailbackParser(t *testing.T) {
	tool, err := NewToolParser(&fakeModel{args: `{"intent":"edit"}`})
	if err != nil {
		t.Fatal(err)
	}
	p := NewFailbackParser(NewLocalParser(), tool)

	got, err := p.Parse(context.Background(), &Request{Input: "next"})
	if err != nil || got.Kind != Advance {
		t.Errorf("local match: %+v, %v", got, err)
	}
	got, err = p.Parse(context.Background(), &Request{Input: "I'm a staff engineer"})
	if err != nil || got.Kind != Edit || got.Key != "" {
		t.Errorf("model fallback: %+v, %v", got, err)
	}

	broken, _ := NewToolParser(&fakeModel{err: errors.New("offline")})
	got, err = NewFailbackParser(NewLocalParser(), broken).Parse(context.Background(), &Request{Input: "hello"})
	if err == nil || got.Kind != None {
		t.Errorf("all parsers failing: %+v, %v", got, err)
	}
	if _, err := NewFailbackParser().Parse(context.Background(), &Request{}); !errors.Is(err, ErrUnrecognized) {
		t.Errorf("empty chain err = %v", err)
	}
}
