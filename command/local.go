package command

import (
	"context"
	"slices"
	"strconv"
	"strings"
)

// LocalParser recognises keywords and the "key=value" and "jump N" forms
// without a model.
type LocalParser struct {
	AdvanceKeywords []string
	BackKeywords    []string
	CancelKeywords  []string
	ReviewKeywords  []string
	JumpKeywords    []string
	UploadKeywords  []string
	DiscardKeywords []string
}

func NewLocalParser() *LocalParser {
	return &LocalParser{
		AdvanceKeywords: []string{"next", "continue", "advance", "save", "submit", "done", "ok"},
		BackKeywords:    []string{"back", "previous", "prev"},
		CancelKeywords:  []string{"cancel", "quit", "exit", "stop"},
		ReviewKeywords:  []string{"review", "summary", "status"},
		JumpKeywords:    []string{"jump", "goto", "step"},
		UploadKeywords:  []string{"upload", "attach"},
		DiscardKeywords: []string{"discard", "detach"},
	}
}

func (p *LocalParser) Parse(_ context.Context, req *Request) (Command, error) {
	input := strings.TrimSpace(req.Input)
	normalized := strings.ToLower(input)
	switch {
	case normalized == "":
		return Command{Kind: None}, nil
	case slices.Contains(p.AdvanceKeywords, normalized):
		return Command{Kind: Advance}, nil
	case slices.Contains(p.BackKeywords, normalized):
		return Command{Kind: Back}, nil
	case slices.Contains(p.CancelKeywords, normalized):
		return Command{Kind: Cancel}, nil
	case slices.Contains(p.ReviewKeywords, normalized):
		return Command{Kind: Review}, nil
	}

	if cmd, ok := p.parseJump(normalized, req.Steps); ok {
		return cmd, nil
	}
	if cmd, ok := p.parseFile(input); ok {
		return cmd, nil
	}
	if key, value, ok := strings.Cut(input, "="); ok {
		key = strings.TrimSpace(key)
		if key != "" && !strings.ContainsAny(key, " \t") {
			return Command{Kind: Edit, Key: key, Value: strings.TrimSpace(value)}, nil
		}
	}
	return Command{Kind: None}, ErrUnrecognized
}

// parseJump accepts "jump 2" (one based) and "jump links" (a step label).
func (p *LocalParser) parseJump(input string, steps []string) (Command, bool) {
	verb, arg, ok := strings.Cut(input, " ")
	if !ok || !slices.Contains(p.JumpKeywords, verb) {
		return Command{}, false
	}
	arg = strings.TrimSpace(arg)
	if n, err := strconv.Atoi(arg); err == nil {
		return Command{Kind: Jump, Step: n - 1}, true
	}
	for i, label := range steps {
		if strings.EqualFold(label, arg) {
			return Command{Kind: Jump, Step: i}, true
		}
	}
	return Command{}, false
}

// parseFile accepts "upload key path" and "discard key". The path keeps its
// original case.
func (p *LocalParser) parseFile(input string) (Command, bool) {
	fields := strings.Fields(input)
	if len(fields) < 2 {
		return Command{}, false
	}
	verb := strings.ToLower(fields[0])
	switch {
	case slices.Contains(p.DiscardKeywords, verb) && len(fields) == 2:
		return Command{Kind: Discard, Key: fields[1]}, true
	case slices.Contains(p.UploadKeywords, verb) && len(fields) >= 3:
		rest := strings.TrimSpace(input[len(fields[0]):])
		rest = strings.TrimSpace(rest[len(fields[1]):])
		return Command{Kind: Upload, Key: fields[1], Value: rest}, true
	}
	return Command{}, false
}

// FailbackParser tries parsers in order and returns the first success.
type FailbackParser struct {
	parsers []Parser
}

func NewFailbackParser(parsers ...Parser) *FailbackParser {
	return &FailbackParser{parsers: parsers}
}

func (p *FailbackParser) Parse(ctx context.Context, req *Request) (Command, error) {
	lastErr := ErrUnrecognized
	for _, parser := range p.parsers {
		cmd, err := parser.Parse(ctx, req)
		if err == nil {
			return cmd, nil
		}
		lastErr = err
	}
	return Command{Kind: None}, lastErr
}
