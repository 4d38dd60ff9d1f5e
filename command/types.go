// Package command maps free text typed by a user to wizard intents.
package command

import (
	"context"
	"errors"
)

type Kind string

const (
	None    Kind = "none"
	Advance Kind = "advance"
	Back    Kind = "back"
	Cancel  Kind = "cancel"
	Jump    Kind = "jump"
	Edit    Kind = "edit"
	Review  Kind = "review"
	Upload  Kind = "upload"
	Discard Kind = "discard"
)

// Command is a parsed intent. Step is zero based and only set for Jump. An
// Edit without Key asks for the fields to be filled from Input. Upload
// carries the local file path in Value.
type Command struct {
	Kind  Kind
	Step  int
	Key   string
	Value string
}

// Request carries the user input and the wizard context it was typed in.
type Request struct {
	Input string
	// Step is the label of the active step.
	Step string
	// Fields are the keys owned by the active step.
	Fields []string
	// Steps are all step labels in order.
	Steps []string
}

var ErrUnrecognized = errors.New("input not recognized as a command")

type Parser interface {
	Parse(ctx context.Context, req *Request) (Command, error)
}
