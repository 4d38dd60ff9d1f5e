package validate

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
)

// Format is a named predicate over a trimmed, non-empty value.
type Format struct {
	Name    string
	Message string
	Check   func(value string) bool
}

var (
	handlePattern = regexp.MustCompile(`^@?[A-Za-z0-9](?:[A-Za-z0-9_.-]{0,37}[A-Za-z0-9])?$`)
	slugPattern   = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

var (
	URL = &Format{
		Name:    "url",
		Message: "must be a valid http(s) URL",
		Check: func(value string) bool {
			u, err := url.Parse(value)
			if err != nil {
				return false
			}
			return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
		},
	}
	Handle = &Format{
		Name:    "handle",
		Message: "must be a valid handle",
		Check:   handlePattern.MatchString,
	}
	Email = &Format{
		Name:    "email",
		Message: "must be a valid email address",
		Check: func(value string) bool {
			addr, err := mail.ParseAddress(value)
			return err == nil && addr.Address == value
		},
	}
	Slug = &Format{
		Name:    "slug",
		Message: "must contain lowercase letters, digits and dashes only",
		Check:   slugPattern.MatchString,
	}
)

// Formats resolves format names used in wizard definitions.
type Formats map[string]*Format

func DefaultFormats() Formats {
	return Formats{
		URL.Name:    URL,
		Handle.Name: Handle,
		Email.Name:  Email,
		Slug.Name:   Slug,
	}
}

func (f Formats) Lookup(name string) (*Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, nil
	}
	format, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("unknown format %q", name)
	}
	return format, nil
}

// Register adds or replaces a format.
func (f Formats) Register(format *Format) {
	f[strings.ToLower(format.Name)] = format
}
