package preflight

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/spf13/pflag"
)

// Kind is the value type of an option.
type Kind int

const (
	String Kind = iota
	Int
	Bool
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Bool:
		return "bool"
	default:
		return "string"
	}
}

// Option declares a --name option.
type Option struct {
	Name string
	Kind Kind
	Help string
}

// Args holds parsed values keyed the way they appear in usage text:
// positionals as "<host>", options as "--user". Options that were not given
// are absent.
type Args map[string]any

// String returns the string value of key, or "".
func (a Args) String(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the int value of key and whether it was given.
func (a Args) Int(key string) (int, bool) {
	v, ok := a[key].(int)
	return v, ok
}

// Bool returns the bool value of key.
func (a Args) Bool(key string) bool {
	v, _ := a[key].(bool)
	return v
}

// Has reports whether key was given.
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// errHelp is returned by parse when --help was requested.
var errHelp = fmt.Errorf("help requested")

// parse tokenizes rest shell-style and binds it against cmd's grammar.
func parse(cmd *Command, rest string) (Args, error) {
	words, err := shellwords.Parse(rest)
	if err != nil {
		return nil, usageError(cmd, fmt.Sprintf("%s: %v", cmd.Verb, err))
	}

	fs := pflag.NewFlagSet(cmd.Verb, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(true)

	strs := make(map[string]*string)
	ints := make(map[string]*int)
	bools := make(map[string]*bool)
	for _, opt := range cmd.Options {
		switch opt.Kind {
		case Int:
			ints[opt.Name] = fs.Int(opt.Name, 0, opt.Help)
		case Bool:
			bools[opt.Name] = fs.Bool(opt.Name, false, opt.Help)
		default:
			strs[opt.Name] = fs.String(opt.Name, "", opt.Help)
		}
	}

	if err := fs.Parse(words); err != nil {
		if err == pflag.ErrHelp {
			return nil, errHelp
		}
		return nil, usageError(cmd, fmt.Sprintf("%s: %v", cmd.Verb, err))
	}

	positionals := fs.Args()
	if len(positionals) < len(cmd.Positionals) {
		missing := cmd.Positionals[len(positionals):]
		return nil, usageError(cmd, fmt.Sprintf("%s: missing %s", cmd.Verb, strings.Join(missing, " ")))
	}
	if len(positionals) > len(cmd.Positionals) {
		extra := positionals[len(cmd.Positionals):]
		return nil, usageError(cmd, fmt.Sprintf("%s: unexpected argument %q", cmd.Verb, extra[0]))
	}

	args := make(Args, len(cmd.Positionals)+len(cmd.Options))
	for i, name := range cmd.Positionals {
		args[name] = positionals[i]
	}
	for _, opt := range cmd.Options {
		if !fs.Changed(opt.Name) {
			continue
		}
		key := "--" + opt.Name
		switch opt.Kind {
		case Int:
			args[key] = *ints[opt.Name]
		case Bool:
			args[key] = *bools[opt.Name]
		default:
			args[key] = *strs[opt.Name]
		}
	}
	return args, nil
}

func usageError(cmd *Command, message string) error {
	return errors.NewUsage(message, cmd.Usage)
}
