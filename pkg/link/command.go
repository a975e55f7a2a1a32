package link

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Command is one request line: an upper-case verb and whitespace-free
// arguments.
type Command struct {
	Verb string   `@Word`
	Args []string `@Word*`
}

var commandLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Word", Pattern: `[^\s]+`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})

var commandParser = participle.MustBuild[Command](
	participle.Lexer(commandLexer),
	participle.Elide("Whitespace"),
)

var verbPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// NewCommand builds a command from a verb and arguments formatted with %v.
func NewCommand(verb string, args ...any) Command {
	c := Command{Verb: verb}
	for _, a := range args {
		c.Args = append(c.Args, fmt.Sprint(a))
	}
	return c
}

// ParseCommand parses one request line.
func ParseCommand(line string) (Command, error) {
	c, err := commandParser.ParseString("", line)
	if err != nil {
		return Command{}, fmt.Errorf("link: parse command %q: %w", line, err)
	}
	if err := c.Validate(); err != nil {
		return Command{}, err
	}
	return *c, nil
}

// Validate checks that the command survives a round trip through its wire
// form.
func (c Command) Validate() error {
	if !verbPattern.MatchString(c.Verb) {
		return fmt.Errorf("link: invalid verb %q", c.Verb)
	}
	for i, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t\r\n") {
			return fmt.Errorf("link: %s: argument %d %q is empty or contains whitespace", c.Verb, i, a)
		}
	}
	return nil
}

// String returns the wire form without the trailing newline.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Verb
	}
	return c.Verb + " " + strings.Join(c.Args, " ")
}
