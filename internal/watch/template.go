package watch

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrTemplate marks a locator or query template that cannot be resolved.
var ErrTemplate = errors.New("template")

const envPrefix = "env:"

// Resolve substitutes {name} placeholders in tmpl with values from fields.
// {env:NAME} reads the environment. Literal braces are written {{ and }}.
func Resolve(tmpl string, fields map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w %q: unterminated placeholder", ErrTemplate, tmpl)
			}
			name := tmpl[i+1 : i+1+end]
			value, err := lookup(name, fields)
			if err != nil {
				return "", fmt.Errorf("%w %q: %v", ErrTemplate, tmpl, err)
			}
			b.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w %q: unmatched '}'", ErrTemplate, tmpl)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func lookup(name string, fields map[string]string) (string, error) {
	if name == "" {
		return "", errors.New("empty placeholder")
	}
	if env, ok := strings.CutPrefix(name, envPrefix); ok {
		value, ok := os.LookupEnv(env)
		if !ok {
			return "", fmt.Errorf("environment variable %s is not set", env)
		}
		return value, nil
	}
	value, ok := fields[name]
	if !ok {
		return "", fmt.Errorf("unknown placeholder {%s}", name)
	}
	return value, nil
}
