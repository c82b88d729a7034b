package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"taskflow/internal/workflow/types"
)

// Input sources.
const (
	SourceUser   = "user"
	SourcePrompt = "prompt"
	SourceEnv    = "env"
)

// Prompter asks the operator for a value.
type Prompter interface {
	Prompt(label string, mask bool) (string, error)
}

// TerminalPrompter prompts with promptui.
type TerminalPrompter struct{}

func (TerminalPrompter) Prompt(label string, mask bool) (string, error) {
	p := promptui.Prompt{Label: label}
	if mask {
		p.Mask = '*'
	}
	return p.Run()
}

// DefaultPrompter returns a TerminalPrompter when stdin is a terminal and nil
// otherwise.
func DefaultPrompter() Prompter {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return TerminalPrompter{}
	}
	return nil
}

// EnvLookup reads the OS environment first, then the .env file in dir.
func EnvLookup(dir string) func(string) (string, bool) {
	envMap, _ := loadDotEnvIfExists(dir)
	return func(name string) (string, bool) {
		if v, ok := os.LookupEnv(name); ok {
			return v, true
		}
		v, ok := envMap[name]
		return v, ok
	}
}

// loadDotEnvIfExists returns the key/value pairs of dir/.env, or an empty map
// when there is none or it cannot be parsed.
func loadDotEnvIfExists(dir string) (map[string]string, error) {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return map[string]string{}, nil
	}

	m, err := godotenv.Read(envPath)
	if err != nil {
		printer.Printf("⚠️  Failed to parse .env at %s: %v\n", envPath, err)
		return map[string]string{}, err
	}
	return m, nil
}

// EnvName is the environment variable consulted for input name.
func EnvName(name string) string {
	return EnvPrefix + "_" + strings.ToUpper(name)
}

// GatherInputs fills each input from its sources, tried in order. A "user"
// source only confirms that the user config supplies the value; the value
// itself reaches the workflow through the user namespace.
func GatherInputs(inputs types.NamedInputs, user types.Vars, prompter Prompter, lookup func(string) (string, bool)) (types.Vars, error) {
	loaded := types.Vars{}
	for _, ni := range inputs {
		in := ni.Input
		supplied := false

		for _, source := range in.Sources {
			switch source {
			case SourceUser:
				supplied = userSupplies(user, ni.Name, in.AllowBlank)

			case SourcePrompt:
				if prompter == nil {
					continue
				}
				desc := in.Desc
				if desc == "" {
					desc = "Specify value for"
				}
				label := fmt.Sprintf("%s %q", desc, ni.Name)
				if in.Mask {
					label += " (masked)"
				}
				answer, err := prompter.Prompt(label, in.Mask)
				if err != nil {
					return nil, fmt.Errorf("prompt for %q failed: %v", ni.Name, err)
				}
				if v := ProcessInputValue(answer, in.AllowBlank); v != nil {
					loaded[ni.Name] = v
					supplied = true
				}

			case SourceEnv:
				raw, ok := lookup(EnvName(ni.Name))
				if !ok {
					continue
				}
				if v := ProcessInputValue(raw, in.AllowBlank); v != nil {
					loaded[ni.Name] = v
					supplied = true
				}

			default:
				return nil, fmt.Errorf("Input %q source must be \"prompt, env, or user\".", ni.Name)
			}

			if supplied {
				break
			}
		}

		if !supplied {
			return nil, fmt.Errorf("No value supplied for %q from %q.", ni.Name, strings.Join(in.Sources, ","))
		}
	}
	return loaded, nil
}

func userSupplies(user types.Vars, name string, allowBlank bool) bool {
	v, ok := user[name]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString {
		return strings.TrimSpace(s) != "" || allowBlank
	}
	return true
}

// ProcessInputValue converts raw input text. A double-quoted value is the
// string inside the quotes, a leading integer is that integer, true/false are
// booleans and anything else stays a string. Blank input is "" when
// allowBlank is set and nil otherwise.
func ProcessInputValue(raw string, allowBlank bool) interface{} {
	if strings.TrimSpace(raw) == "" {
		if allowBlank {
			return ""
		}
		return nil
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	if n, ok := leadingInt(raw); ok {
		return n
	}
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	return raw
}

// leadingInt parses the integer prefix of s, after optional whitespace and
// sign.
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n\r")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
