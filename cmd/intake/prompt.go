package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"blockhost-portal/internal/forms"
)

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	text, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// confirm asks a yes/no question; an empty answer picks def.
func (p *prompter) confirm(question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	for {
		answer, err := p.line(fmt.Sprintf("%s %s ", question, hint))
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

// field asks for one form field. An empty answer keeps current.
func (p *prompter) field(f forms.Field, current interface{}) (interface{}, error) {
	label := f.Label
	if f.Required {
		label += " *"
	}

	switch f.Kind {
	case forms.KindCheckbox:
		checked, _ := current.(bool)
		return p.confirm(label, checked)

	case forms.KindChoice:
		fmt.Fprintln(p.out, label)
		for i, o := range f.Options {
			fmt.Fprintf(p.out, "  %d) %s\n", i+1, o.Label)
		}
		cur, _ := current.(string)
		for {
			answer, err := p.line(withDefault("Choose", f.OptionLabel(cur)))
			if err != nil {
				return nil, err
			}
			if answer == "" {
				return cur, nil
			}
			if answer == "-" {
				return "", nil
			}
			if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(f.Options) {
				return f.Options[n-1].Value, nil
			}
			for _, o := range f.Options {
				if strings.EqualFold(answer, o.Value) || strings.EqualFold(answer, o.Label) {
					return o.Value, nil
				}
			}
			fmt.Fprintln(p.out, "  Please pick one of the listed numbers.")
		}

	default:
		cur, _ := current.(string)
		answer, err := p.line(withDefault(label, cur))
		if err != nil {
			return nil, err
		}
		switch answer {
		case "":
			return cur, nil
		case "-":
			return "", nil
		}
		return answer, nil
	}
}

func withDefault(label, current string) string {
	if current == "" {
		return label + ": "
	}
	if len(current) > 40 {
		current = current[:37] + "..."
	}
	return fmt.Sprintf("%s [%s]: ", label, current)
}

// formState is the in-memory form shared with the draft autosave timer.
type formState struct {
	mu     sync.Mutex
	values map[string]interface{}
}

func newFormState(initial map[string]interface{}) *formState {
	s := &formState{}
	s.Reset(initial)
	return s
}

func (s *formState) Snapshot() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *formState) Reset(values map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]interface{}, len(values))
	for k, v := range values {
		s.values[k] = v
	}
}

func (s *formState) Get(name string) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[name]
}

func (s *formState) Set(name string, v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = v
}
