// Package tui holds the interactive prompts used when the installer is not
// run in unattended mode.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
)

var ErrCancelled = errors.New("prompt cancelled")

// Question is a single value asked for on the terminal.
type Question struct {
	Key     string
	Prompt  string
	Default string
	// Validate rejects an answer with a message shown under the prompt.
	Validate func(string) error
}

// questionModel is a bubbletea model that asks one question at a time.
type questionModel struct {
	questions []Question
	idx       int
	inputs    []textinput.Model
	invalid   string
	done      bool
}

func newQuestionModel(questions []Question) questionModel {
	inputs := make([]textinput.Model, len(questions))
	for i, q := range questions {
		ti := textinput.New()
		ti.Placeholder = q.Default
		ti.CharLimit = 256
		inputs[i] = ti
	}

	m := questionModel{
		questions: questions,
		inputs:    inputs,
	}
	if len(inputs) > 0 {
		m.inputs[0].Focus()
	}

	return m
}

func (m questionModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m questionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			q := m.questions[m.idx]
			if q.Validate != nil {
				if err := q.Validate(m.answer(m.idx)); err != nil {
					m.invalid = err.Error()
					return m, nil
				}
			}

			m.invalid = ""

			if m.idx < len(m.inputs)-1 {
				m.inputs[m.idx].Blur()
				m.idx++
				m.inputs[m.idx].Focus()

				return m, textinput.Blink
			}

			m.done = true

			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.inputs[m.idx], cmd = m.inputs[m.idx].Update(msg)

	return m, cmd
}

func (m questionModel) View() string {
	if m.done || len(m.questions) == 0 {
		return ""
	}

	q := m.questions[m.idx]
	view := fmt.Sprintf("%s: %s\n", q.Prompt, m.inputs[m.idx].View())

	if m.invalid != "" {
		view += warnStyle.Render(m.invalid) + "\n"
	}

	return view
}

// answer is the typed value, or the question default when nothing was typed.
func (m questionModel) answer(i int) string {
	v := strings.TrimSpace(m.inputs[i].Value())
	if v == "" {
		return m.questions[i].Default
	}

	return v
}

func (m questionModel) answers() map[string]string {
	out := make(map[string]string, len(m.questions))
	for i, q := range m.questions {
		out[q.Key] = m.answer(i)
	}

	return out
}

// confirmModel asks a yes/no question below a summary.
type confirmModel struct {
	summary  string
	question string
	answered bool
	yes      bool
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyRunes:
		switch strings.ToLower(string(key.Runes)) {
		case "y":
			m.answered, m.yes = true, true
			return m, tea.Quit
		case "n":
			m.answered = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m confirmModel) View() string {
	if m.answered {
		return ""
	}

	return m.summary + "\n" + m.question + " [y/n] "
}

// Prompter runs prompts on a terminal.
type Prompter struct {
	opts []tea.ProgramOption
}

// NewPrompter returns a Prompter reading from in and drawing to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		opts: []tea.ProgramOption{tea.WithInput(in), tea.WithOutput(out)},
	}
}

// Ask runs the questions and returns answers keyed by Question.Key.
func (p *Prompter) Ask(questions []Question) (map[string]string, error) {
	if len(questions) == 0 {
		return map[string]string{}, nil
	}

	result, err := tea.NewProgram(newQuestionModel(questions), p.opts...).Run()
	if err != nil {
		return nil, err
	}

	final, ok := result.(questionModel)
	if !ok || !final.done {
		return nil, ErrCancelled
	}

	return final.answers(), nil
}

// Confirm shows summary and asks question, returning the answer.
func (p *Prompter) Confirm(summary, question string) (bool, error) {
	result, err := tea.NewProgram(confirmModel{summary: summary, question: question}, p.opts...).Run()
	if err != nil {
		return false, err
	}

	final, ok := result.(confirmModel)
	if !ok || !final.answered {
		return false, ErrCancelled
	}

	return final.yes, nil
}
