package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/runtime"
	wasihttp "github.com/augentic/yetti/wasi/http"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	capStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateCompose modelState = iota
	stateShowResult
)

type interactiveModel struct {
	err      error
	cfg      runtime.Config
	state    *host.State
	caps     []string
	inputs   []textinput.Model
	focusIdx int
	result   string
	mode     modelState
}

type assembledMsg struct {
	err   error
	state *host.State
	caps  []string
}

type replyMsg struct {
	err    error
	result string
}

func newInteractiveModel(cfg runtime.Config) *interactiveModel {
	inputs := make([]textinput.Model, 3)
	for i, field := range []struct {
		prompt      string
		placeholder string
	}{
		{"method: ", "GET"},
		{"path: ", "/jobs/example"},
		{"body: ", "{}"},
	} {
		ti := textinput.New()
		ti.Prompt = field.prompt
		ti.Placeholder = field.placeholder
		ti.Width = 60
		inputs[i] = ti
	}
	inputs[0].Focus()

	return &interactiveModel{cfg: cfg, inputs: inputs}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.assemble
}

func (m *interactiveModel) assemble() tea.Msg {
	state, err := runtime.Assemble(context.Background(), m.cfg)
	if err != nil {
		return assembledMsg{err: err}
	}
	caps := state.Capabilities()
	sort.Strings(caps)
	return assembledMsg{state: state, caps: caps}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state != nil {
				m.state.Close(context.Background())
			}
			return m, tea.Quit

		case "enter":
			switch m.mode {
			case stateCompose:
				if m.state != nil {
					return m, m.dispatch
				}
			case stateShowResult:
				m.mode = stateCompose
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.mode == stateCompose {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			if m.mode == stateShowResult {
				m.mode = stateCompose
				m.result = ""
				m.err = nil
			}
		}

	case assembledMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.state = msg.state
		m.caps = msg.caps

	case replyMsg:
		m.result = msg.result
		m.err = msg.err
		m.mode = stateShowResult
	}

	if m.mode == stateCompose {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) dispatch() tea.Msg {
	method := strings.ToUpper(strings.TrimSpace(m.inputs[0].Value()))
	if method == "" {
		method = "GET"
	}
	path := strings.TrimSpace(m.inputs[1].Value())
	if path == "" {
		path = "/"
	}

	req := wasihttp.RequestEnvelope{
		Method: method,
		URI:    path,
		Body:   []byte(m.inputs[2].Value()),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return replyMsg{err: err}
	}

	reply, err := host.Dispatch(context.Background(), m.state, wasihttp.EntryPoint, payload)
	if err != nil {
		return replyMsg{err: err}
	}

	var resp wasihttp.ResponseEnvelope
	if err := json.Unmarshal(reply, &resp); err != nil {
		return replyMsg{err: fmt.Errorf("malformed reply: %w", err)}
	}
	return replyMsg{result: formatReply(&resp)}
}

func formatReply(resp *wasihttp.ResponseEnvelope) string {
	var b strings.Builder
	status := resp.Status
	if status == 0 {
		status = 200
	}
	fmt.Fprintf(&b, "status: %d\n", status)

	names := make([]string, 0, len(resp.Headers))
	for name := range resp.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s\n", name, resp.Headers[name])
	}
	if len(resp.Body) > 0 {
		b.WriteString("\n")
		b.Write(resp.Body)
	}
	return b.String()
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.mode != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("yetti"))
	b.WriteString(" ")
	b.WriteString(m.cfg.Component.Name)
	b.WriteString("\n\n")

	if m.state == nil {
		b.WriteString("Assembling runtime...\n")
		return b.String()
	}

	b.WriteString(labelStyle.Render("capabilities:"))
	b.WriteString("\n")
	for _, name := range m.caps {
		b.WriteString("  ")
		b.WriteString(capStyle.Render(name))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch m.mode {
	case stateCompose:
		b.WriteString("Send a test request:\n\n")
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter send • q quit"))

	case stateShowResult:
		b.WriteString("Reply:\n\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter compose • q quit"))
	}

	return b.String()
}

func runInteractive(cfg runtime.Config) error {
	p := tea.NewProgram(newInteractiveModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
