package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"triviareview"
)

var (
	reviewResume bool
	reviewOut    string
)

var reviewCmd = &cobra.Command{
	Use:   "review [file]",
	Short: "Review questions interactively, one keypress per assignment",
	Long: `Opens the questions file (or the last file used) in a full screen
reviewer. Press 0-9 to give the current question a code; the question is
written to code_N.json in the output folder right away and the progress
file is saved every 30 seconds (autosave_seconds in the config) and on
exit. Questions already in a code file of that folder start with their
code. --resume reopens the progress file of the last output folder instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("review needs a terminal; use assign for scripted work")
		}

		r := triviareview.NewReviewer(cfg, logger)
		if reviewOut != "" {
			r.SetOutputFolder(reviewOut)
		}
		var err error
		switch {
		case reviewResume:
			_, err = r.OpenResume()
		case len(args) == 1:
			_, err = r.Open(args[0])
		case cfg.LastFile() != "":
			_, err = r.Open(cfg.LastFile())
		default:
			err = errors.New("no file given and no last file in the config")
		}
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		labels := make(chan struct{}, 1)
		r.Start(ctx, func() {
			select {
			case labels <- struct{}{}:
			default:
			}
		})

		_, runErr := tea.NewProgram(newReviewModel(r, labels), tea.WithAltScreen()).Run()
		return errors.Join(runErr, r.Close())
	},
}

func init() {
	reviewCmd.Flags().BoolVar(&reviewResume, "resume", false, "Continue from the progress file in the output folder")
	reviewCmd.Flags().StringVar(&reviewOut, "out", "", "Output folder for this run (default: the file's folder)")
}

type reviewKeys struct {
	Next    key.Binding
	Prev    key.Binding
	Assign  key.Binding
	Undo    key.Binding
	Redo    key.Binding
	Skip    key.Binding
	Search  key.Binding
	Jump    key.Binding
	Filter  key.Binding
	Preview key.Binding
	Stats   key.Binding
	Save    key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func (k reviewKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Assign, k.Next, k.Prev, k.Undo, k.Help, k.Quit}
}

func (k reviewKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Assign, k.Next, k.Prev, k.Skip},
		{k.Undo, k.Redo, k.Save},
		{k.Search, k.Jump, k.Filter},
		{k.Preview, k.Stats, k.Help, k.Quit},
	}
}

var defaultReviewKeys = reviewKeys{
	Next:    key.NewBinding(key.WithKeys("right", "l", "n"), key.WithHelp("→", "next")),
	Prev:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "previous")),
	Assign:  key.NewBinding(key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("0-9", "assign")),
	Undo:    key.NewBinding(key.WithKeys("ctrl+z", "u"), key.WithHelp("ctrl+z", "undo")),
	Redo:    key.NewBinding(key.WithKeys("ctrl+y", "ctrl+r"), key.WithHelp("ctrl+y", "redo")),
	Skip:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip")),
	Search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Jump:    key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "go to")),
	Filter:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
	Preview: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "raw record")),
	Stats:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "stats")),
	Save:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	answerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	codeStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	questionText = lipgloss.NewStyle().Bold(true).MarginTop(1).MarginBottom(1)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type promptKind int

const (
	promptNone promptKind = iota
	promptSearch
	promptJump
)

type overlayKind int

const (
	overlayNone overlayKind = iota
	overlayPreview
	overlayStats
)

type statusLevel int

const (
	statusInfo statusLevel = iota
	statusWarn
	statusError
)

// labelsChangedMsg is sent when another process rewrote the code labels.
type labelsChangedMsg struct{}

func waitForLabels(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return labelsChangedMsg{}
	}
}

type reviewModel struct {
	r      *triviareview.Reviewer
	keys   reviewKeys
	help   help.Model
	input  textinput.Model
	labels <-chan struct{}

	prompt  promptKind
	overlay overlayKind
	status  string
	level   statusLevel
	width   int
}

func newReviewModel(r *triviareview.Reviewer, labels <-chan struct{}) reviewModel {
	in := textinput.New()
	in.CharLimit = 200
	m := reviewModel{
		r:      r,
		keys:   defaultReviewKeys,
		help:   help.New(),
		input:  in,
		labels: labels,
		width:  80,
	}
	if res := r.LoadResult(); res != nil {
		m.setStatus(statusInfo, fmt.Sprintf("Loaded %d questions (%s), skipped %d", res.Accepted(), res.Format, res.Skipped()))
	}
	return m
}

func (m reviewModel) Init() tea.Cmd {
	if m.labels == nil {
		return nil
	}
	return waitForLabels(m.labels)
}

func (m *reviewModel) setStatus(level statusLevel, text string) {
	m.level = level
	m.status = text
}

// report turns an operation result into the status line. A FileError means
// the in-memory change happened, so it is only a warning.
func (m *reviewModel) report(err error, ok string) {
	var fileErr *triviareview.FileError
	switch {
	case err == nil:
		m.setStatus(statusInfo, ok)
	case errors.As(err, &fileErr):
		m.setStatus(statusWarn, ok+" (code file not updated: "+err.Error()+")")
	default:
		m.setStatus(statusError, err.Error())
	}
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil
	case labelsChangedMsg:
		m.setStatus(statusInfo, "Code labels reloaded")
		return m, waitForLabels(m.labels)
	case tea.KeyMsg:
		if m.prompt != promptNone {
			return m.updatePrompt(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m reviewModel) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompt = promptNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		text := m.input.Value()
		kind := m.prompt
		m.prompt = promptNone
		m.input.Blur()
		switch kind {
		case promptSearch:
			m.r.SetSearch(text)
			if m.r.View().Empty() {
				m.setStatus(statusWarn, fmt.Sprintf("No questions match %q", text))
			} else {
				m.setStatus(statusInfo, fmt.Sprintf("%d questions match", m.r.View().Total()))
			}
		case promptJump:
			if err := m.r.View().JumpToText(text); err != nil {
				m.setStatus(statusError, err.Error())
			}
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m reviewModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.overlay != overlayNone && !key.Matches(msg, m.keys.Quit) {
		m.overlay = overlayNone
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Assign):
		code, _ := strconv.Atoi(msg.String())
		err := m.r.Assign(code)
		m.report(err, "Assigned "+m.r.Label(code))
	case key.Matches(msg, m.keys.Next):
		m.r.Next()
	case key.Matches(msg, m.keys.Prev):
		m.r.Prev()
	case key.Matches(msg, m.keys.Undo):
		m.report(m.r.Undo(), "Undone")
	case key.Matches(msg, m.keys.Redo):
		m.report(m.r.Redo(), "Redone")
	case key.Matches(msg, m.keys.Skip):
		m.report(m.r.Skip(), "Skipped")
	case key.Matches(msg, m.keys.Filter):
		mode := m.r.View().Mode().Next()
		m.r.SetFilter(mode)
		m.setStatus(statusInfo, "Showing "+string(mode))
	case key.Matches(msg, m.keys.Search):
		return m.openPrompt(promptSearch, "search: ", m.r.View().Search())
	case key.Matches(msg, m.keys.Jump):
		return m.openPrompt(promptJump, "go to #: ", "")
	case key.Matches(msg, m.keys.Preview):
		m.overlay = overlayPreview
	case key.Matches(msg, m.keys.Stats):
		m.overlay = overlayStats
	case key.Matches(msg, m.keys.Save):
		m.report(m.r.Save(), "Progress saved")
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m reviewModel) openPrompt(kind promptKind, prompt, value string) (tea.Model, tea.Cmd) {
	m.prompt = kind
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m reviewModel) View() string {
	var body string
	switch m.overlay {
	case overlayPreview:
		body = m.previewView()
	case overlayStats:
		body = m.statsView()
	default:
		body = m.questionView()
	}

	var footer string
	if m.prompt != promptNone {
		footer = m.input.View()
	} else {
		footer = m.statusView()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		body,
		m.legendView(),
		footer,
		m.help.View(m.keys),
	)
}

func (m reviewModel) headerView() string {
	v := m.r.View()
	pos := "0/0"
	if !v.Empty() {
		pos = fmt.Sprintf("%d/%d", v.Position()+1, v.Total())
	}
	parts := []string{
		titleStyle.Render("Question " + pos),
		dimStyle.Render(fmt.Sprintf("assigned %d/%d", v.AssignedCount(), v.Total())),
		dimStyle.Render("filter: " + string(v.Mode())),
	}
	if s := v.Search(); s != "" {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("search: %q", s)))
	}
	return strings.Join(parts, "  ")
}

func (m reviewModel) questionView() string {
	_, q, ok := m.r.Current()
	if !ok {
		return questionText.Render("No questions to show. Press f to change the filter or / to search.")
	}
	var b strings.Builder
	b.WriteString(questionText.Width(max(m.width-2, 20)).Render(q.Question))
	b.WriteString("\n")
	for i, opt := range q.Options {
		line := fmt.Sprintf("  %c. %s", 'A'+rune(i%26), opt)
		if opt == q.Answer {
			line = answerStyle.Render(line + "  ✓")
		}
		b.WriteString(line + "\n")
	}
	if !q.HasOption(q.Answer) {
		b.WriteString(errStyle.Render("  answer not among options: "+q.Answer) + "\n")
	}

	meta := []string{"category: " + q.Category.String()}
	if len(q.Subcategories) > 0 {
		meta = append(meta, "subcategories: "+strings.Join(q.Subcategories, ", "))
	}
	if q.Difficulty != "" {
		meta = append(meta, "difficulty: "+q.Difficulty)
	}
	b.WriteString("\n" + dimStyle.Render(strings.Join(meta, "  ")) + "\n")

	if code, ok := q.Code(); ok {
		b.WriteString(codeStyle.Render(fmt.Sprintf("Code %d: %s", code, m.r.Label(code))))
	} else {
		b.WriteString(dimStyle.Render("Not assigned"))
	}
	if q.Skipped {
		b.WriteString(dimStyle.Render("  (skipped)"))
	}
	return b.String()
}

func (m reviewModel) previewView() string {
	_, q, ok := m.r.Current()
	if !ok {
		return panelStyle.Render("No question selected")
	}
	raw, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return panelStyle.Render(errStyle.Render(err.Error()))
	}
	return panelStyle.Render(string(raw))
}

func (m reviewModel) statsView() string {
	var b strings.Builder
	if err := m.r.Stats().WriteText(&b, m.r.Label); err != nil {
		return panelStyle.Render(errStyle.Render(err.Error()))
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m reviewModel) legendView() string {
	items := make([]string, 0, triviareview.MaxCode-triviareview.MinCode+1)
	for code := triviareview.MinCode; code <= triviareview.MaxCode; code++ {
		items = append(items, codeStyle.Render(strconv.Itoa(code))+" "+m.r.Label(code))
	}
	return "\n" + strings.Join(items, dimStyle.Render(" · "))
}

func (m reviewModel) statusView() string {
	switch m.level {
	case statusWarn:
		return warnStyle.Render(m.status)
	case statusError:
		return errStyle.Render(m.status)
	}
	return m.status
}
