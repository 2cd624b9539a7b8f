package commands

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type testItem struct {
	name string
	pkg  string
}

func (t testItem) Title() string       { return t.name }
func (t testItem) Description() string { return t.pkg }
func (t testItem) FilterValue() string { return t.name }

type pickerModel struct {
	tests    list.Model
	selected *testItem
}

func newPickerModel(items []list.Item) pickerModel {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "e2ekit tests"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().
		Background(lipgloss.Color("62")).
		Foreground(lipgloss.Color("230")).
		Padding(0, 1)
	return pickerModel{tests: l}
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.tests.SetSize(msg.Width-4, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.tests.FilterState() != list.Filtering {
				return m, tea.Quit
			}
		case "enter":
			if it, ok := m.tests.SelectedItem().(testItem); ok {
				m.selected = &it
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd
	m.tests, cmd = m.tests.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	wrap := lipgloss.NewStyle().Padding(1, 2)
	help := lipgloss.NewStyle().Faint(true).
		Render("↑/↓ navigate • / filter • enter run headed • q quit")
	return wrap.Render(m.tests.View() + "\n" + help)
}

// UI shows an interactive picker over the discovered tests and runs the
// chosen one with a visible browser.
func UI(args []string) error {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	pkg := fs.String("pkg", "./...", "test packages to discover tests in")
	if err := fs.Parse(args); err != nil {
		return err
	}

	items, err := discoverTests(*pkg)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no tests found in %s", *pkg)
	}

	p := tea.NewProgram(newPickerModel(items), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}

	m := final.(pickerModel)
	if m.selected == nil {
		return nil
	}

	fmt.Printf("Running %s headed...\n", m.selected.name)
	return Run([]string{
		"-headed",
		"-pkg", m.selected.pkg,
		"-grep", "^" + regexp.QuoteMeta(m.selected.name) + "$",
	})
}

// discoverTests asks go test for the test names in each package. The -list
// output interleaves test names with "ok <pkg>" summary lines, which is how
// names get attributed to their package.
func discoverTests(pkg string) ([]list.Item, error) {
	out, err := exec.Command("go", "test", pkg, "-list", ".*").Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("test discovery failed: %s", bytes.TrimSpace(exitErr.Stderr))
		}
		return nil, fmt.Errorf("test discovery failed: %w", err)
	}

	var items []list.Item
	var pending []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "Test"):
			pending = append(pending, line)
		case strings.HasPrefix(line, "ok "):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			for _, name := range pending {
				items = append(items, testItem{name: name, pkg: fields[1]})
			}
			pending = nil
		}
	}
	return items, sc.Err()
}
