package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vbonduro/fridgescan/internal/camera"
	"github.com/vbonduro/fridgescan/internal/domain"
	"github.com/vbonduro/fridgescan/internal/events"
)

// Pantry is the subset of service.PantryService the terminal UI drives.
type Pantry interface {
	SearchItems(query string) []domain.Item
	ShoppingList() []domain.ShoppingView
	AddShopping(ctx context.Context, name string) ([]domain.ShoppingView, bool, error)
}

// Scanner is the subset of camera.Controller the terminal UI drives.
type Scanner interface {
	Start(ctx context.Context) (*camera.Session, error)
	Stop()
	Snapshot() camera.Snapshot
}

type tab int

const (
	tabScan tab = iota
	tabItems
	tabShopping
)

var tabNames = []string{"Scan", "My Items", "Shopping"}

// maxScanned bounds the per-session scan log shown on the scan tab.
const maxScanned = 50

type keyMap struct {
	Next  key.Binding
	Prev  key.Binding
	Start key.Binding
	Stop  key.Binding
	Add   key.Binding
	Back  key.Binding
	Quit  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Start, k.Stop, k.Add, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev, k.Back}, {k.Start, k.Stop, k.Add, k.Quit}}
}

func defaultKeys() keyMap {
	return keyMap{
		Next:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next page")),
		Prev:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous page")),
		Start: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start scanner")),
		Stop:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop scanner")),
		Add:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "add to list")),
		Back:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back to scan")),
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type Model struct {
	ctx     context.Context
	pantry  Pantry
	scanner Scanner
	events  <-chan events.Event

	keys   keyMap
	help   help.Model
	search textinput.Model
	entry  textinput.Model

	tab      tab
	status   string
	errMsg   string
	scanned  []string
	shopping []domain.ShoppingView
	width    int
}

type eventMsg events.Event

type scannerMsg struct {
	snap camera.Snapshot
	err  error
}

type shoppingMsg struct {
	views []domain.ShoppingView
	err   error
}

// New builds the UI model. scanner may be nil when no scanner is attached;
// evs is usually a subscription on the event bus.
func New(ctx context.Context, pantry Pantry, scanner Scanner, evs <-chan events.Event) Model {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "Search items..."
	search.CharLimit = 200

	entry := textinput.New()
	entry.Prompt = "+ "
	entry.Placeholder = "Add to shopping list..."
	entry.CharLimit = 200

	m := Model{
		ctx:      ctx,
		pantry:   pantry,
		scanner:  scanner,
		events:   evs,
		keys:     defaultKeys(),
		help:     help.New(),
		search:   search,
		entry:    entry,
		shopping: pantry.ShoppingList(),
	}
	if scanner != nil {
		m.status = scanner.Snapshot().Status
	} else {
		m.status = "No scanner attached."
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func (m Model) startScanner() tea.Cmd {
	s, ctx := m.scanner, m.ctx
	return func() tea.Msg {
		_, err := s.Start(ctx)
		return scannerMsg{snap: s.Snapshot(), err: err}
	}
}

func (m Model) stopScanner() tea.Cmd {
	s := m.scanner
	return func() tea.Msg {
		s.Stop()
		return scannerMsg{snap: s.Snapshot()}
	}
}

func (m Model) addShopping(name string) tea.Cmd {
	p, ctx := m.pantry, m.ctx
	return func() tea.Msg {
		views, _, err := p.AddShopping(ctx, name)
		return shoppingMsg{views: views, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case eventMsg:
		m.applyEvent(events.Event(msg))
		return m, waitForEvent(m.events)

	case scannerMsg:
		m.status = msg.snap.Status
		m.errMsg = ""
		if msg.snap.LastError != nil {
			m.errMsg = msg.snap.LastError.Error()
		} else if msg.err != nil && !errors.Is(msg.err, camera.ErrAlreadyRunning) && !errors.Is(msg.err, camera.ErrStopped) {
			m.errMsg = msg.err.Error()
		}
		return m, nil

	case shoppingMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.shopping = msg.views
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) applyEvent(ev events.Event) {
	switch ev.Type {
	case events.TypeStatus:
		m.status = ev.Status
	case events.TypeCameraError:
		m.status = ev.Status
		m.errMsg = ev.Status
	case events.TypeItemAdded:
		m.scanned = append([]string{ev.Label}, m.scanned...)
		if len(m.scanned) > maxScanned {
			m.scanned = m.scanned[:maxScanned]
		}
	case events.TypeShoppingChanged:
		m.shopping = ev.Shopping
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.Next):
		return m.switchTab((m.tab + 1) % tab(len(tabNames)))
	case key.Matches(msg, m.keys.Prev):
		return m.switchTab((m.tab + tab(len(tabNames)) - 1) % tab(len(tabNames)))
	}

	switch m.tab {
	case tabScan:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Start):
			if m.scanner == nil {
				return m, nil
			}
			return m, m.startScanner()
		case key.Matches(msg, m.keys.Stop):
			if m.scanner == nil {
				return m, nil
			}
			return m, m.stopScanner()
		}
		return m, nil

	case tabItems:
		if key.Matches(msg, m.keys.Back) {
			return m.switchTab(tabScan)
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd

	case tabShopping:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m.switchTab(tabScan)
		case key.Matches(msg, m.keys.Add):
			name := strings.TrimSpace(m.entry.Value())
			m.entry.SetValue("")
			if name == "" {
				return m, nil
			}
			return m, m.addShopping(name)
		}
		var cmd tea.Cmd
		m.entry, cmd = m.entry.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) switchTab(t tab) (tea.Model, tea.Cmd) {
	m.tab = t
	m.search.Blur()
	m.entry.Blur()
	var cmd tea.Cmd
	switch t {
	case tabItems:
		cmd = m.search.Focus()
	case tabShopping:
		cmd = m.entry.Focus()
	}
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder

	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		if tab(i) == m.tab {
			tabs[i] = activeTab.Render(name)
		} else {
			tabs[i] = inactiveTab.Render(name)
		}
	}
	b.WriteString(titleStyle.Render("Fridge Scanner") + "   " + strings.Join(tabs, "  ") + "\n")

	var body string
	switch m.tab {
	case tabScan:
		body = m.scanView()
	case tabItems:
		body = m.itemsView()
	case tabShopping:
		body = m.shoppingView()
	}
	panel := panelStyle
	if m.width > 4 {
		panel = panel.Width(m.width - 4)
	}
	b.WriteString(panel.Render(body))
	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString(errorStyle.Render(m.errMsg) + "\n")
	}
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) scanView() string {
	lines := []string{statusStyle.Render(m.status)}
	if len(m.scanned) == 0 {
		lines = append(lines, mutedStyle.Render("Nothing scanned yet."))
	}
	lines = append(lines, m.scanned...)
	return strings.Join(lines, "\n")
}

func (m Model) itemsView() string {
	items := m.pantry.SearchItems(m.search.Value())
	lines := []string{m.search.View()}
	if len(items) == 0 {
		lines = append(lines, mutedStyle.Render("No items."))
	}
	for _, it := range items {
		lines = append(lines, it.Name)
	}
	lines = append(lines, mutedStyle.Render(fmt.Sprintf("%d item(s)", len(items))))
	return strings.Join(lines, "\n")
}

func (m Model) shoppingView() string {
	lines := []string{m.entry.View()}
	for _, v := range m.shopping {
		line := v.Name
		if v.Owned {
			line = lipgloss.JoinHorizontal(lipgloss.Top, v.Name, " ", ownedStyle.Render(ownedCheckbox))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Run starts the program on the terminal and blocks until the user quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
