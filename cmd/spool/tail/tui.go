package tailcmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/spoolworks/spool/pkg/eventsource"
	"github.com/spoolworks/spool/pkg/utils"
)

func init() {
	// Force TrueColor profile to fix lipgloss color detection issue
	// See: https://github.com/charmbracelet/lipgloss/issues/439
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.TrueColor))
	renderer.SetColorProfile(termenv.TrueColor)
	lipgloss.SetDefaultRenderer(renderer)
}

// maxKeptEntries bounds the scrollback held in memory.
const maxKeptEntries = 500

var (
	tailTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	tailMutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	tailEventStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("215"))
	tailIDStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	tailDividerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	tailLiveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	tailClosedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	tailSpinStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

type tailKeyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

func (k tailKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Quit}
}

func (k tailKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Quit}}
}

func defaultTailKeyMap() tailKeyMap {
	return tailKeyMap{
		Up:   key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down: key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// tailEntry is one received message stamped with its arrival time.
type tailEntry struct {
	at  time.Time
	msg eventsource.Message
}

type streamEventMsg tailEntry

type streamDoneMsg struct {
	err error
}

type tailModel struct {
	client *eventsource.Client
	stream string
	msgCh  <-chan tailEntry
	errCh  <-chan error

	entries   []tailEntry
	viewport  viewport.Model
	spinner   spinner.Model
	keys      tailKeyMap
	help      help.Model
	connected bool
	done      bool
	err       error
	width     int
	height    int
	ready     bool
}

// runTailTUI subscribes in the background and renders the message flow
// full screen until the user quits or the context is canceled.
func runTailTUI(ctx context.Context, client *eventsource.Client, stream string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgCh := make(chan tailEntry, 64)
	errCh := make(chan error, 1)

	go func() {
		err := client.Subscribe(ctx, func(m eventsource.Message) {
			select {
			case msgCh <- tailEntry{at: time.Now(), msg: m}:
			case <-ctx.Done():
			}
		})
		errCh <- err
		close(msgCh)
	}()

	model := newTailModel(client, stream, msgCh, errCh)

	program := bubbletea.NewProgram(model,
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil && !errors.Is(err, bubbletea.ErrProgramKilled) {
		return err
	}
	return nil
}

func newTailModel(client *eventsource.Client, stream string, msgCh <-chan tailEntry, errCh <-chan error) tailModel {
	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(tailSpinStyle),
	)

	return tailModel{
		client:  client,
		stream:  stream,
		msgCh:   msgCh,
		errCh:   errCh,
		spinner: sp,
		keys:    defaultTailKeyMap(),
		help:    help.New(),
	}
}

// waitForEvent delivers the next stream message to the program. The error
// channel is written before the message channel closes, so the done read
// never blocks.
func waitForEvent(msgCh <-chan tailEntry, errCh <-chan error) bubbletea.Cmd {
	return func() bubbletea.Msg {
		e, ok := <-msgCh
		if !ok {
			return streamDoneMsg{err: <-errCh}
		}
		return streamEventMsg(e)
	}
}

func (m tailModel) Init() bubbletea.Cmd {
	return bubbletea.Batch(m.spinner.Tick, waitForEvent(m.msgCh, m.errCh))
}

func (m tailModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := max(msg.Height-4, 3)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
			m.refreshContent()
			m.viewport.GotoBottom()
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		return m, nil

	case spinner.TickMsg:
		if m.connected || m.done {
			return m, nil
		}
		var cmd bubbletea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case streamEventMsg:
		m.connected = true
		m.entries = append(m.entries, tailEntry(msg))
		if len(m.entries) > maxKeptEntries {
			m.entries = m.entries[len(m.entries)-maxKeptEntries:]
		}
		followBottom := !m.ready || m.viewport.AtBottom()
		m.refreshContent()
		if followBottom && m.ready {
			m.viewport.GotoBottom()
		}
		return m, waitForEvent(m.msgCh, m.errCh)

	case streamDoneMsg:
		m.done = true
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
		}
		return m, nil

	case bubbletea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, bubbletea.Quit
		}
	}

	var cmd bubbletea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m tailModel) View() string {
	if !m.ready {
		return tailMutedStyle.Render("starting...")
	}

	header := renderHeaderLine(m.width,
		tailTitleStyle.Render("spool tail › "+m.stream),
		m.statusBadge(),
	)

	lastID := m.client.LastEventID()
	if lastID == "" {
		lastID = "-"
	}
	statusBar := tailMutedStyle.Render(fmt.Sprintf("last id %s · retry %s · %d messages",
		lastID, m.client.RetryInterval(), len(m.entries)))
	footer := renderHeaderLine(m.width, statusBar, m.help.View(m.keys))

	return strings.Join([]string{
		header,
		renderRule(m.width),
		m.viewport.View(),
		renderRule(m.width),
		footer,
	}, "\n")
}

func (m tailModel) statusBadge() string {
	switch {
	case m.done && m.err != nil:
		return tailClosedStyle.Render("✗ " + m.err.Error())
	case m.done:
		return tailMutedStyle.Render("stream closed")
	case !m.connected:
		return m.spinner.View() + tailMutedStyle.Render("connecting")
	default:
		return tailLiveStyle.Render("● live")
	}
}

func (m *tailModel) refreshContent() {
	if !m.ready {
		return
	}

	lines := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		lines = append(lines, renderEntry(e, m.viewport.Width))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
}

func renderEntry(e tailEntry, width int) string {
	event := e.msg.Event
	if event == "" {
		event = "message"
	}

	id := e.msg.ID
	if id == "" {
		id = "-"
	}

	data := strings.ReplaceAll(e.msg.Data, "\n", " ")
	dataWidth := max(width-32, 20)

	return fmt.Sprintf("%s  %s %s  %s",
		tailMutedStyle.Render(e.at.Format("15:04:05")),
		tailEventStyle.Render(fmt.Sprintf("%-10s", utils.Truncate(event, 10))),
		tailIDStyle.Render(fmt.Sprintf("%6s", utils.Truncate(id, 6))),
		utils.Truncate(data, dataWidth),
	)
}

func renderHeaderLine(width int, left, right string) string {
	lineWidth := width
	if lineWidth <= 0 {
		lineWidth = 80
	}
	leftWidth := lipgloss.Width(left)
	rightWidth := lipgloss.Width(right)
	if leftWidth+rightWidth+1 >= lineWidth {
		return strings.TrimSpace(left + " " + right)
	}
	spacing := lineWidth - leftWidth - rightWidth
	return left + strings.Repeat(" ", spacing) + right
}

func renderRule(width int) string {
	lineWidth := width
	if lineWidth <= 0 {
		lineWidth = 80
	}
	return tailDividerStyle.Render(strings.Repeat("─", lineWidth))
}
