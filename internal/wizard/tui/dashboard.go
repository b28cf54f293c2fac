package tui

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/halloy/wiwo/internal/config"
	"github.com/halloy/wiwo/internal/discovery"
	"github.com/halloy/wiwo/internal/logging"
	"github.com/halloy/wiwo/internal/protocol"
	"github.com/halloy/wiwo/internal/session"
	"github.com/halloy/wiwo/internal/signal"
)

// captureWindow is how long a blaster waits for a button press during
// signal capture.
const captureWindow = 15 * time.Second

// Messages for async device operations
type connectCompleteMsg struct {
	sess *session.Session
	on   bool
	err  error
}

type powerCompleteMsg struct {
	on  bool
	err error
}

type learnCompleteMsg struct {
	data []byte
	err  error
}

type emitCompleteMsg struct {
	err error
}

// editorState tracks which inline editor (if any) is active
type editorState int

const (
	editorNone editorState = iota
	editorNickname
	editorCapture
)

// signalEntry is one saved signal, pulled from the registry and sorted
// by name for stable display
type signalEntry struct {
	name string
	meta *config.SignalMeta
}

// socketKeyMap defines key bindings for the socket dashboard
type socketKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	Refresh key.Binding
	Rename  key.Binding
	Help    key.Binding
	Back    key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k socketKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Refresh, k.Rename, k.Back, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k socketKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle, k.Refresh},
		{k.Rename, k.Help, k.Back, k.Quit},
	}
}

// blasterKeyMap defines key bindings for the blaster dashboard
type blasterKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Replay key.Binding
	Learn  key.Binding
	Rename key.Binding
	Help   key.Binding
	Back   key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k blasterKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Replay, k.Learn, k.Rename, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k blasterKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Replay, k.Learn},
		{k.Rename, k.Help, k.Back, k.Quit},
	}
}

// captureKeyMap defines key bindings for the capture name editor
type captureKeyMap struct {
	Confirm key.Binding
	Kind    key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k captureKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Kind, k.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (k captureKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Confirm, k.Kind, k.Cancel},
	}
}

// DashboardModel represents the device control screen for one device.
// Socket devices get a power panel; blasters get the saved signal
// library with capture and replay.
type DashboardModel struct {
	// Device under control
	Record   *discovery.DeviceRecord
	Registry *config.Registry

	// Live session; nil until the claim handshake completes
	Session *session.Session

	// Socket state
	PowerOn bool
	Cursor  int

	// Blaster state
	Signals      []signalEntry
	SignalCursor int

	// Inline editing state
	Editor        editorState
	NicknameInput textinput.Model
	CaptureInput  textinput.Model
	CaptureKind   signal.SignalKind
	CaptureName   string
	EditorErr     string

	// Pending replay, held across the RF433 confirmation modal
	EmitName string
	EmitData []byte

	// Busy modal state; one device operation runs at a time
	Busy         bool
	BusyTitle    string
	BusyLabel    string
	BusyStart    time.Time
	BusyDeadline time.Time

	// Result modal state
	ShowingSuccess bool
	SuccessTitle   string
	SuccessLines   []string
	ShowingFailure bool
	FailureErr     error
	FailureFatal   bool
	ShowingHelp    bool
	ConfirmingEmit bool
	ModalCursor    int

	BackRequested bool

	// UI state
	Width       int
	Height      int
	Spinner     spinner.Model
	ProgressBar progress.Model
	Help        help.Model
	SocketKeys  socketKeyMap
	BlasterKeys blasterKeyMap
	EditorKeys  manualModeKeyMap
	CaptureKeys captureKeyMap
}

// NewDashboardModel creates a dashboard for one discovered device. The
// model starts busy; Init fires the claim handshake.
func NewDashboardModel(record *discovery.DeviceRecord, registry *config.Registry) DashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	nicknameInput := textinput.New()
	nicknameInput.Placeholder = "desk lamp"
	nicknameInput.CharLimit = 40
	nicknameInput.Width = 30

	captureInput := textinput.New()
	captureInput.Placeholder = "tv_power"
	captureInput.CharLimit = 40
	captureInput.Width = 30

	h := help.New()

	socketKeys := socketKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle power"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Rename: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "rename"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}

	blasterKeys := blasterKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Replay: key.NewBinding(
			key.WithKeys("e", "enter"),
			key.WithHelp("e", "replay"),
		),
		Learn: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "capture"),
		),
		Rename: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "rename"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}

	editorKeys := manualModeKeyMap{
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "save"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}

	captureKeys := captureKeyMap{
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "start capture"),
		),
		Kind: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "ir/rf433"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}

	return DashboardModel{
		Record:        record,
		Registry:      registry,
		PowerOn:       record.On,
		Signals:       loadSignals(registry, record.MAC.String()),
		NicknameInput: nicknameInput,
		CaptureInput:  captureInput,
		CaptureKind:   signal.KindIR,

		// Connecting state; Init sends the claim
		Busy:      true,
		BusyTitle: "CONNECTING",
		BusyLabel: "Claiming a device session...",
		BusyStart: time.Now(),

		Spinner:     s,
		ProgressBar: progressBar,
		Help:        h,
		SocketKeys:  socketKeys,
		BlasterKeys: blasterKeys,
		EditorKeys:  editorKeys,
		CaptureKeys: captureKeys,
	}
}

// Init starts the claim handshake for the device
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, connectCmd(m.Record))
}

// Update handles messages and updates the model
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle result modals first (help/busy/success/failure/confirm)
	if m.ShowingHelp {
		return m.updateHelpModal(msg)
	} else if m.Busy {
		return m.updateBusyModal(msg)
	} else if m.ShowingSuccess {
		return m.updateSuccessModal(msg)
	} else if m.ShowingFailure {
		return m.updateFailureModal(msg)
	} else if m.ConfirmingEmit {
		return m.updateEmitConfirmModal(msg)
	}

	// Route to inline editor update functions based on editing state
	switch m.Editor {
	case editorNickname:
		return m.updateNicknameEditor(msg)
	case editorCapture:
		return m.updateCaptureEditor(msg)
	}

	// Normal navigation mode
	return m.updateNormalMode(msg)
}

// updateNormalMode handles input when no modal or editor is active
func (m DashboardModel) updateNormalMode(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "esc":
			// Back to the device list; the app coordinator intercepts
			// BackRequested, the quit only fires standalone
			m.BackRequested = true
			return m, tea.Quit

		case "?":
			m.ShowingHelp = true
			return m, nil

		case "n":
			return m.openNicknameEditor()
		}

		if m.Record.Kind == discovery.KindSocket {
			return m.updateSocketKeys(msg)
		}
		return m.updateBlasterKeys(msg)
	}

	return m, nil
}

// updateSocketKeys handles keys on the socket action menu
func (m DashboardModel) updateSocketKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.Cursor--
		if m.Cursor < 0 {
			m.Cursor = 2 // Wrap to bottom (Rename)
		}

	case "down", "j":
		m.Cursor++
		if m.Cursor > 2 {
			m.Cursor = 0 // Wrap to top (Toggle)
		}

	case "enter", " ":
		switch m.Cursor {
		case 0:
			return m.startToggle()
		case 1:
			return m.startRefresh()
		case 2:
			return m.openNicknameEditor()
		}

	case "t":
		return m.startToggle()

	case "r":
		return m.startRefresh()
	}

	return m, nil
}

// updateBlasterKeys handles keys on the blaster signal list
func (m DashboardModel) updateBlasterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if len(m.Signals) > 0 {
			m.SignalCursor--
			if m.SignalCursor < 0 {
				m.SignalCursor = len(m.Signals) - 1
			}
		}

	case "down", "j":
		if len(m.Signals) > 0 {
			m.SignalCursor++
			if m.SignalCursor >= len(m.Signals) {
				m.SignalCursor = 0
			}
		}

	case "e", "enter", " ":
		return m.prepareEmit()

	case "l":
		return m.openCaptureEditor()
	}

	return m, nil
}

// openNicknameEditor switches to inline nickname editing
func (m DashboardModel) openNicknameEditor() (tea.Model, tea.Cmd) {
	m.Editor = editorNickname
	m.EditorErr = ""
	m.NicknameInput.SetValue(m.nickname())
	m.NicknameInput.Focus()
	return m, textinput.Blink
}

// openCaptureEditor switches to inline capture naming
func (m DashboardModel) openCaptureEditor() (tea.Model, tea.Cmd) {
	m.Editor = editorCapture
	m.EditorErr = ""
	m.CaptureInput.SetValue("")
	m.CaptureKind = signal.KindIR
	m.CaptureInput.Focus()
	return m, textinput.Blink
}

// updateNicknameEditor handles input while renaming the device
func (m DashboardModel) updateNicknameEditor(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			// Cancel editing - return to normal mode without saving
			m.Editor = editorNone
			m.NicknameInput.Blur()
			return m, nil

		case "enter":
			// An empty name clears the nickname
			name := strings.TrimSpace(m.NicknameInput.Value())
			if name != "" {
				// Device arguments resolve IP and MAC forms before
				// nicknames, so a name shaped like either is unreachable
				if _, err := netip.ParseAddr(name); err == nil {
					m.EditorErr = "that reads as an IP address; pick another name"
					return m, nil
				}
				if _, err := protocol.ParseMAC(name); err == nil {
					m.EditorErr = "that reads as a MAC address; pick another name"
					return m, nil
				}
				if m.Registry != nil {
					if otherMAC, other := m.Registry.FindByNickname(name); other != nil && otherMAC != m.Record.MAC.String() {
						m.EditorErr = fmt.Sprintf("%q already names %s", name, otherMAC)
						return m, nil
					}
				}
			}
			if m.Registry != nil {
				m.Registry.SetDeviceNickname(m.Record.MAC.String(), name)
				m.saveRegistry()
			}
			m.Editor = editorNone
			m.NicknameInput.Blur()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.NicknameInput, cmd = m.NicknameInput.Update(msg)
	return m, cmd
}

// updateCaptureEditor handles input while naming a new capture
func (m DashboardModel) updateCaptureEditor(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			// Cancel editing - return to normal mode without capturing
			m.Editor = editorNone
			m.CaptureInput.Blur()
			return m, nil

		case "tab":
			if m.CaptureKind == signal.KindIR {
				m.CaptureKind = signal.KindRF433
			} else {
				m.CaptureKind = signal.KindIR
			}
			return m, nil

		case "enter":
			name := strings.TrimSpace(m.CaptureInput.Value())
			if name == "" {
				m.EditorErr = "the signal needs a name"
				return m, nil
			}
			if m.Registry != nil && m.Registry.GetSignal(m.Record.MAC.String(), name) != nil {
				m.EditorErr = fmt.Sprintf("a signal named %q is already saved for this device", name)
				return m, nil
			}
			m.Editor = editorNone
			m.CaptureInput.Blur()
			m.CaptureName = name
			return m.startLearn()
		}
	}

	var cmd tea.Cmd
	m.CaptureInput, cmd = m.CaptureInput.Update(msg)
	return m, cmd
}

// startToggle switches the socket to the opposite state
func (m DashboardModel) startToggle() (tea.Model, tea.Cmd) {
	if m.Session == nil {
		return m.failWith(errors.New("not connected to the device"))
	}
	m.startBusy("SWITCHING POWER", "Toggling the socket relay...", time.Time{})
	return m, tea.Batch(toggleCmd(m.Session), m.Spinner.Tick)
}

// startRefresh re-reads the socket's power state
func (m DashboardModel) startRefresh() (tea.Model, tea.Cmd) {
	if m.Session == nil {
		return m.failWith(errors.New("not connected to the device"))
	}
	m.startBusy("READING STATE", "Reading the socket's power state...", time.Time{})
	return m, tea.Batch(refreshCmd(m.Session), m.Spinner.Tick)
}

// startLearn puts the blaster into learn mode and waits for a press
func (m DashboardModel) startLearn() (tea.Model, tea.Cmd) {
	if m.Session == nil {
		return m.failWith(errors.New("not connected to the device"))
	}
	m.startBusy("WAITING FOR BUTTON PRESS",
		"Point the remote at the blaster and press the button to capture",
		time.Now().Add(captureWindow))
	return m, tea.Batch(learnCmd(m.Session, captureWindow), m.Spinner.Tick)
}

// prepareEmit loads the selected signal and either starts the replay or,
// for RF433 captures, asks for confirmation first
func (m DashboardModel) prepareEmit() (tea.Model, tea.Cmd) {
	if len(m.Signals) == 0 {
		return m, nil
	}
	if m.Session == nil {
		return m.failWith(errors.New("not connected to the device"))
	}

	entry := m.Signals[m.SignalCursor]
	kind, err := signal.ParseKind(entry.meta.Kind)
	if err != nil {
		return m.failWith(err)
	}
	capture, err := signal.Load(entry.meta.Path, kind)
	if err != nil {
		return m.failWith(err)
	}

	m.EmitName = entry.name
	m.EmitData = capture.Data

	if kind == signal.KindRF433 {
		// 433MHz reaches through walls and can actuate mains relays;
		// replays need an explicit confirmation
		m.ConfirmingEmit = true
		m.ModalCursor = 1 // Default to "Cancel"
		return m, nil
	}
	return m.startEmit()
}

// startEmit fires the pending replay
func (m DashboardModel) startEmit() (tea.Model, tea.Cmd) {
	m.startBusy("REPLAYING SIGNAL", fmt.Sprintf("Sending %q to the blaster...", m.EmitName), time.Time{})
	return m, tea.Batch(emitCmd(m.Session, m.EmitData), m.Spinner.Tick)
}

// startBusy opens the busy modal for one device operation
func (m *DashboardModel) startBusy(title, label string, deadline time.Time) {
	m.Busy = true
	m.BusyTitle = title
	m.BusyLabel = label
	m.BusyStart = time.Now()
	m.BusyDeadline = deadline
}

// failWith opens the failure modal
func (m DashboardModel) failWith(err error) (tea.Model, tea.Cmd) {
	m.ShowingFailure = true
	m.FailureErr = err
	return m, nil
}

// succeed opens the success modal
func (m *DashboardModel) succeed(title string, lines ...string) {
	m.ShowingSuccess = true
	m.SuccessTitle = title
	m.SuccessLines = lines
}

// updateBusyModal blocks input while a device operation runs and
// dispatches its completion message
func (m DashboardModel) updateBusyModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Block all input while talking to the device
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case connectCompleteMsg:
		m.Busy = false
		if msg.err != nil {
			m.ShowingFailure = true
			m.FailureErr = msg.err
			m.FailureFatal = true
			return m, nil
		}
		m.Session = msg.sess
		m.PowerOn = msg.on
		return m, nil

	case powerCompleteMsg:
		m.Busy = false
		if msg.err != nil {
			return m.failWith(msg.err)
		}
		m.PowerOn = msg.on
		return m, nil

	case learnCompleteMsg:
		m.Busy = false
		if msg.err != nil {
			return m.failWith(msg.err)
		}
		if msg.data == nil {
			return m.failWith(errors.New("the capture window closed without a button press"))
		}
		return m.saveCapture(msg.data)

	case emitCompleteMsg:
		m.Busy = false
		if msg.err != nil {
			return m.failWith(msg.err)
		}
		m.succeed("SIGNAL REPLAYED",
			fmt.Sprintf("%q was sent to the blaster.", m.EmitName),
			"",
			"The device replays without acknowledgement; check that the",
			"target equipment reacted.")
		return m, nil
	}

	return m, nil
}

// saveCapture persists a fresh capture to disk and the registry
func (m DashboardModel) saveCapture(data []byte) (tea.Model, tea.Cmd) {
	if m.Registry == nil {
		return m.failWith(errors.New("no device registry available to store the capture"))
	}

	mac := m.Record.MAC.String()
	path, err := m.Registry.SignalPath(mac, m.CaptureName)
	if err != nil {
		return m.failWith(err)
	}
	capture := &signal.Capture{Kind: m.CaptureKind, Data: data}
	if err := signal.Save(path, capture); err != nil {
		return m.failWith(err)
	}
	m.Registry.SetSignal(mac, m.CaptureName, path, m.CaptureKind.String())
	m.saveRegistry()

	// Reload and select the new entry
	m.Signals = loadSignals(m.Registry, mac)
	for i, entry := range m.Signals {
		if entry.name == m.CaptureName {
			m.SignalCursor = i
			break
		}
	}

	m.succeed("SIGNAL CAPTURED",
		fmt.Sprintf("%q saved (%d bytes, fingerprint %s)", m.CaptureName, len(data), capture.Fingerprint()),
		"",
		fmt.Sprintf("File: %s", path),
		"",
		fmt.Sprintf("Replay it any time with 'e', or: wiwo-ctl emit %s %s", mac, m.CaptureName))
	return m, nil
}

// updateSuccessModal handles input on the success modal
func (m DashboardModel) updateSuccessModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", " ", "esc":
			m.ShowingSuccess = false
		}
	}

	return m, nil
}

// updateFailureModal handles input on the failure modal
func (m DashboardModel) updateFailureModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", " ", "esc":
			m.ShowingFailure = false
			if m.FailureFatal {
				// No session to fall back on; return to the device list
				m.BackRequested = true
				return m, tea.Quit
			}
		}
	}

	return m, nil
}

// updateHelpModal handles input when the help modal is visible
func (m DashboardModel) updateHelpModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case tea.KeyMsg:
		// Any key closes the help modal
		m.ShowingHelp = false
	}

	return m, nil
}

// updateEmitConfirmModal handles the RF433 replay confirmation
func (m DashboardModel) updateEmitConfirmModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.ConfirmingEmit = false
			return m, nil

		case "left", "h":
			if m.ModalCursor > 0 {
				m.ModalCursor--
			}

		case "right", "l":
			if m.ModalCursor < 1 {
				m.ModalCursor++
			}

		case "enter", " ":
			m.ConfirmingEmit = false
			if m.ModalCursor == 0 {
				return m.startEmit()
			}
			return m, nil
		}
	}

	return m, nil
}

// connectCmd opens a session and claims the device. Sockets report
// their power state in the claim acknowledgement, so the connect doubles
// as the first state read.
func connectCmd(record *discovery.DeviceRecord) tea.Cmd {
	return func() tea.Msg {
		sess := session.New(record)

		if record.Kind == discovery.KindSocket {
			on, err := sess.QueryState()
			if err != nil {
				sess.Close()
				return connectCompleteMsg{err: err}
			}
			return connectCompleteMsg{sess: sess, on: on}
		}

		if err := sess.Subscribe(); err != nil {
			sess.Close()
			return connectCompleteMsg{err: err}
		}
		return connectCompleteMsg{sess: sess}
	}
}

// toggleCmd switches the socket to the opposite state
func toggleCmd(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		on, err := sess.Toggle()
		return powerCompleteMsg{on: on, err: err}
	}
}

// refreshCmd re-reads the socket's power state
func refreshCmd(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		on, err := sess.QueryState()
		return powerCompleteMsg{on: on, err: err}
	}
}

// learnCmd runs a capture with the given window
func learnCmd(sess *session.Session, window time.Duration) tea.Cmd {
	return func() tea.Msg {
		data, err := sess.LearnSignal(window)
		return learnCompleteMsg{data: data, err: err}
	}
}

// emitCmd replays raw signal bytes through the blaster
func emitCmd(sess *session.Session, data []byte) tea.Cmd {
	return func() tea.Msg {
		err := sess.EmitSignal(data)
		return emitCompleteMsg{err: err}
	}
}

// loadSignals pulls a device's saved signals from the registry, sorted
// by name
func loadSignals(registry *config.Registry, mac string) []signalEntry {
	if registry == nil {
		return nil
	}
	device := registry.GetDevice(mac)
	if device == nil {
		return nil
	}
	entries := make([]signalEntry, 0, len(device.Signals))
	for name, meta := range device.Signals {
		entries = append(entries, signalEntry{name: name, meta: meta})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].name < entries[j].name
	})
	return entries
}

// nickname returns the user-assigned name for this device, if any
func (m DashboardModel) nickname() string {
	if m.Registry == nil {
		return ""
	}
	if device := m.Registry.GetDevice(m.Record.MAC.String()); device != nil {
		return device.Nickname
	}
	return ""
}

// saveRegistry persists registry updates. Failures are logged, not
// surfaced: losing a nickname is not worth a failure modal.
func (m *DashboardModel) saveRegistry() {
	if m.Registry == nil {
		return
	}
	if err := m.Registry.Save(); err != nil {
		logging.Warn("Failed to save device registry", zap.Error(err))
	}
}

// CloseSession releases the device claim. Safe to call twice.
func (m *DashboardModel) CloseSession() {
	if m.Session != nil {
		m.Session.Close()
		m.Session = nil
	}
}

// IsBackRequested reports whether the user asked to return to discovery
func (m DashboardModel) IsBackRequested() bool {
	return m.BackRequested
}

// View renders the dashboard
func (m DashboardModel) View() string {
	// Handle modals first (help, busy, success, failure, confirm)
	if m.ShowingHelp {
		return RenderModal(m.renderHelpModalContent(), m.Width, m.Height)
	}
	if m.Busy {
		return RenderModal(m.renderBusyModalContent(), m.Width, m.Height)
	}
	if m.ShowingSuccess {
		return RenderModal(m.renderSuccessModalContent(), m.Width, m.Height)
	}
	if m.ShowingFailure {
		return RenderModal(m.renderFailureModalContent(), m.Width, m.Height)
	}
	if m.ConfirmingEmit {
		return RenderModal(m.renderEmitConfirmModalContent(), m.Width, m.Height)
	}

	// Normal dashboard view
	return m.renderDashboard()
}

// renderDashboard renders the main view using RenderApplicationContainer
func (m DashboardModel) renderDashboard() string {
	content := m.renderDashboardContent()

	// Context-sensitive help text using bubbles/help
	var helpText string
	switch {
	case m.Editor == editorNickname:
		helpText = m.Help.View(m.EditorKeys)
	case m.Editor == editorCapture:
		helpText = m.Help.View(m.CaptureKeys)
	case m.Record.Kind == discovery.KindSocket:
		helpText = m.Help.View(m.SocketKeys)
	default:
		helpText = m.Help.View(m.BlasterKeys)
	}

	// Wrap with application container (full-screen layout with height)
	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

// renderDashboardContent renders the device header plus the kind panel
func (m DashboardModel) renderDashboardContent() string {
	// Device info line
	titleStyle := lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true)
	titleLine := titleStyle.Render(deviceTitle(m.Record, m.nickname()))

	infoStyle := lipgloss.NewStyle().Foreground(TextColor)
	infoLine := infoStyle.Render(fmt.Sprintf("%s • %s • %s • %s",
		FormatKind(m.Record.Kind),
		m.Record.Model,
		m.Record.IP,
		m.Record.MAC))

	// Divider - simple horizontal line
	divider := lipgloss.NewStyle().
		Foreground(BorderColor).
		Render(strings.Repeat("─", 60))

	var body string
	switch {
	case m.Editor == editorNickname:
		body = m.renderNicknameEditor()
	case m.Editor == editorCapture:
		body = m.renderCaptureEditor()
	case m.Record.Kind == discovery.KindSocket:
		body = m.renderSocketPanel()
	default:
		body = m.renderBlasterPanel()
	}

	// Compose with JoinVertical
	return lipgloss.JoinVertical(lipgloss.Left,
		titleLine,
		infoLine,
		divider,
		"",
		body,
	)
}

// renderSocketPanel renders the power state and action menu
func (m DashboardModel) renderSocketPanel() string {
	labelStyle := lipgloss.NewStyle().Foreground(SubtleColor)
	powerLine := lipgloss.JoinHorizontal(lipgloss.Left,
		"  ",
		labelStyle.Render("Power:  "),
		FormatPowerState(m.PowerOn),
	)

	actions := []string{"Toggle power", "Refresh state", "Rename device"}
	lines := []string{powerLine, ""}
	for i, action := range actions {
		lines = append(lines, RenderMenuItem(action, m.Cursor == i))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderBlasterPanel renders the saved signal library
func (m DashboardModel) renderBlasterPanel() string {
	headingStyle := lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true)

	if len(m.Signals) == 0 {
		emptyStyle := lipgloss.NewStyle().Foreground(SubtleColor)
		return lipgloss.JoinVertical(lipgloss.Left,
			headingStyle.Render("  Saved signals"),
			"",
			emptyStyle.Render("  No saved signals yet."),
			emptyStyle.Render("  Press 'l', then point a remote at the blaster and press a button."),
		)
	}

	lines := []string{headingStyle.Render("  Saved signals"), ""}
	for i, entry := range m.Signals {
		captured := ""
		if !entry.meta.CapturedAt.IsZero() {
			captured = "captured " + entry.meta.CapturedAt.Format("2006-01-02")
		}
		line := fmt.Sprintf("%-20s %-6s %s", entry.name, entry.meta.Kind, captured)
		lines = append(lines, RenderMenuItem(line, m.SignalCursor == i))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderNicknameEditor renders the inline rename editor
func (m DashboardModel) renderNicknameEditor() string {
	parts := []string{
		"Rename device",
		"",
		"Name: " + m.NicknameInput.View(),
		"",
		SubtitleStyle.Render("An empty name removes the nickname"),
	}
	if m.EditorErr != "" {
		errStyle := lipgloss.NewStyle().Foreground(ErrorColor)
		parts = append(parts, "", errStyle.Render("✗ "+m.EditorErr))
	}
	return InlineEditorStyle().Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// renderCaptureEditor renders the inline capture naming editor
func (m DashboardModel) renderCaptureEditor() string {
	irMark, rfMark := "(•)", "( )"
	if m.CaptureKind == signal.KindRF433 {
		irMark, rfMark = "( )", "(•)"
	}

	parts := []string{
		"Capture a new signal",
		"",
		"Name: " + m.CaptureInput.View(),
		fmt.Sprintf("Kind: %s ir   %s rf433", irMark, rfMark),
	}
	if m.EditorErr != "" {
		errStyle := lipgloss.NewStyle().Foreground(ErrorColor)
		parts = append(parts, "", errStyle.Render("✗ "+m.EditorErr))
	}

	return InlineEditorStyle().Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// renderBusyModalContent renders the busy modal (device op in flight)
func (m DashboardModel) renderBusyModalContent() string {
	titleStyle := lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true)
	title := titleStyle.Render(fmt.Sprintf("%s %s", m.Spinner.View(), m.BusyTitle))

	elapsed := time.Since(m.BusyStart).Round(100 * time.Millisecond)
	timeStyle := lipgloss.NewStyle().Foreground(SubtleColor)

	parts := []string{title, "", m.BusyLabel, ""}

	// Capture runs against a fixed window; show it as a progress bar
	if !m.BusyDeadline.IsZero() {
		window := m.BusyDeadline.Sub(m.BusyStart)
		fraction := float64(elapsed) / float64(window)
		if fraction > 1 {
			fraction = 1
		}
		remaining := time.Until(m.BusyDeadline).Round(time.Second)
		if remaining < 0 {
			remaining = 0
		}
		parts = append(parts,
			m.ProgressBar.ViewAs(fraction),
			"",
			timeStyle.Render(fmt.Sprintf("Window closes in %s", remaining)),
		)
	} else {
		parts = append(parts, timeStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)

	modalStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Padding(1, 2).
		Width(SafeModalWidth(60, m.Width)) // Centering handled by RenderModal

	return modalStyle.Render(content)
}

// renderSuccessModalContent renders the success modal
func (m DashboardModel) renderSuccessModalContent() string {
	titleStyle := lipgloss.NewStyle().Foreground(SecondaryColor).Bold(true)
	title := titleStyle.Render("✓ " + m.SuccessTitle)

	contentParts := []string{title, ""}
	contentParts = append(contentParts, m.SuccessLines...)

	// Continue button
	continueStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(HighlightColor).
		Foreground(HighlightColor).
		Bold(true).
		Padding(0, 2)
	continueButton := lipgloss.NewStyle().MarginLeft(15).Render(continueStyle.Render("Continue"))
	contentParts = append(contentParts, "", continueButton)

	content := lipgloss.JoinVertical(lipgloss.Left, contentParts...)

	modalStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(SecondaryColor).
		Padding(1, 2).
		Width(SafeModalWidth(70, m.Width)) // Centering handled by RenderModal

	return modalStyle.Render(content)
}

// renderFailureModalContent renders the failure modal with
// troubleshooting advice
func (m DashboardModel) renderFailureModalContent() string {
	titleStyle := lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
	title := titleStyle.Render("✗ OPERATION FAILED")

	contentParts := []string{title, ""}

	if m.FailureErr != nil {
		errorStyle := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ErrorColor).
			Foreground(ErrorColor).
			Padding(0, 2).
			Bold(true)
		contentParts = append(contentParts, errorStyle.Render(session.GetShortErrorMessage(m.FailureErr)), "")

		hint := session.GetTroubleshootingHint(m.FailureErr)
		contentParts = append(contentParts, strings.Split(hint, "\n")...)
		contentParts = append(contentParts, "")
	}

	buttonLabel := "Close"
	if m.FailureFatal {
		warningStyle := lipgloss.NewStyle().Foreground(WarningColor)
		contentParts = append(contentParts, warningStyle.Render("Returning to the device list."), "")
		buttonLabel = "Back to devices"
	}

	buttonStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(HighlightColor).
		Foreground(HighlightColor).
		Bold(true).
		Padding(0, 2)
	button := lipgloss.NewStyle().MarginLeft(15).Render(buttonStyle.Render(buttonLabel))
	contentParts = append(contentParts, button)

	content := lipgloss.JoinVertical(lipgloss.Left, contentParts...)

	modalStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ErrorColor).
		Padding(1, 2).
		Width(SafeModalWidth(70, m.Width)) // Centering handled by RenderModal

	return modalStyle.Render(content)
}

// renderEmitConfirmModalContent renders the RF433 replay confirmation
func (m DashboardModel) renderEmitConfirmModalContent() string {
	titleStyle := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	title := titleStyle.Render("⚠ RF433 SIGNAL REPLAY")

	warnings := lipgloss.JoinVertical(lipgloss.Left,
		fmt.Sprintf("This will transmit %q on the 433MHz band.", m.EmitName),
		"",
		"  • RF replays reach through walls and can switch equipment",
		"    in other rooms, including mains relays",
		"  • Make sure you know which receiver this signal is paired to",
	)

	// Replay/Cancel buttons
	buttonStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(SubtleColor).
		Padding(0, 2)

	highlightedButtonStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(HighlightColor).
		Foreground(HighlightColor).
		Bold(true).
		Padding(0, 2)

	replayBtn := buttonStyle.Render("Replay")
	cancelBtn := buttonStyle.Render("Cancel")
	if m.ModalCursor == 0 {
		replayBtn = highlightedButtonStyle.Render("→ Replay")
	} else {
		cancelBtn = highlightedButtonStyle.Render("→ Cancel")
	}

	buttonsRow := lipgloss.JoinHorizontal(lipgloss.Left,
		replayBtn,
		"         ",
		cancelBtn,
	)
	centeredButtons := lipgloss.NewStyle().MarginLeft(8).Render(buttonsRow)

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		warnings,
		"",
		centeredButtons,
	)

	modalStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(WarningColor).
		Padding(1, 2).
		Width(SafeModalWidth(70, m.Width)) // Centering handled by RenderModal

	return modalStyle.Render(content)
}

// renderHelpModalContent renders the key reference modal
func (m DashboardModel) renderHelpModalContent() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Bold(true)
	title := titleStyle.Render("DEVICE DASHBOARD HELP")

	subtitleStyle := lipgloss.NewStyle().
		Foreground(SecondaryColor).
		Bold(true)

	socketHelp := lipgloss.JoinVertical(lipgloss.Left,
		subtitleStyle.Render("Socket controls:"),
		"  t / enter    Toggle power",
		"  r            Re-read the power state",
	)

	blasterHelp := lipgloss.JoinVertical(lipgloss.Left,
		subtitleStyle.Render("Blaster controls:"),
		"  ↑/↓          Select a saved signal",
		"  e / enter    Replay the selected signal",
		"  l            Capture a new signal from a remote",
	)

	commonHelp := lipgloss.JoinVertical(lipgloss.Left,
		subtitleStyle.Render("Common:"),
		"  n            Rename the device",
		"  esc          Back to the device list",
		"  q            Quit",
	)

	instructions := "Press any key to close this help screen"

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		socketHelp,
		"",
		blasterHelp,
		"",
		commonHelp,
		"",
		instructions,
	)

	modalStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Padding(1, 2).
		Width(SafeModalWidth(70, m.Width)) // Centering handled by RenderModal

	return modalStyle.Render(content)
}
