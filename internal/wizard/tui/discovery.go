package tui

import (
	"fmt"
	"io"
	"net/netip"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/halloy/wiwo/internal/config"
	"github.com/halloy/wiwo/internal/discovery"
	"github.com/halloy/wiwo/internal/logging"
)

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	records []*discovery.DeviceRecord
	err     error
}
type probeCompleteMsg struct {
	record *discovery.DeviceRecord
	err    error
}

// discoveryKeyMap defines key bindings for the discovery screen
type discoveryKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Rescan  key.Binding
	Manual  key.Binding
	Quit    key.Binding
	Confirm key.Binding // For manual mode
	Cancel  key.Binding // For manual mode
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// manualModeKeyMap defines key bindings for manual IP entry mode
type manualModeKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (m manualModeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{m.Confirm, m.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (m manualModeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.Confirm, m.Cancel},
	}
}

// scanningKeyMap defines key bindings for scanning mode
type scanningKeyMap struct {
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (s scanningKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{s.Manual, s.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (s scanningKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{s.Manual, s.Quit},
	}
}

// emptyScreenKeyMap defines key bindings for empty results screen
type emptyScreenKeyMap struct {
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (e emptyScreenKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{e.Rescan, e.Manual, e.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (e emptyScreenKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{e.Rescan, e.Manual, e.Quit},
	}
}

// deviceItem wraps a DeviceRecord for use with bubbles/list
type deviceItem struct {
	record   *discovery.DeviceRecord
	nickname string
}

// Implement list.Item interface
func (d deviceItem) FilterValue() string {
	// Filter by nickname, MAC, IP, or model
	return d.nickname + " " + d.record.MAC.String() + " " + d.record.IP.String() + " " + d.record.Model
}

// Title returns the device name for list display
func (d deviceItem) Title() string {
	return deviceTitle(d.record, d.nickname)
}

// Description returns device details for list display
func (d deviceItem) Description() string {
	state := "Ready"
	if d.record.Kind == discovery.KindSocket {
		state = FormatPowerState(d.record.On)
	}
	return fmt.Sprintf("%s • %s • %s", d.record.IP, d.record.MAC, state)
}

// deviceTitle builds a display name for a device. User nicknames win;
// otherwise the last three MAC octets keep same-kind devices apart.
func deviceTitle(record *discovery.DeviceRecord, nickname string) string {
	if nickname != "" {
		return nickname
	}
	short := record.MAC.String()
	if len(short) > 9 {
		short = short[9:]
	}
	switch record.Kind {
	case discovery.KindSocket:
		return "Socket " + short
	case discovery.KindBlaster:
		return "Blaster " + short
	default:
		return "Device " + short
	}
}

// deviceDelegate is a custom list delegate for rendering device cards
type deviceDelegate struct {
	width int
}

func (d deviceDelegate) Height() int { return 8 } // Card height including borders

func (d deviceDelegate) Spacing() int { return 1 } // Spacing between cards

func (d deviceDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d deviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(deviceItem)
	if !ok {
		return
	}

	record := entry.record
	selected := index == m.Index()

	deviceName := deviceTitle(record, entry.nickname)

	// Socket cards show live power state; blasters are just ready
	state := lipgloss.NewStyle().Foreground(SecondaryColor).Bold(true).Render("Ready")
	if record.Kind == discovery.KindSocket {
		state = FormatPowerState(record.On)
	}

	// Build content lines
	var content strings.Builder

	// Add selection indicator to device name
	if selected {
		content.WriteString(SelectedMenuItemStyle.Render("→ " + deviceName))
	} else {
		content.WriteString("  " + deviceName)
	}
	content.WriteString("\n\n")

	// Device details
	content.WriteString(fmt.Sprintf("  Kind:   %s\n", FormatKind(record.Kind)))
	content.WriteString(fmt.Sprintf("  MAC:    %s\n", record.MAC))
	content.WriteString(fmt.Sprintf("  IP:     %s  (model %s)\n", record.IP, record.Model))
	content.WriteString(fmt.Sprintf("  State:  %s", state))

	// Create responsive card style
	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(1, 2).
		MarginLeft(2)

	// Calculate card width (leave room for margins and borders)
	cardWidth := d.width - 6 // 2 for margin-left, 4 for border + padding
	if cardWidth < MinTerminalWidth-6 {
		cardWidth = MinTerminalWidth - 6
	}
	if cardWidth > MaxContentWidth-6 {
		cardWidth = MaxContentWidth - 6
	}

	cardStyle = cardStyle.Width(cardWidth)

	// Highlight selected card
	if selected {
		cardStyle = cardStyle.BorderForeground(HighlightColor)
	}

	fmt.Fprint(w, cardStyle.Render(content.String()))
}

// DiscoveryModel represents the device discovery screen state
type DiscoveryModel struct {
	// Discovery state
	Scanning   bool
	ScanWindow time.Duration
	Broadcast  netip.Addr
	DeviceList list.Model
	Selected   bool
	Err        error

	// Manual IP entry state
	ManualMode  bool
	IPInput     textinput.Model
	ManualErr   string
	ProbeTarget string

	// User device registry (nicknames), mutated only from Update
	Registry *config.Registry

	// UI state
	Width         int
	Height        int
	Spinner       spinner.Model
	ProgressBar   progress.Model
	ScanStartTime time.Time
	Help          help.Model
	Keys          discoveryKeyMap
	ManualKeys    manualModeKeyMap
	ScanningKeys  scanningKeyMap
	EmptyKeys     emptyScreenKeyMap
}

// NewDiscoveryModel creates a new discovery screen model. Scan tuning
// comes from registry preferences when present.
func NewDiscoveryModel(registry *config.Registry) DiscoveryModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	// Initialize IP input
	ipInput := textinput.New()
	ipInput.Placeholder = "192.168.1.37"
	ipInput.CharLimit = 15 // Max length for IPv4 address
	ipInput.Width = 30

	// Initialize progress bar
	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	// Initialize device list with custom delegate
	delegate := deviceDelegate{width: MinTerminalWidth}
	deviceList := list.New([]list.Item{}, delegate, 0, 0)
	deviceList.Title = "Discovered Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetFilteringEnabled(true)
	deviceList.Styles.Title = TitleStyle

	// Initialize help
	h := help.New()

	// Scan tuning from preferences
	scanWindow := discovery.DefaultWait
	broadcast := discovery.DefaultBroadcast
	if registry != nil && registry.Preferences != nil {
		if registry.Preferences.ScanWait > 0 {
			scanWindow = time.Duration(registry.Preferences.ScanWait) * time.Second
		}
		if addr, err := netip.ParseAddr(registry.Preferences.Broadcast); err == nil {
			broadcast = addr
		}
	}

	// Initialize key bindings for normal mode
	keys := discoveryKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "control"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Manual: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "manual IP"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q", "quit"),
		),
	}

	// Initialize key bindings for manual entry mode
	manualKeys := manualModeKeyMap{
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "probe"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}

	// Initialize key bindings for scanning mode
	scanningKeys := scanningKeyMap{
		Manual: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "manual IP"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}

	// Initialize key bindings for empty results
	emptyKeys := emptyScreenKeyMap{
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Manual: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "manual IP"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}

	return DiscoveryModel{
		Scanning:     false,
		ScanWindow:   scanWindow,
		Broadcast:    broadcast,
		DeviceList:   deviceList,
		Selected:     false,
		ManualMode:   false,
		IPInput:      ipInput,
		Registry:     registry,
		Spinner:      s,
		ProgressBar:  progressBar,
		Help:         h,
		Keys:         keys,
		ManualKeys:   manualKeys,
		ScanningKeys: scanningKeys,
		EmptyKeys:    emptyKeys,
	}
}

// Init initializes the discovery model
func (m DiscoveryModel) Init() tea.Cmd {
	// Start scanning immediately - send start message then begin scan
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		scanDevicesCmd(m.ScanWindow, m.Broadcast),
		m.Spinner.Tick,
	)
}

// Update handles messages and updates the model
func (m DiscoveryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		// Update list size
		m.DeviceList.SetWidth(msg.Width - 4)
		m.DeviceList.SetHeight(msg.Height - 10) // Leave room for header/footer

	case scanStartMsg:
		m.Scanning = true
		m.ScanStartTime = time.Now()

	case scanCompleteMsg:
		m.Scanning = false
		m.ProbeTarget = ""
		m.Err = msg.err
		// Convert records to list items, folding in registry nicknames
		items := make([]list.Item, 0, len(msg.records))
		for _, record := range msg.records {
			items = append(items, deviceItem{record: record, nickname: m.rememberDevice(record)})
		}
		m.DeviceList.SetItems(items)
		m.saveRegistry()

	case probeCompleteMsg:
		m.Scanning = false
		m.ProbeTarget = ""
		if msg.err != nil {
			// Back to the entry form so the address can be corrected
			m.ManualMode = true
			m.ManualErr = fmt.Sprintf("no device answered at %s", m.IPInput.Value())
			m.IPInput.Focus()
			return m, textinput.Blink
		}
		item := deviceItem{record: msg.record, nickname: m.rememberDevice(msg.record)}
		items := append([]list.Item{item}, m.DeviceList.Items()...)
		m.DeviceList.SetItems(items)
		m.DeviceList.Select(0) // Select the newly added item
		m.IPInput.SetValue("")
		m.saveRegistry()

	case spinner.TickMsg:
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	// Update list if not in manual mode or scanning
	if !m.ManualMode && !m.Scanning {
		m.DeviceList, cmd = m.DeviceList.Update(msg)
	}

	return m, cmd
}

// rememberDevice records a discovery result in the registry and returns
// the nickname the user gave the device, if any.
func (m *DiscoveryModel) rememberDevice(record *discovery.DeviceRecord) string {
	if m.Registry == nil {
		return ""
	}
	return m.Registry.RememberDevice(record).Nickname
}

// saveRegistry persists registry updates. Failures are logged, not
// surfaced: a read-only config dir should not break scanning.
func (m *DiscoveryModel) saveRegistry() {
	if m.Registry == nil {
		return
	}
	if err := m.Registry.Save(); err != nil {
		logging.Warn("Failed to save device registry", zap.Error(err))
	}
}

// updateNormalMode handles keyboard input in normal device list mode
func (m DiscoveryModel) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		// Go back to main menu (in real integration)
		return m, tea.Quit

	case "enter", " ":
		// Get selected device from list
		if selectedItem := m.DeviceList.SelectedItem(); selectedItem != nil {
			m.Selected = true
			// The app coordinator intercepts Selected and switches screens;
			// the quit only fires when this model runs standalone
			return m, tea.Quit
		}

	case "r":
		// Rescan
		m.DeviceList.SetItems([]list.Item{})
		m.Err = nil
		return m, tea.Batch(
			func() tea.Msg { return scanStartMsg{} },
			scanDevicesCmd(m.ScanWindow, m.Broadcast),
			m.Spinner.Tick,
		)

	case "m":
		// Switch to manual IP entry mode
		m.ManualMode = true
		m.ManualErr = ""
		m.IPInput.SetValue("")
		m.IPInput.Focus()
	}

	// Let the list handle up/down navigation
	return m, nil
}

// updateManualMode handles keyboard input in manual IP entry mode
func (m DiscoveryModel) updateManualMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.String() {
	case "ctrl+c", "esc":
		// Cancel manual entry
		m.ManualMode = false
		m.ManualErr = ""
		m.IPInput.SetValue("")
		m.IPInput.Blur()
		return m, nil

	case "enter":
		value := m.IPInput.Value()
		if value == "" {
			return m, nil
		}
		addr, err := netip.ParseAddr(value)
		if err != nil {
			m.ManualErr = fmt.Sprintf("%q is not a valid IP address", value)
			return m, nil
		}
		// A directed probe fetches the MAC and model; a record cannot be
		// fabricated from an address alone because sessions key on the MAC
		m.ManualMode = false
		m.ManualErr = ""
		m.IPInput.Blur()
		m.Scanning = true
		m.ProbeTarget = addr.String()
		m.ScanStartTime = time.Now()
		return m, tea.Batch(probeDeviceCmd(addr), m.Spinner.Tick)
	}

	// Update the text input
	m.IPInput, cmd = m.IPInput.Update(msg)
	return m, cmd
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	// Use default width if not set
	width := m.Width
	if width == 0 {
		width = 72
	}

	// Build main content area
	var content string
	if m.ManualMode {
		content = m.renderManualEntry()
	} else if m.Scanning {
		content = m.renderScanningEnhanced(width)
	} else {
		content = m.renderDeviceResults()
	}

	// Determine context-sensitive help text using bubbles/help
	var helpText string
	if m.ManualMode {
		helpText = m.Help.View(m.ManualKeys)
	} else if m.Scanning {
		helpText = m.Help.View(m.ScanningKeys)
	} else if len(m.DeviceList.Items()) > 0 {
		helpText = m.Help.View(m.Keys)
	} else {
		helpText = m.Help.View(m.EmptyKeys)
	}

	// Wrap with application container (full-screen layout with height)
	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

// renderScanningEnhanced renders a prominent, centered scanning progress display
// Renders the discovery screen using Lipgloss placement for automatic centering
func (m DiscoveryModel) renderScanningEnhanced(width int) string {
	elapsed := time.Since(m.ScanStartTime)

	// Progress across the collection window
	window := m.ScanWindow
	if window <= 0 {
		window = discovery.DefaultWait
	}
	progressPercent := min(100, int(elapsed.Milliseconds()*100/window.Milliseconds()))
	progressFloat := float64(progressPercent) / 100.0

	// Build content components
	title := fmt.Sprintf("%s SEARCHING FOR DEVICES", m.Spinner.View())
	subtitle := "Scanning your network for WiWo devices..."
	if m.ProbeTarget != "" {
		title = fmt.Sprintf("%s PROBING DEVICE", m.Spinner.View())
		subtitle = fmt.Sprintf("Asking %s to identify itself...", m.ProbeTarget)
	}

	// Use bubbles/progress component (ViewAs already includes percentage display)
	progressBar := m.ProgressBar.ViewAs(progressFloat)
	elapsedText := fmt.Sprintf("Elapsed: %ds", int(elapsed.Seconds()))

	// Use lipgloss.JoinVertical for layout composition
	content := lipgloss.JoinVertical(lipgloss.Center,
		"", // Top spacing
		RenderTitle(title),
		"",
		SubtitleStyle.Render(subtitle),
		"",
		progressBar,
		"",
		SubtitleStyle.Render(elapsedText),
		"", // Bottom spacing
	)

	// Use lipgloss.Place for centering (not manual padding!)
	// Height = 0 means "no vertical constraint" - let content determine height
	return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
}

// scanHints is shown whenever a scan comes back empty or broken
const scanHints = `Troubleshooting:
  • Ensure devices are plugged in with a lit WiFi LED
  • Devices only answer probes from the same subnet
  • A device claimed by another controller stays silent for ~3 minutes
  • Try rescanning (use 'r')`

// renderDeviceResults renders the device list or "no devices found" message
func (m DiscoveryModel) renderDeviceResults() string {
	var b strings.Builder

	b.WriteString("\n")

	if m.Err != nil {
		// Error state
		b.WriteString(RenderError(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n")
		b.WriteString(RenderInfo(scanHints))
		b.WriteString("\n")

	} else if len(m.DeviceList.Items()) == 0 {
		// No devices found
		b.WriteString("  ")
		warningStyle := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
		b.WriteString(warningStyle.Render("⚠ No devices found on your network"))
		b.WriteString("\n")
		b.WriteString(RenderInfo(scanHints))
		b.WriteString("\n")

	} else {
		// Devices found - render the list
		b.WriteString("  ")
		b.WriteString(RenderSuccess(fmt.Sprintf("Found %d device(s)", len(m.DeviceList.Items()))))
		b.WriteString("\n\n")
		b.WriteString(m.DeviceList.View())
	}

	return b.String()
}

// renderManualEntry renders the manual IP entry dialog
func (m DiscoveryModel) renderManualEntry() string {
	var b strings.Builder

	b.WriteString(RenderSubtitle("Enter device IP address"))
	b.WriteString("\n\n")

	// Input box using textinput component
	b.WriteString("  IP Address: ")
	b.WriteString(m.IPInput.View())
	b.WriteString("\n\n")

	if m.ManualErr != "" {
		errStyle := lipgloss.NewStyle().Foreground(ErrorColor)
		b.WriteString("  " + errStyle.Render("✗ "+m.ManualErr))
		b.WriteString("\n\n")
	}

	return b.String()
}

// GetSelectedRecord returns the selected device record (if any)
func (m DiscoveryModel) GetSelectedRecord() *discovery.DeviceRecord {
	if m.Selected {
		if selectedItem := m.DeviceList.SelectedItem(); selectedItem != nil {
			if item, ok := selectedItem.(deviceItem); ok {
				return item.record
			}
		}
	}
	return nil
}

// scanDevicesCmd returns a command that performs a broadcast scan
func scanDevicesCmd(wait time.Duration, broadcast netip.Addr) tea.Cmd {
	return func() tea.Msg {
		scanner := discovery.NewScanner()
		scanner.Wait = wait
		scanner.Broadcast = broadcast

		found, err := scanner.DiscoverAll()

		// Stable ordering for the list; the scan map is keyed by source address
		records := make([]*discovery.DeviceRecord, 0, len(found))
		for _, record := range found {
			r := record
			records = append(records, &r)
		}
		sort.Slice(records, func(i, j int) bool {
			return records[i].IP.Less(records[j].IP)
		})

		return scanCompleteMsg{
			records: records,
			err:     err,
		}
	}
}

// probeDeviceCmd returns a command that probes a single address
func probeDeviceCmd(target netip.Addr) tea.Cmd {
	return func() tea.Msg {
		scanner := discovery.NewScanner()
		record, err := scanner.DiscoverOne(target)
		return probeCompleteMsg{
			record: record,
			err:    err,
		}
	}
}
