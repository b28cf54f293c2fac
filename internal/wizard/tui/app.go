package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/halloy/wiwo/internal/config"
	"github.com/halloy/wiwo/internal/discovery"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenDiscovery Screen = "discovery"
	ScreenDashboard Screen = "dashboard"
)

// Messages for screen transitions
type screenTransitionMsg struct {
	screen Screen
}

type goBackMsg struct{}
type quitMsg struct{}

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	// Current screen state
	CurrentScreen  Screen
	PreviousScreen Screen

	// Screen models
	DiscoveryModel DiscoveryModel
	DashboardModel DashboardModel

	// Shared application state
	SelectedRecord *discovery.DeviceRecord
	Registry       *config.Registry

	// UI state
	Width  int
	Height int
}

// NewAppModel creates a new application model starting at the specified
// screen. A non-nil record lets callers jump straight to the dashboard
// for a known device.
func NewAppModel(startScreen Screen, record *discovery.DeviceRecord, registry *config.Registry) AppModel {
	model := AppModel{
		CurrentScreen:  startScreen,
		PreviousScreen: "",
		SelectedRecord: record,
		Registry:       registry,
	}

	// Initialize the starting screen
	if startScreen == ScreenDashboard && record != nil {
		model.DashboardModel = NewDashboardModel(record, registry)
	} else {
		// Without a device to control, discovery is the only start
		model.CurrentScreen = ScreenDiscovery
		model.DiscoveryModel = NewDiscoveryModel(registry)
	}

	return model
}

// Init initializes the application
func (m AppModel) Init() tea.Cmd {
	// Initialize the current screen's model
	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.DiscoveryModel.Init()
	case ScreenDashboard:
		return m.DashboardModel.Init()
	default:
		return nil
	}
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		// Propagate to all screens
		m.DiscoveryModel.Width = msg.Width
		m.DiscoveryModel.Height = msg.Height
		m.DashboardModel.Width = msg.Width
		m.DashboardModel.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		// Global quit handler
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case screenTransitionMsg:
		return m.transitionTo(msg.screen)

	case goBackMsg:
		return m.goBack()

	case quitMsg:
		return m, tea.Quit
	}

	// Route to current screen
	return m.updateCurrentScreen(msg)
}

// updateCurrentScreen routes updates to the currently active screen
func (m AppModel) updateCurrentScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.CurrentScreen {
	case ScreenDiscovery:
		updated, c := m.DiscoveryModel.Update(msg)
		m.DiscoveryModel = updated.(DiscoveryModel)
		cmd = c

		// Check if user selected a device
		if m.DiscoveryModel.Selected {
			m.SelectedRecord = m.DiscoveryModel.GetSelectedRecord()
			if m.SelectedRecord != nil {
				// Swallows the standalone quit the discovery model emits
				return m.transitionTo(ScreenDashboard)
			}
		}

		// Check for quit (normal mode only, not during scan)
		if !m.DiscoveryModel.Scanning && !m.DiscoveryModel.ManualMode {
			if keyMsg, ok := msg.(tea.KeyMsg); ok {
				if keyMsg.String() == "esc" {
					return m, tea.Quit
				}
			}
		}

	case ScreenDashboard:
		updated, c := m.DashboardModel.Update(msg)
		m.DashboardModel = updated.(DashboardModel)
		cmd = c

		// Check if user wants to go back
		if m.DashboardModel.IsBackRequested() {
			return m.goBack()
		}
	}

	return m, cmd
}

// transitionTo transitions to a new screen
func (m AppModel) transitionTo(screen Screen) (tea.Model, tea.Cmd) {
	m.PreviousScreen = m.CurrentScreen
	m.CurrentScreen = screen

	var cmd tea.Cmd

	// Initialize the target screen with current state
	switch screen {
	case ScreenDiscovery:
		m.DiscoveryModel = NewDiscoveryModel(m.Registry)
		m.DiscoveryModel.Width = m.Width
		m.DiscoveryModel.Height = m.Height
		cmd = m.DiscoveryModel.Init()

	case ScreenDashboard:
		if m.SelectedRecord != nil {
			// The dashboard claims the device asynchronously; connect
			// failures surface in its failure modal
			m.DashboardModel = NewDashboardModel(m.SelectedRecord, m.Registry)
			m.DashboardModel.Width = m.Width
			m.DashboardModel.Height = m.Height
			cmd = m.DashboardModel.Init()
		}
	}

	return m, cmd
}

// goBack returns to the previous screen
func (m AppModel) goBack() (tea.Model, tea.Cmd) {
	switch m.CurrentScreen {
	case ScreenDiscovery:
		// Can't go back from discovery - quit instead
		return m, tea.Quit

	case ScreenDashboard:
		// Release the device claim before leaving the screen
		m.DashboardModel.CloseSession()
		return m.transitionTo(ScreenDiscovery)

	default:
		return m, tea.Quit
	}
}

// Cleanup releases any live device session. The wizard calls this on
// the final model after the program exits, so quitting from the
// dashboard does not leave the device claimed until the vendor timeout.
func (m *AppModel) Cleanup() {
	m.DashboardModel.CloseSession()
}

// View renders the current screen
// Each screen handles its own container using RenderApplicationContainer()
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.DiscoveryModel.View()
	case ScreenDashboard:
		return m.DashboardModel.View()
	default:
		return "Unknown screen"
	}
}
