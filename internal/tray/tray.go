// Package tray provides a system tray interface for the handsign pipeline.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/handsign/internal/app"
	"github.com/ayusman/handsign/internal/mode"
)

// menuState is what the menu shows for one status.
type menuState struct {
	Mode       string
	Examples   string
	Label      string
	Detected   string
	Collect    string
	CanCollect bool
	CanTrain   bool
	CanLoad    bool
}

func stateFor(s app.Status) menuState {
	st := menuState{
		Mode:       "Mode: " + s.Mode.String(),
		Examples:   fmt.Sprintf("Examples: %d", s.Examples),
		Label:      "Label: " + s.Label.String(),
		Detected:   "Detected: none",
		Collect:    "Start Collecting",
		CanCollect: s.Mode == mode.Idle || s.Mode == mode.Collecting,
		CanTrain:   s.Mode == mode.Idle && s.Examples > 0,
		CanLoad:    s.Mode == mode.Idle || s.Mode == mode.Collecting,
	}
	if s.Detected != "" {
		st.Detected = fmt.Sprintf("Detected: %s (%.2f)", s.Detected, s.Decision.Score)
	}
	if s.Mode == mode.Collecting {
		st.Collect = "Stop Collecting"
	}
	return st
}

// Tray represents the system tray application.
type Tray struct {
	onCollect func()
	onTrain   func()
	onLoad    func()
	onOpen    func()
	onQuit    func()
	state     menuState
	mu        sync.RWMutex

	// Menu items stored for later updates
	menuMode     *systray.MenuItem
	menuExamples *systray.MenuItem
	menuLabel    *systray.MenuItem
	menuDetected *systray.MenuItem
	menuCollect  *systray.MenuItem
	menuTrain    *systray.MenuItem
	menuLoad     *systray.MenuItem
}

// New creates a new Tray showing the Loading mode.
func New() *Tray {
	return &Tray{state: stateFor(app.Status{Mode: mode.Loading})}
}

// OnCollect sets the callback for the collect toggle.
func (t *Tray) OnCollect(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCollect = fn
}

// OnTrain sets the callback for the train item.
func (t *Tray) OnTrain(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTrain = fn
}

// OnLoad sets the callback for the load item.
func (t *Tray) OnLoad(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onLoad = fn
}

// OnOpen sets the callback for opening the web interface.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// Follow updates the menu with every status received until updates is closed.
func (t *Tray) Follow(updates <-chan app.Status) {
	for s := range updates {
		t.Update(s)
	}
}

// Update shows s in the menu.
func (t *Tray) Update(s app.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = stateFor(s)
	t.apply()
}

// apply pushes the current state to the menu. Callers hold mu.
func (t *Tray) apply() {
	if t.menuMode == nil {
		return
	}
	t.menuMode.SetTitle(t.state.Mode)
	t.menuExamples.SetTitle(t.state.Examples)
	t.menuLabel.SetTitle(t.state.Label)
	t.menuDetected.SetTitle(t.state.Detected)
	t.menuCollect.SetTitle(t.state.Collect)
	setEnabled(t.menuCollect, t.state.CanCollect)
	setEnabled(t.menuTrain, t.state.CanTrain)
	setEnabled(t.menuLoad, t.state.CanLoad)
}

func setEnabled(item *systray.MenuItem, enabled bool) {
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("handsign")
	systray.SetTooltip("handsign gesture classifier")

	t.mu.Lock()
	t.menuMode = systray.AddMenuItem("", "Current mode")
	t.menuMode.Disable()
	t.menuExamples = systray.AddMenuItem("", "Collected examples")
	t.menuExamples.Disable()
	t.menuLabel = systray.AddMenuItem("", "Label applied to collected examples")
	t.menuLabel.Disable()
	t.menuDetected = systray.AddMenuItem("", "Detected gesture")
	t.menuDetected.Disable()
	systray.AddSeparator()

	t.menuCollect = systray.AddMenuItem("", "Toggle collection")
	t.menuTrain = systray.AddMenuItem("Train", "Train on the collected examples")
	t.menuLoad = systray.AddMenuItem("Load Latest Session", "Load the most recent stored dataset")
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open...", "Open the web interface")
	menuQuit := systray.AddMenuItem("Quit", "Quit handsign")
	collect, train, load := t.menuCollect, t.menuTrain, t.menuLoad
	t.apply()
	t.mu.Unlock()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-collect.ClickedCh:
				t.call(func() func() { return t.onCollect })
			case <-train.ClickedCh:
				t.call(func() func() { return t.onTrain })
			case <-load.ClickedCh:
				t.call(func() func() { return t.onLoad })
			case <-menuOpen.ClickedCh:
				t.call(func() func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// call runs the callback returned by get outside the lock.
func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}
