//go:build gui

// Package gui shows the overlay as a small floating desktop window.
package gui

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/go-gl/glfw/v3.3/glfw"

	"voxy/feedback"
	"voxy/log"
	"voxy/overlay"
)

const windowWidth = 260

type App struct {
	ch       *feedback.Channel
	interval time.Duration
	onReady  func()

	// state belongs to the pump goroutine.
	state overlay.State

	fyneApp fyne.App
	window  fyne.Window
	dot     *canvas.Circle
	caption *canvas.Text
	level   *widget.ProgressBar
	busy    *widget.ProgressBarInfinite
	posX    int
	posY    int
	shown   bool

	done     chan struct{}
	quitOnce sync.Once
}

// NewApp builds the overlay. onReady runs in its own goroutine once the
// window exists; it is where the rest of the program starts.
func NewApp(ch *feedback.Channel, interval time.Duration, onReady func()) *App {
	if interval <= 0 {
		interval = feedback.DefaultPollInterval
	}
	return &App{ch: ch, interval: interval, onReady: onReady, done: make(chan struct{})}
}

// Run owns the calling thread until Quit. Call it from the main goroutine.
func (a *App) Run() error {
	a.fyneApp = app.NewWithID("io.voxy.overlay")
	a.fyneApp.Settings().SetTheme(overlayTheme{})

	if desk, ok := a.fyneApp.(desktop.App); ok {
		menu := fyne.NewMenu("voxy",
			fyne.NewMenuItem("Quit", a.Quit),
		)
		desk.SetSystemTrayMenu(menu)
		desk.SetSystemTrayIcon(trayIcon())
	}

	var screenW, screenH int
	if monitor := glfw.GetPrimaryMonitor(); monitor != nil {
		_, _, screenW, screenH = monitor.GetWorkarea()
	} else {
		screenW, screenH = 1920, 1080
	}

	if drv, ok := a.fyneApp.Driver().(desktop.Driver); ok {
		a.window = drv.CreateSplashWindow()
	} else {
		a.window = a.fyneApp.NewWindow("voxy")
	}

	a.dot = canvas.NewCircle(recordingColor)
	a.dot.Resize(fyne.NewSize(12, 12))
	a.caption = canvas.NewText("", color.White)
	a.caption.TextStyle = fyne.TextStyle{Bold: true}
	a.level = widget.NewProgressBar()
	a.level.TextFormatter = func() string { return "" }
	a.busy = widget.NewProgressBarInfinite()
	a.busy.Hide()

	dot := container.NewGridWrap(fyne.NewSize(12, 12), a.dot)
	content := container.NewPadded(container.NewVBox(
		container.NewHBox(dot, a.caption),
		container.NewStack(a.level, a.busy),
	))
	a.window.SetContent(content)
	a.window.SetFixedSize(true)
	a.window.SetPadded(false)

	size := fyne.NewSize(windowWidth, content.MinSize().Height)
	a.window.Resize(size)
	a.posX = (screenW - int(size.Width)) / 2
	a.posY = screenH - int(size.Height) - 40

	a.fyneApp.Lifecycle().SetOnStopped(func() {
		a.quitOnce.Do(func() { close(a.done) })
	})

	go a.pump()
	go a.onReady()

	// The window stays hidden until the first StartRecording.
	a.fyneApp.Run()
	return nil
}

// Done is closed once the window is gone.
func (a *App) Done() <-chan struct{} { return a.done }

func (a *App) Quit() {
	if a.fyneApp != nil {
		a.fyneApp.Quit()
	}
}

func (a *App) pump() {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.done:
			return
		case now := <-ticker.C:
			a.ch.Drain(func(m feedback.Message) {
				a.state.Apply(m, now)
			})
			a.state.Advance(now)
			snap := a.state
			fyne.Do(func() { a.render(&snap, now) })
		}
	}
}

func (a *App) render(s *overlay.State, now time.Time) {
	if !s.Visible {
		a.hide()
		return
	}

	a.caption.Text = s.Caption(now)
	switch s.Phase() {
	case overlay.PhaseRecording:
		a.caption.Color = color.White
		a.dot.FillColor = recordingColor
		a.level.SetValue(s.Level)
		a.level.Show()
		a.busy.Stop()
		a.busy.Hide()
	case overlay.PhaseProcessing:
		a.caption.Color = processingColor
		a.dot.FillColor = processingColor
		a.level.Hide()
		a.busy.Show()
		a.busy.Start()
	case overlay.PhaseMessage:
		a.caption.Color = messageColor
		a.dot.FillColor = messageColor
	default:
		a.level.SetValue(0)
	}
	a.caption.Refresh()
	a.dot.Refresh()
	a.show()
}

// show raises the window without taking focus.
func (a *App) show() {
	if a.shown {
		return
	}
	a.shown = true
	if glfwWin := glfw.GetCurrentContext(); glfwWin != nil {
		glfwWin.SetPos(a.posX, a.posY)
		glfwWin.SetAttrib(glfw.FocusOnShow, glfw.False)
		glfwWin.SetAttrib(glfw.Floating, glfw.True)
		glfwWin.Show()
		return
	}
	log.Debugf("gui: no GL context, showing through fyne")
	a.window.Show()
}

func (a *App) hide() {
	if !a.shown {
		return
	}
	a.shown = false
	a.busy.Stop()
	a.window.Hide()
}
