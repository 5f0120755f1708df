package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/google/uuid"

	"voxy/audio"
	"voxy/beep"
	"voxy/config"
	"voxy/doctor"
	"voxy/feedback"
	"voxy/hotkey"
	"voxy/inject"
	"voxy/log"
	"voxy/overlay"
	"voxy/recorder"
	"voxy/shutdown"
	"voxy/transcriber"
)

var version = "dev"

type options struct {
	configPath string
	logPath    string
	device     string
	overlay    string
	setup      bool
	version    bool
	doctor     bool
	test       bool
	crash      bool
	args       []string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("voxy", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "config file (default: $VOXY_CONFIG or "+config.DefaultPath()+")")
	fs.StringVar(&o.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	fs.StringVar(&o.device, "device", "", "use named microphone device")
	fs.StringVar(&o.overlay, "overlay", "", "overlay: tui, gui or none")
	fs.BoolVar(&o.setup, "setup", false, "select microphone device interactively")
	fs.BoolVar(&o.version, "version", false, "print version and exit")
	fs.BoolVar(&o.doctor, "doctor", false, "run system diagnostics and exit (optional WAV argument probes transcription)")
	fs.BoolVar(&o.test, "test", false, "headless mode driven by stdin, audio from the WAV argument")
	fs.BoolVar(&o.crash, "crash", false, "trigger a synthetic panic to verify crash logging")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.args = fs.Args()
	if o.test && len(o.args) == 0 {
		return o, errors.New("-test needs a WAV file argument")
	}
	return o, nil
}

// run is the whole program. It returns the process exit code.
func run(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if opts.version {
		fmt.Printf("voxy %s\n", version)
		return 0
	}

	logDir, err := log.ResolveDir(opts.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logDir)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	if f, err := log.OpenCrashLog(); err == nil {
		debug.SetCrashOutput(f, debug.CrashOptions{})
		f.Close()
	}
	if opts.crash {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	cfg, cfgErr := loadConfig(opts)
	if cfgErr != nil && !errors.Is(cfgErr, config.ErrMissingAPIKey) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cfgErr)
		return 1
	}

	if err := log.SetLevel(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if opts.test || (!opts.doctor && cfg.Overlay != "tui") {
		log.MirrorTo(os.Stderr)
	}
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	switch {
	case opts.doctor:
		return runDoctor(cfg, cfgErr, opts.args)
	case opts.test:
		return runHeadless(cfg, opts.args[0], os.Stdin, os.Stdout)
	}

	if cfgErr != nil {
		reportMissingKey(cfg)
		return 1
	}
	if cfg.Overlay == "gui" && !guiAvailable {
		fmt.Fprintln(os.Stderr, "Error: voxy was built without GUI support (rebuild with -tags gui)")
		return 1
	}

	env, code := setup(cfg, opts)
	if env == nil {
		return code
	}
	defer env.close()
	if cfg.Overlay == "gui" {
		return runGUI(env)
	}
	return serve(env, nil)
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(opts options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil && !errors.Is(err, config.ErrMissingAPIKey) {
		return cfg, err
	}
	if opts.device != "" {
		cfg.Audio.Device = opts.device
	}
	if opts.overlay != "" {
		cfg.Overlay = opts.overlay
	}
	return cfg, cfg.Validate()
}

func reportMissingKey(cfg config.Config) {
	env := "OPENAI_API_KEY"
	if cfg.Transcription.Provider == "groq" {
		env = "GROQ_API_KEY"
	}
	msg := fmt.Sprintf("No API key for %s. Set %s or transcription.api_key in %s.",
		cfg.Transcription.Provider, env, config.DefaultPath())
	fmt.Fprintln(os.Stderr, "Error: "+msg)
	if err := beeep.Alert("voxy", msg, ""); err != nil {
		log.Warnf("alert: %v", err)
	}
	log.Error("startup: " + msg)
}

func newTranscriber(cfg config.Config) (transcriber.Transcriber, error) {
	t := cfg.Transcription
	return transcriber.New(transcriber.Config{
		Provider:   t.Provider,
		APIKey:     t.APIKey,
		BaseURL:    t.BaseURL,
		Model:      t.Model,
		Language:   t.Language,
		Timeout:    cfg.Timeout(),
		MaxRetries: t.MaxRetries,
	})
}

// recorderConfig maps the audio section onto a recorder configuration
// writing to a fresh temp file.
func recorderConfig(cfg config.Config) recorder.Config {
	rc := recorder.DefaultConfig()
	rc.OutputPath = tempAudioPath(cfg.TempDir, uuid.NewString())
	rc.SampleRate = cfg.Audio.SampleRate
	rc.Channels = cfg.Audio.Channels
	rc.SilenceThreshold = cfg.Audio.SilenceThreshold
	rc.SilenceStop = cfg.SilenceStop()
	return rc
}

func runDoctor(cfg config.Config, cfgErr error, args []string) int {
	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	deps := doctor.Deps{
		Config:    cfg,
		ConfigErr: cfgErr,
		Clipboard: inject.SystemClipboard{},
		Diagnose:  hotkey.Diagnose,
		Notify: func(title, msg string) error {
			return beeep.Notify(title, msg, "")
		},
	}
	if len(args) > 0 {
		deps.ProbeFile = args[0]
	}
	if actx, err := audio.NewContext(); err != nil {
		log.Warnf("doctor: audio context: %v", err)
	} else {
		defer actx.Close()
		deps.Audio = actx
	}
	if cfgErr == nil {
		if stt, err := newTranscriber(cfg); err == nil {
			deps.Transcriber = stt
		}
	}
	return doctor.Run(ctx, os.Stdout, doctor.Checks(deps))
}

// environment holds everything serve needs. Built by setup.
type environment struct {
	cfg     config.Config
	combo   hotkey.Combo
	actx    audio.Context
	capture audio.CaptureDevice
	ch      *feedback.Channel
	app     *App
	hk      hotkey.Hotkey
	info    overlay.Info
}

func (e *environment) close() {
	e.capture.Close()
	e.actx.Close()
}

// setup opens the devices and builds the workflow. A nil environment
// means the program should exit with the returned code.
func setup(cfg config.Config, opts options) (*environment, int) {
	combo, err := hotkey.ParseCombo(cfg.Hotkey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, 1
	}

	stt, err := newTranscriber(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, 1
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return nil, 1
	}

	var dev *audio.DeviceInfo
	if opts.setup && cfg.Audio.Device == "" {
		dev, err = audio.SelectDevice(actx)
		if err != nil && !errors.Is(err, audio.ErrSelectionCancelled) {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintln(os.Stderr, "Warning: device selection failed, using the default device")
		}
	} else if cfg.Audio.Device != "" {
		dev, err = audio.FindDevice(actx, cfg.Audio.Device)
		if err != nil {
			log.Warnf("%v; using the default device", err)
			fmt.Fprintf(os.Stderr, "Warning: %v, using the default device\n", err)
		}
	}

	rc := recorderConfig(cfg)
	capture, err := actx.NewCapture(dev, rc.CaptureConfig())
	if err != nil {
		actx.Close()
		log.Errorf("capture device init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing capture device: %v\n", err)
		return nil, 1
	}

	mode, _ := inject.ParseMode(cfg.Inject.Mode)
	inj, err := inject.New(mode, inject.Options{
		KeyInterval:  cfg.KeyInterval(),
		RestoreAfter: cfg.RestoreAfter(),
	})
	if err != nil {
		log.Warnf("injection unavailable, printing transcripts instead: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		fmt.Fprintln(os.Stderr, "Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		inj = &inject.Writer{W: os.Stdout}
	}

	ch := feedback.NewChannel(feedback.DefaultCapacity)
	var sink feedback.Sink = ch
	if cfg.Cues {
		sink = beep.Sink{Next: ch}
	} else {
		beep.Disable()
	}

	rec := recorder.New(capture, rc, sink)
	model := cfg.Transcription.Model
	if model == "" {
		model = transcriber.DefaultModel(cfg.Transcription.Provider)
	}
	return &environment{
		cfg:     cfg,
		combo:   combo,
		actx:    actx,
		capture: capture,
		ch:      ch,
		app:     NewApp(rec, stt, inj, sink),
		hk:      hotkey.New(combo),
		info: overlay.Info{
			Hotkey:   combo.String(),
			Provider: stt.Name(),
			Model:    model,
			Device:   capture.DeviceName(),
			Version:  version,
		},
	}, 0
}

// serve registers the hotkey and runs workflows until a signal arrives,
// the terminal overlay exits, or quit closes.
func serve(env *environment, quit <-chan struct{}) int {
	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if err := env.hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Fprintf(os.Stderr, "Error registering hotkey %s: %v\n", env.combo, err)
		return 1
	}
	defer env.hk.Unregister()

	hold := time.Duration(0)
	if env.cfg.PushToTalk {
		hold = hotkey.DefaultHoldThreshold
	}
	trigger := hotkey.NewTrigger(env.hk, hold)
	defer trigger.Close()

	log.SessionStart(env.info.Provider, env.info.Model, env.combo.String(), env.cfg.Inject.Mode)
	log.Info("recording_device: " + env.info.Device)

	switch env.cfg.Overlay {
	case "tui":
		go func() {
			if err := overlay.RunTUI(ctx, env.ch, feedback.DefaultPollInterval, env.info); err != nil {
				log.Errorf("overlay: %v", err)
			}
			stop()
		}()
	case "none":
		fmt.Fprintf(os.Stderr, "voxy %s ready, press %s to dictate\n", version, env.combo)
		go env.ch.Run(ctx, feedback.DefaultPollInterval, feedback.LogDispatch)
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-quit:
			break loop
		case <-trigger.Start():
			log.Info("hotkey_start")
			go env.app.Trigger(ctx)
		case <-trigger.Stop():
			log.Info("hotkey_stop")
			env.app.StopRecording()
		}
	}

	stop()
	env.app.Wait()
	log.SessionEnd(env.app.Completed())
	return 0
}
