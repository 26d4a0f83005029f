package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hidject/internal/api"
	"hidject/internal/autostart"
	"hidject/internal/config"
	"hidject/internal/inject"
	"hidject/internal/input"
	"hidject/internal/metrics"
	"hidject/internal/network"
	"hidject/internal/switcher"
	"hidject/internal/tray"
)

type serveFlags struct {
	tray     bool
	simulate bool
	start    bool
	failRate float64
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the injection daemon with its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			return runService(mgr, f)
		},
	}
	cmd.Flags().BoolVar(&f.tray, "tray", false, "Show a system tray icon")
	cmd.Flags().BoolVar(&f.simulate, "simulate", false, "Use an in-process radio bridge simulator")
	cmd.Flags().BoolVar(&f.start, "start", false, "Start executing the queued script immediately")
	cmd.Flags().Float64Var(&f.failRate, "sim-fail-rate", 0, "Share of frames the simulator reports as failed")
	return cmd
}

func runService(mgr *config.Manager, f serveFlags) error {
	log.Info("hidject service starting...")

	cfg := mgr.Get()
	opts, err := cfg.InjectOptions()
	if err != nil {
		return err
	}

	st, err := openStore(mgr)
	if err != nil {
		return err
	}
	defer st.Close()

	rec := metrics.NewRecorder()

	var (
		deps     inject.Deps
		bridge   *network.Bridge
		gadget   *input.Gadget
		resetter switcher.Resetter
	)
	if opts.Address.IsZero() {
		log.Infof("Transport: USB gadget (%s, %s)", cfg.USB.KeyboardDevice, cfg.USB.MouseDevice)
		gadget = input.NewGadget(input.Config{
			KeyboardDevice: cfg.USB.KeyboardDevice,
			MouseDevice:    cfg.USB.MouseDevice,
			WatchLEDs:      opts.USBTrigger == inject.TriggerLEDUpdate,
		})
		deps.USB = gadget
	} else {
		bridgeAddr := cfg.Radio.BridgeAddr
		if f.simulate {
			sim := network.NewSimBridge()
			sim.FailRate = f.failRate
			sim.Debug = cfg.Debug
			if err := sim.Start("127.0.0.1:0"); err != nil {
				return fmt.Errorf("failed to start simulator: %w", err)
			}
			defer sim.Stop()
			bridgeAddr = sim.Addr()
		}
		log.Infof("Transport: radio bridge %s, target %s (%s)", bridgeAddr, opts.Address, opts.WorkMode)
		bridge = network.NewBridge(bridgeAddr)
		deps.Radio = bridge
		resetter = bridge
	}

	sw := switcher.New(resetter)
	srv := api.NewServer(api.Options{
		Tasks:    st,
		Config:   mgr,
		Switcher: sw,
		Metrics:  rec.Handler(),
	})

	observers := inject.Observers{rec, srv.Observer()}
	var t *tray.Tray
	if f.tray {
		t = tray.New("hidject - HID injection")
		observers = append(observers, t)
	}

	deps.Queue = st
	deps.Modes = sw
	deps.Observer = observers
	runner := inject.NewRunner(opts, deps)
	defer runner.Close()
	srv.SetController(runner)

	if bridge != nil {
		bridge.OnEvent = runner.RadioEvent
		if err := bridge.Start(); err != nil {
			return fmt.Errorf("failed to connect radio bridge: %w", err)
		}
		defer bridge.Stop()
	}
	if gadget != nil {
		gadget.OnEvent = runner.USBEvent
		if err := gadget.Open(); err != nil {
			return err
		}
		defer gadget.Close()
	}

	if err := runner.Init(); err != nil {
		return fmt.Errorf("failed to initialize injection: %w", err)
	}
	defer runner.Deinit()

	if cfg.API.Enabled {
		go func() {
			if err := srv.Start(cfg.API.Port); err != nil {
				log.Warnf("API server error: %v", err)
			}
		}()
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	if f.start {
		if _, err := runner.Start(); err != nil {
			log.Warnf("Inject: could not start injection: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if t == nil {
		<-ctx.Done()
		log.Info("Shutting down...")
		return nil
	}

	t.AddMenuItem("Start injection", func() {
		sw.EnterInject()
		if _, err := runner.Start(); err != nil {
			log.Warnf("Tray: start failed: %v", err)
		}
	})
	t.AddMenuItem("Stop injection", func() {
		if err := runner.Stop(); err != nil {
			log.Warnf("Tray: stop failed: %v", err)
		}
	})
	t.AddSeparator()
	t.AddMenuItem("Quit", t.Stop)

	go func() {
		<-ctx.Done()
		t.Stop()
	}()
	// systray needs the main goroutine
	t.Run()
	log.Info("Shutting down...")
	return nil
}

func newAutostartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Manage starting the daemon at login",
	}
	var args []string
	enable := &cobra.Command{
		Use:   "enable",
		Short: "Run 'hidject serve' at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := autostart.DefaultService()
			if err != nil {
				return err
			}
			if cfgPath != "" {
				svc.Args = append(svc.Args, "--config", cfgPath)
			}
			svc.Args = append(svc.Args, args...)
			if err := autostart.Enable(svc); err != nil {
				return err
			}
			path, _ := autostart.Path()
			fmt.Printf("Autostart enabled (%s)\n", path)
			return nil
		},
	}
	enable.Flags().StringSliceVar(&args, "serve-args", nil, "Extra arguments for serve, e.g. --start")

	cmd.AddCommand(
		enable,
		&cobra.Command{
			Use:   "disable",
			Short: "Stop running the daemon at login",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := autostart.Disable(); err != nil {
					return err
				}
				fmt.Println("Autostart disabled")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show whether the daemon starts at login",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				if autostart.IsEnabled() {
					fmt.Println("Autostart: enabled")
				} else {
					fmt.Println("Autostart: disabled")
				}
			},
		},
	)
	return cmd
}
