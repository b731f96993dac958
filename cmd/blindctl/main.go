// blindctl is the host daemon for a motorized window-blind actuator.
// It runs the control loop over GPIO (stepper driver, buttons, LEDs),
// persists calibration in an EEPROM-layout file image, and exposes the
// smart-home bridge over HTTP and WebSocket.
//
// Usage:
//
//	blindctl -config /etc/blindctl/blind.cfg [options]
//
// Options:
//
//	-config string   Device configuration file (required)
//	-api string      Override the [api] listen address
//	-logfile string  Log file path with rotation (default: stderr)
//	-trace           Enable debug logging
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"blindctl/pkg/blind"
	"blindctl/pkg/bridge"
	"blindctl/pkg/config"
	"blindctl/pkg/console"
	"blindctl/pkg/gpio"
	"blindctl/pkg/log"
	"blindctl/pkg/metrics"
	"blindctl/pkg/store"
)

const version = "1.2.0"

func main() {
	configFile := flag.String("config", "", "Device configuration file (required)")
	apiAddr := flag.String("api", "", "Override the [api] listen address")
	logFile := flag.String("logfile", "", "Log file path (default: stderr)")
	trace := flag.Bool("trace", false, "Enable debug logging")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -config is required")
		flag.Usage()
		os.Exit(1)
	}

	// The root logger must be settled before any component derives from
	// it. Environment first, then flags on top.
	root := log.New("blindctl")
	log.ConfigureFromEnv(root)
	if *trace {
		root.SetLevel(log.DEBUG)
	}
	if *logFile != "" {
		writer, err := log.NewRotatingFileWriter(log.RotationConfig{Filename: *logFile})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer writer.Close()
		root.SetWriter(writer)
		root.SetColorize(false)
	}
	log.SetDefaultLogger(root)

	logger := log.GetLogger("main")
	logger.WithFields(log.Fields{
		"version": version,
		"config":  *configFile,
	}).Info("blindctl starting")

	if err := run(*configFile, *apiAddr, logger); err != nil {
		logger.WithError(err).Error("blindctl failed")
		os.Exit(1)
	}
	logger.Info("blindctl stopped")
}

func run(configFile, apiAddr string, logger *log.Logger) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	params, err := blind.LoadParams(cfg.GetSectionOptional("actuator"))
	if err != nil {
		return err
	}

	chip, err := gpio.Open(cfg.GetSectionOptional("gpio"))
	if err != nil {
		return err
	}
	defer chip.Close()

	hw, err := openHardware(cfg, chip)
	if err != nil {
		return err
	}

	dev, records, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	rec, restored := records.Load()
	state := blind.NewState(rec.Min, rec.Max, rec.Current)
	logger.WithFields(log.Fields{
		"min": rec.Min, "max": rec.Max, "position": rec.Current,
		"restored": restored,
	}).Info("actuator state loaded")

	name, addr, err := apiConfig(cfg)
	if err != nil {
		return err
	}
	if apiAddr != "" {
		addr = apiAddr
	}

	b := bridge.New(rec.Min, rec.Max, rec.Current)
	server := bridge.NewServer(b, bridge.Config{Addr: addr, Name: name, Version: version})
	defer server.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("api server failed")
			cancel()
		}
	}()

	serialCfg, err := console.LoadSerialConfig(cfg.GetSectionOptional("console"))
	if err != nil {
		return err
	}
	if serialCfg != nil {
		port, err := console.OpenPort(serialCfg)
		if err != nil {
			return err
		}
		defer port.Close()
		con := console.New(b, port, console.Config{Name: name, Version: version})
		go con.Run()
		logger.WithField("port", serialCfg.Port).Info("console started")
	}

	if sec := cfg.GetSectionOptional("metrics"); sec != nil {
		mc, err := metricsConfig(sec)
		if err != nil {
			return err
		}
		ms := metrics.NewMetricsServerWithConfig(metrics.GlobalMetrics(), mc)
		defer ms.Shutdown(context.Background())
		go func() {
			// Scraping is auxiliary; the actuator keeps running if the
			// exporter dies.
			if err := ms.Start(); err != nil {
				logger.WithError(err).Error("metrics server failed")
			}
		}()
		logger.WithField("addr", mc.Address).Info("metrics server started")
	}

	if err := cfg.CheckUnusedOptions(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Info("shutting down")
		cancel()
	}()

	loop := blind.NewLoop(blind.LoopConfig{
		Params: params,
		State:  state,
		Clock:  blind.NewSystemClock(),
		Store:  records,
		Attrs:  b,

		Up:         hw.up,
		Down:       hw.down,
		ModeSwitch: hw.mode,

		Step:     hw.step,
		Dir:      hw.dir,
		Enable:   hw.enable,
		SleepPin: hw.sleep,

		LedA: hw.ledA,
		LedB: hw.ledB,
	})
	return loop.Run(ctx)
}

// hardware is the full set of opened pin lines from the [pins] section.
type hardware struct {
	up, down, mode           gpio.InputLine
	step, dir, enable, sleep gpio.OutputLine
	ledA, ledB               gpio.OutputLine
}

// openHardware opens every actuator pin. Buttons are usually pulled up
// and active-low, and driver polarities vary by board; all of that
// lives in the pin flags (^, !) so the lines here carry logical levels
// only.
func openHardware(cfg *config.Config, chip *gpio.Chip) (*hardware, error) {
	sec, err := cfg.GetSection("pins")
	if err != nil {
		return nil, err
	}

	inOpts := config.PinOptions{CanInvert: true, CanPullup: true}
	outOpts := config.PinOptions{CanInvert: true}
	hw := &hardware{}

	inputs := []struct {
		option string
		line   *gpio.InputLine
	}{
		{"up_pin", &hw.up},
		{"down_pin", &hw.down},
		{"mode_pin", &hw.mode},
	}
	for _, in := range inputs {
		pin, err := sec.GetPin(in.option, inOpts)
		if err != nil {
			return nil, err
		}
		if *in.line, err = chip.Input(pin); err != nil {
			return nil, err
		}
	}

	outputs := []struct {
		option string
		line   *gpio.OutputLine
	}{
		{"step_pin", &hw.step},
		{"dir_pin", &hw.dir},
		{"enable_pin", &hw.enable},
		{"sleep_pin", &hw.sleep},
		{"led_a_pin", &hw.ledA},
		{"led_b_pin", &hw.ledB},
	}
	for _, out := range outputs {
		pin, err := sec.GetPin(out.option, outOpts)
		if err != nil {
			return nil, err
		}
		// All outputs start logically inactive; the loop wakes and
		// enables the driver on first motion.
		if *out.line, err = chip.Output(pin, false); err != nil {
			return nil, err
		}
	}

	return hw, nil
}

// openStore opens the EEPROM image named by the [store] section and
// wraps it in the record adapter.
func openStore(cfg *config.Config) (*store.FileDevice, *store.Records, error) {
	path := "/var/lib/blindctl/store.bin"
	defMin, defMax := 0, 1000

	if sec := cfg.GetSectionOptional("store"); sec != nil {
		var err error
		if path, err = sec.Get("path", path); err != nil {
			return nil, nil, err
		}
		lo, hi := 0, 65535
		if defMin, err = sec.GetIntWithBounds("default_min", &lo, &hi, defMin); err != nil {
			return nil, nil, err
		}
		if defMax, err = sec.GetIntWithBounds("default_max", &lo, &hi, defMax); err != nil {
			return nil, nil, err
		}
		if defMax <= defMin {
			return nil, nil, fmt.Errorf("store: default_max %d must exceed default_min %d", defMax, defMin)
		}
	}

	dev, err := store.OpenFile(path, store.RecordSize)
	if err != nil {
		return nil, nil, err
	}
	return dev, store.NewRecords(dev, uint16(defMin), uint16(defMax)), nil
}

// metricsConfig reads the [metrics] section.
func metricsConfig(sec *config.Section) (metrics.MetricsServerConfig, error) {
	mc := metrics.DefaultMetricsServerConfig()
	var err error
	if mc.Address, err = sec.Get("listen", mc.Address); err != nil {
		return mc, err
	}
	if mc.Username, err = sec.Get("username", ""); err != nil {
		return mc, err
	}
	if mc.Password, err = sec.Get("password", ""); err != nil {
		return mc, err
	}
	return mc, nil
}

// apiConfig reads the [api] section.
func apiConfig(cfg *config.Config) (name, addr string, err error) {
	name = "blindctl"
	addr = ":7700"

	if sec := cfg.GetSectionOptional("api"); sec != nil {
		if name, err = sec.Get("name", name); err != nil {
			return "", "", err
		}
		if addr, err = sec.Get("listen", addr); err != nil {
			return "", "", err
		}
	}
	return name, addr, nil
}
