// hardware-test exercises the actuator's pins for field bring-up.
// It blinks the status LEDs, emits step pulses in both directions, and
// echoes the button and mode switch levels, so wiring and pin polarity
// can be verified before starting the daemon.
//
// Usage:
//
//	hardware-test -config /etc/blindctl/blind.cfg [options]
//
// Options:
//
//	-config string      Device configuration file (required)
//	-test string        Test to run: "led", "step", "buttons", "all" (default: "all")
//	-count int          Blink and step repetitions (default: 10)
//	-interval duration  Delay between blinks or button samples (default: 200ms)
//
// Examples:
//
//	# Verify the LEDs and their polarity
//	hardware-test -config blind.cfg -test led
//
//	# Emit 50 step pulses each direction with the motor energized
//	hardware-test -config blind.cfg -test step -count 50
//
//	# Watch the raw button levels while pressing them
//	hardware-test -config blind.cfg -test buttons
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blindctl/pkg/config"
	"blindctl/pkg/gpio"
)

// testPulse matches the calibration pulse width so a step test moves
// the motor the way a calibration jog does.
const testPulse = 1600 * time.Microsecond

// boolToInt converts a boolean to an integer (0 or 1)
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func main() {
	configFile := flag.String("config", "", "Device configuration file (required)")
	test := flag.String("test", "all", "Test to run: led, step, buttons, all")
	count := flag.Int("count", 10, "Blink and step repetitions")
	interval := flag.Duration("interval", 200*time.Millisecond, "Delay between blinks or button samples")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing config: %v\n", err)
		os.Exit(1)
	}

	chip, err := gpio.Open(cfg.GetSectionOptional("gpio"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening GPIO: %v\n", err)
		os.Exit(1)
	}
	defer chip.Close()

	pins, err := cfg.GetSection("pins")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Ctrl+C releases the pins before exiting so the motor is not left
	// energized mid-test.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted")
		chip.Close()
		os.Exit(130)
	}()

	switch *test {
	case "led":
		err = testLEDs(chip, pins, *count, *interval)
	case "step":
		err = testStep(chip, pins, *count)
	case "buttons":
		err = testButtons(chip, pins, *interval)
	case "all":
		if err = testLEDs(chip, pins, *count, *interval); err == nil {
			if err = testStep(chip, pins, *count); err == nil {
				err = testButtons(chip, pins, *interval)
			}
		}
	default:
		err = fmt.Errorf("unknown test: %s", *test)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Test failed: %v\n", err)
		chip.Close()
		os.Exit(1)
	}
	fmt.Println("\nAll tests passed!")
}

// testLEDs alternates the two status LEDs, then turns both off.
func testLEDs(chip *gpio.Chip, pins *config.Section, count int, interval time.Duration) error {
	fmt.Println("=== Test: LEDs ===")

	ledA, err := openOutput(chip, pins, "led_a_pin")
	if err != nil {
		return err
	}
	ledB, err := openOutput(chip, pins, "led_b_pin")
	if err != nil {
		return err
	}

	fmt.Printf("Alternating LEDs %d times (A then B)...\n", count)
	for i := 0; i < count; i++ {
		ledA.Set(true)
		ledB.Set(false)
		time.Sleep(interval)
		ledA.Set(false)
		ledB.Set(true)
		time.Sleep(interval)
	}
	ledA.Set(false)
	ledB.Set(false)

	fmt.Println("LED test done (both LEDs should now be dark)")
	return nil
}

// testStep wakes and energizes the driver, emits count pulses in each
// direction, then powers the stage back down.
func testStep(chip *gpio.Chip, pins *config.Section, count int) error {
	fmt.Println("=== Test: Step Pulses ===")

	step, err := openOutput(chip, pins, "step_pin")
	if err != nil {
		return err
	}
	dir, err := openOutput(chip, pins, "dir_pin")
	if err != nil {
		return err
	}
	enable, err := openOutput(chip, pins, "enable_pin")
	if err != nil {
		return err
	}
	sleep, err := openOutput(chip, pins, "sleep_pin")
	if err != nil {
		return err
	}

	fmt.Println("Waking and energizing the driver...")
	sleep.Set(true)
	enable.Set(true)
	// DRV-class drivers need a moment out of sleep before stepping.
	time.Sleep(2 * time.Millisecond)

	for _, up := range []bool{true, false} {
		direction := "up"
		if !up {
			direction = "down"
		}
		fmt.Printf("Emitting %d pulses %s...\n", count, direction)
		dir.Set(up)
		for i := 0; i < count; i++ {
			step.Set(true)
			time.Sleep(testPulse)
			step.Set(false)
			time.Sleep(testPulse)
		}
	}

	enable.Set(false)
	sleep.Set(false)
	fmt.Println("Step test done (motor should have jogged both ways)")
	return nil
}

// testButtons samples the raw button and switch levels for a few
// seconds so each can be pressed and observed.
func testButtons(chip *gpio.Chip, pins *config.Section, interval time.Duration) error {
	fmt.Println("=== Test: Buttons ===")

	up, err := openInput(chip, pins, "up_pin")
	if err != nil {
		return err
	}
	down, err := openInput(chip, pins, "down_pin")
	if err != nil {
		return err
	}
	mode, err := openInput(chip, pins, "mode_pin")
	if err != nil {
		return err
	}

	fmt.Println("Press the buttons and flip the mode switch (sampling for 5 seconds)...")
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		fmt.Printf("\r  up=%d down=%d mode=%d   ",
			boolToInt(up.Read()), boolToInt(down.Read()), boolToInt(mode.Read()))
		time.Sleep(interval)
	}
	fmt.Println()

	fmt.Println("Button test done")
	return nil
}

func openOutput(chip *gpio.Chip, pins *config.Section, option string) (gpio.OutputLine, error) {
	pin, err := pins.GetPin(option, config.PinOptions{CanInvert: true})
	if err != nil {
		return nil, err
	}
	return chip.Output(pin, false)
}

func openInput(chip *gpio.Chip, pins *config.Section, option string) (gpio.InputLine, error) {
	pin, err := pins.GetPin(option, config.PinOptions{CanInvert: true, CanPullup: true})
	if err != nil {
		return nil, err
	}
	return chip.Input(pin)
}
