package console

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"blindctl/pkg/bridge"
)

// runConsole feeds input through a console over in-memory buffers and
// returns everything it wrote.
func runConsole(t *testing.T, b *bridge.Bridge, input string) string {
	t.Helper()
	var out bytes.Buffer
	rw := struct {
		io.Reader
		io.Writer
	}{strings.NewReader(input), &out}
	c := New(b, rw, Config{Name: "blindctl", Version: "test"})
	if err := c.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func TestStatusCommand(t *testing.T) {
	b := bridge.New(0, 1000, 500)
	out := runConsole(t, b, "status\n")

	for _, want := range []string{
		"position: 500 (50%)",
		"requested: 500 (50%)",
		"operation: stopped",
		"limits: 0..1000",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestLiftCommand(t *testing.T) {
	b := bridge.New(0, 1000, 500)
	out := runConsole(t, b, "lift 75\n")

	raw, pct := b.RequestedLift()
	if raw != 750 || pct != 75 {
		t.Fatalf("requested lift = %d/%d%%, want 750/75%%", raw, pct)
	}
	if !strings.Contains(out, "requested: 750 (75%)") {
		t.Errorf("lift output missing confirmation:\n%s", out)
	}
}

func TestRawCommand(t *testing.T) {
	b := bridge.New(0, 1000, 500)
	out := runConsole(t, b, "raw 250\n")

	raw, pct := b.RequestedLift()
	if raw != 250 || pct != 25 {
		t.Fatalf("requested lift = %d/%d%%, want 250/25%%", raw, pct)
	}
	if !strings.Contains(out, "requested: 250 (25%)") {
		t.Errorf("raw output missing confirmation:\n%s", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	b := bridge.New(0, 1000, 500)
	out := runConsole(t, b, "wibble 3\n")

	if !strings.Contains(out, "unknown command: wibble") {
		t.Errorf("missing unknown command report:\n%s", out)
	}
	if raw, pct := b.RequestedLift(); raw != 500 || pct != 50 {
		t.Errorf("unknown command changed request to %d/%d%%", raw, pct)
	}
}

func TestBadArguments(t *testing.T) {
	inputs := []string{
		"lift\n",
		"lift 10 20\n",
		"lift abc\n",
		"lift 300\n",
		"raw\n",
		"raw x\n",
		"raw 70000\n",
	}
	for _, input := range inputs {
		b := bridge.New(0, 1000, 500)
		out := runConsole(t, b, input)
		if !strings.Contains(out, "error:") {
			t.Errorf("input %q produced no error line:\n%s", input, out)
		}
		if raw, pct := b.RequestedLift(); raw != 500 || pct != 50 {
			t.Errorf("input %q changed request to %d/%d%%", input, raw, pct)
		}
	}
}

func TestHelpListsCommands(t *testing.T) {
	b := bridge.New(0, 1000, 500)
	out := runConsole(t, b, "help\n")

	for _, want := range []string{"status", "lift <percent>", "raw <value>", "info", "help"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q:\n%s", want, out)
		}
	}
}

func TestInfoCommand(t *testing.T) {
	b := bridge.New(0, 1000, 500)
	out := runConsole(t, b, "info\n")

	for _, want := range []string{"name: blindctl", "version: test", "uptime:"} {
		if !strings.Contains(out, want) {
			t.Errorf("info output missing %q:\n%s", want, out)
		}
	}
}

func TestBlankLinesAndCaseIgnored(t *testing.T) {
	b := bridge.New(0, 1000, 500)
	out := runConsole(t, b, "\n   \nSTATUS\n")

	if got := strings.Count(out, "position:"); got != 1 {
		t.Errorf("status ran %d times, want 1:\n%s", got, out)
	}
}
