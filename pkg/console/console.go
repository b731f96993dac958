// Package console is the line-oriented diagnostic interface, meant for
// a field-service serial dongle. It observes and requests through the
// bridge only; core state is never touched directly. Any io.ReadWriter
// serves as the transport, so tests run it over buffers.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"blindctl/pkg/bridge"
	"blindctl/pkg/log"
)

// Command is one console command.
type Command struct {
	Name        string
	Args        string // usage hint shown by help
	Run         func(c *Console, args []string) error
	Description string
}

var commands []*Command

func init() {
	commands = []*Command{
		statusCommand,
		liftCommand,
		rawCommand,
		infoCommand,
		helpCommand,
	}
}

var (
	statusCommand = &Command{
		Name: "status",
		Run: func(c *Console, args []string) error {
			st := c.bridge.Status()
			c.printf("position: %d (%d%%)\r\n", st.ActualRaw, st.ActualPercent)
			c.printf("requested: %d (%d%%)\r\n", st.RequestedRaw, st.RequestedPercent)
			c.printf("operation: %s\r\n", st.Operation)
			c.printf("limits: %d..%d\r\n", st.MinPos, st.MaxPos)
			return nil
		},
		Description: "Show the actuator state.",
	}
	liftCommand = &Command{
		Name: "lift",
		Args: "<percent>",
		Run: func(c *Console, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: lift <percent>")
			}
			v, err := strconv.ParseUint(args[0], 10, 8)
			if err != nil {
				return fmt.Errorf("invalid percent: %s", args[0])
			}
			st := c.bridge.RequestPercent(uint8(v))
			c.printf("requested: %d (%d%%)\r\n", st.RequestedRaw, st.RequestedPercent)
			return nil
		},
		Description: "Request a lift position by percent of travel.",
	}
	rawCommand = &Command{
		Name: "raw",
		Args: "<value>",
		Run: func(c *Console, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: raw <value>")
			}
			v, err := strconv.ParseUint(args[0], 10, 16)
			if err != nil {
				return fmt.Errorf("invalid raw value: %s", args[0])
			}
			st := c.bridge.RequestRaw(uint16(v))
			c.printf("requested: %d (%d%%)\r\n", st.RequestedRaw, st.RequestedPercent)
			return nil
		},
		Description: "Request a lift position by raw step count.",
	}
	infoCommand = &Command{
		Name: "info",
		Run: func(c *Console, args []string) error {
			c.printf("name: %s\r\n", c.cfg.Name)
			c.printf("version: %s\r\n", c.cfg.Version)
			c.printf("uptime: %.0fs\r\n", time.Since(c.started).Seconds())
			return nil
		},
		Description: "Show device name, version and uptime.",
	}
	helpCommand = &Command{
		Name: "help",
		Run: func(c *Console, args []string) error {
			for _, cmd := range commands {
				usage := cmd.Name
				if cmd.Args != "" {
					usage += " " + cmd.Args
				}
				c.printf("%-16s %s\r\n", usage, cmd.Description)
			}
			return nil
		},
		Description: "Show this list.",
	}
)

// Config identifies the device on the info command.
type Config struct {
	Name    string
	Version string
}

// Console serves the command set over one transport.
type Console struct {
	bridge  *bridge.Bridge
	rw      io.ReadWriter
	cfg     Config
	cmds    map[string]*Command
	started time.Time
	logger  *log.Logger
}

// New builds a console over the given transport.
func New(b *bridge.Bridge, rw io.ReadWriter, cfg Config) *Console {
	c := &Console{
		bridge:  b,
		rw:      rw,
		cfg:     cfg,
		cmds:    make(map[string]*Command, len(commands)),
		started: time.Now(),
		logger:  log.GetLogger("console"),
	}
	for _, cmd := range commands {
		c.cmds[cmd.Name] = cmd
	}
	return c
}

// Run serves commands until the transport fails. Closing the serial
// port unblocks the read, so shutdown just closes the port.
func (c *Console) Run() error {
	c.printf("%s console, 'help' lists commands\r\n", c.cfg.Name)

	scanner := bufio.NewScanner(c.rw)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.dispatch(line)
	}
	if err := scanner.Err(); err != nil {
		c.logger.WithError(err).Warn("console transport failed")
		return err
	}
	return nil
}

func (c *Console) dispatch(line string) {
	fields := strings.Fields(line)
	cmd, ok := c.cmds[strings.ToLower(fields[0])]
	if !ok {
		c.printf("unknown command: %s\r\n", fields[0])
		return
	}
	if err := cmd.Run(c, fields[1:]); err != nil {
		c.printf("error: %v\r\n", err)
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.rw, format, args...)
}
