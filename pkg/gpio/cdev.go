// Linux GPIO character device backend.

package gpio

import (
	"github.com/warthog618/go-gpiocdev"
)

const cdevConsumer = "blindctl"

type cdevBackend struct{}

func newCdevBackend() *cdevBackend {
	return &cdevBackend{}
}

func (b *cdevBackend) input(chip string, offset, bias int) (backendInput, error) {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithConsumer(cdevConsumer),
	}
	switch bias {
	case 1:
		opts = append(opts, gpiocdev.WithPullUp)
	case -1:
		opts = append(opts, gpiocdev.WithPullDown)
	}

	line, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, err
	}
	return &cdevLine{line}, nil
}

func (b *cdevBackend) output(chip string, offset, initial int) (backendOutput, error) {
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(initial),
		gpiocdev.WithConsumer(cdevConsumer))
	if err != nil {
		return nil, err
	}
	return &cdevLine{line}, nil
}

func (b *cdevBackend) close() error {
	// Lines hold their own file handles; nothing chip-wide to release.
	return nil
}

type cdevLine struct {
	line *gpiocdev.Line
}

func (l *cdevLine) value() (int, error) {
	return l.line.Value()
}

func (l *cdevLine) set(v int) error {
	return l.line.SetValue(v)
}

func (l *cdevLine) close() error {
	return l.line.Close()
}
