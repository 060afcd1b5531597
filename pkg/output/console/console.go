package console

import (
	"fmt"
	"time"

	"github.com/ericogr/sensor-hub/pkg/output"
	"github.com/ericogr/sensor-hub/pkg/sensor"
)

type ConsoleOutput struct{}

func NewConsole() output.Output { return &ConsoleOutput{} }

func (c *ConsoleOutput) Publish(samples []sensor.Sample) error {
	for _, s := range samples {
		fmt.Printf("%s %s\n", s.Time().Format(time.RFC3339), s.String())
	}
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }
