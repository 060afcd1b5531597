package output

import "github.com/ericogr/sensor-hub/pkg/sensor"

type Output interface {
	Publish([]sensor.Sample) error
	Close() error
}

// concrete outputs live in subpackages
