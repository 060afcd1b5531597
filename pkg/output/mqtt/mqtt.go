package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ericogr/sensor-hub/pkg/config"
	"github.com/ericogr/sensor-hub/pkg/output"
	"github.com/ericogr/sensor-hub/pkg/sensor"
)

const (
	DefaultServer   = "tcp://localhost:1883"
	DefaultClientID = "sensor-hub"
	DefaultTopic    = "sensorhub"
	// discovery payload keys/values
	keyName               = "name"
	keyStateTopic         = "state_topic"
	keyUnitOfMeasurement  = "unit_of_measurement"
	keyDeviceClass        = "device_class"
	keyStateClass         = "state_class"
	keyValueTemplate      = "value_template"
	keyUniqueID           = "unique_id"
	stateClassMeasurement = "measurement"
)

type MQTTOutput struct {
	client mqtt.Client
	topic  string
}

func NewMQTT(cfg config.MQTTConfig) (output.Output, error) {
	server := cfg.Server
	if server == "" {
		server = DefaultServer
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}
	opts := mqtt.NewClientOptions().AddBroker(server).SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	// Publish Home Assistant discovery payload(s) if requested
	if cfg.DiscoveryPrefix != "" {
		for _, msg := range discoveryMessages(cfg.DiscoveryPrefix, clientID, topic) {
			if err := publishJSON(client, msg.topic, true, msg.payload); err != nil {
				log.Printf("mqtt discovery publish error: %v", err)
			}
		}
	}

	return &MQTTOutput{client: client, topic: topic}, nil
}

// Publish sends one JSON message per sample to <topic>/<kind>.
func (m *MQTTOutput) Publish(samples []sensor.Sample) error {
	for _, s := range samples {
		payload, err := payloadFor(s)
		if err != nil {
			return err
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		token := m.client.Publish(m.topic+"/"+s.Kind().String(), 0, false, b)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
	}
	return nil
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}

// discoveryEntity describes one Home Assistant sensor entity exposed for a
// field of a kind's state payload.
type discoveryEntity struct {
	kind        sensor.Kind
	field       string
	name        string
	unit        string
	deviceClass string
	template    string
}

var discoveryEntities = []discoveryEntity{
	{sensor.Power, "bus_mv", "Bus Voltage", "mV", "voltage", "{{ value_json.bus_mv }}"},
	{sensor.Power, "current_ma", "Current", "mA", "current", "{{ value_json.current_ma }}"},
	{sensor.Power, "power_mw", "Power", "mW", "power", "{{ value_json.power_mw }}"},
	{sensor.Climate, "temp_mc", "Temperature", "°C", "temperature", "{{ value_json.temp_mc / 1000 }}"},
	{sensor.Climate, "rh_permille", "Humidity", "%", "humidity", "{{ value_json.rh_permille / 10 }}"},
}

type discoveryMessage struct {
	topic   string
	payload map[string]interface{}
}

// discoveryMessages builds one retained config message per entity under
// <prefix>/sensor/<clientID>_<kind>_<field>/config, pointing at the same
// per-kind state topics Publish uses.
func discoveryMessages(prefix, clientID, stateTopicBase string) []discoveryMessage {
	msgs := make([]discoveryMessage, 0, len(discoveryEntities))
	for _, e := range discoveryEntities {
		uniqueID := fmt.Sprintf("%s_%s_%s", clientID, e.kind, e.field)
		msgs = append(msgs, discoveryMessage{
			topic: fmt.Sprintf("%s/sensor/%s/config", prefix, uniqueID),
			payload: map[string]interface{}{
				keyName:              e.name,
				keyStateTopic:        stateTopicBase + "/" + e.kind.String(),
				keyUnitOfMeasurement: e.unit,
				keyDeviceClass:       e.deviceClass,
				keyStateClass:        stateClassMeasurement,
				keyValueTemplate:     e.template,
				keyUniqueID:          uniqueID,
			},
		})
	}
	return msgs
}

// helper: marshal and publish a JSON payload
func publishJSON(client mqtt.Client, topic string, retained bool, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := client.Publish(topic, 0, retained, b)
	token.Wait()
	return token.Error()
}

// payloadFor maps a sample to its wire payload. Field names follow the CSV
// column names without the kind prefix.
func payloadFor(s sensor.Sample) (map[string]interface{}, error) {
	switch v := s.(type) {
	case sensor.PowerSample:
		return map[string]interface{}{
			"bus_mv":     v.BusMillivolts,
			"current_ma": v.CurrentMilliamps,
			"power_mw":   v.PowerMilliwatts,
			"ts":         v.Timestamp.Format(time.RFC3339),
		}, nil
	case sensor.ClimateSample:
		return map[string]interface{}{
			"temp_mc":     v.TempMilliC,
			"rh_permille": v.HumidityPerMille,
			"ts":          v.Timestamp.Format(time.RFC3339),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported sample kind %s", s.Kind())
	}
}
