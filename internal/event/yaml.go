package event

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/ir"
)

type yamlEvent struct {
	ID        string         `yaml:"id"`
	Type      string         `yaml:"type"`
	EntityID  string         `yaml:"entityId"`
	Timestamp string         `yaml:"timestamp"`
	DeviceID  string         `yaml:"deviceId"`
	Payload   map[string]any `yaml:"payload"`
}

type yamlBatch struct {
	Events []yamlEvent `yaml:"events"`
}

// DecodeYAML reads a batch of events:
//
//	events:
//	  - type: note.created
//	    entityId: n1
//	    timestamp: "2024-01-01T09:00:00Z"
//	    payload: {body: "hello"}
//
// Events without an id receive a content-addressed one, so loading the same
// file twice yields the same ids. Events without a device id get device.
func DecodeYAML(r io.Reader, device string) ([]Event, error) {
	var batch yamlBatch
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&batch); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse batch: %w", err)
	}

	out := make([]Event, 0, len(batch.Events))
	for i, ye := range batch.Events {
		e, err := ye.toEvent(device)
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (ye yamlEvent) toEvent(device string) (Event, error) {
	raw := []byte("{}")
	if ye.Payload != nil {
		var err error
		if raw, err = json.Marshal(ye.Payload); err != nil {
			return Event{}, fmt.Errorf("payload: %w", err)
		}
	}
	t := Type(ye.Type)
	p, err := DecodePayload(t, raw)
	if err != nil {
		return Event{}, err
	}

	e := Event{
		ID:        ye.ID,
		Type:      t,
		EntityID:  ye.EntityID,
		Payload:   p,
		Timestamp: ye.Timestamp,
		DeviceID:  ye.DeviceID,
	}
	if e.DeviceID == "" {
		e.DeviceID = device
	}
	if e.ID == "" {
		id, err := ir.EventID(ye.Type, ye.EntityID, ye.Timestamp, p)
		if err != nil {
			return Event{}, err
		}
		e.ID = id
	}
	return e, nil
}
