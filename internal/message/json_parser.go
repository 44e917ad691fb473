package message

import (
	"encoding/json"
	"fmt"
)

// ParseDynamicJSON decodes one JSON object into a DynamicMessage.
func ParseDynamicJSON(data []byte) (DynamicMessage, error) {
	var msg DynamicMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSONUnmarshalFailed, err)
	}
	return msg, nil
}

// ParseReading decodes a reading message in one step.
func ParseReading(data []byte) (Reading, error) {
	msg, err := ParseDynamicJSON(data)
	if err != nil {
		return Reading{}, err
	}
	return msg.Reading()
}
