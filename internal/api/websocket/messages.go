package websocket

import "time"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Stick / session messages
	MessageTypeStickStatus MessageType = "stick_status"

	// Cover messages
	MessageTypeCoverPosition MessageType = "cover_position"
	MessageTypeDeviceEvent   MessageType = "device_event"

	// Pairing and calibration
	MessageTypeDevicePaired         MessageType = "device_paired"
	MessageTypeCalibrationCompleted MessageType = "calibration_completed"

	// System messages
	MessageTypeSystemStatus MessageType = "system_status"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// StickStatusData mirrors the session status of the radio stick.
type StickStatusData struct {
	Connected bool   `json:"connected"`
	Version   string `json:"version"`
	Mode      string `json:"mode"`
	HubID     string `json:"hub_id,omitempty"`
}

// DeviceEventData is a raw motor event as received over the air.
type DeviceEventData struct {
	DeviceID string `json:"device_id"`
	Command  string `json:"command"`
}

// DevicePairedData announces a freshly paired actuator.
type DevicePairedData struct {
	DeviceID   string `json:"device_id"`
	DeviceEnum string `json:"device_enum"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewStickStatusMessage(connected bool, version, mode, hubID string) Message {
	return NewMessage(MessageTypeStickStatus, StickStatusData{
		Connected: connected,
		Version:   version,
		Mode:      mode,
		HubID:     hubID,
	})
}

func NewDeviceEventMessage(deviceID, command string) Message {
	return NewMessage(MessageTypeDeviceEvent, DeviceEventData{
		DeviceID: deviceID,
		Command:  command,
	})
}

func NewDevicePairedMessage(deviceID, deviceEnum string) Message {
	return NewMessage(MessageTypeDevicePaired, DevicePairedData{
		DeviceID:   deviceID,
		DeviceEnum: deviceEnum,
	})
}
