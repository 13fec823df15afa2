package client

import "time"

// CreateComponentRequest creates a component instance with the given
// ports (internal/api's createComponentRequest, renamed for the client's
// own package boundary).
type CreateComponentRequest struct {
	ID    string     `json:"id,omitempty"`
	Name  string     `json:"name"`
	Ports []PortSpec `json:"ports,omitempty"`
}

// PortSpec describes one data port to register on component creation.
type PortSpec struct {
	Direction   string `json:"direction"`
	Domain      string `json:"domain"`
	BufferCount int    `json:"buffer_count,omitempty"`
}

// Component is the server's view of a running component instance.
type Component struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Ports     int       `json:"port_count"`
}

// CommandRequest is the body of POST /v1/components/{id}/command. Only
// the fields relevant to Command are read server-side: State for
// "state_set", Port (nil means every port) for
// "flush"/"port_disable"/"port_enable", Port+Mark for "mark_buffer".
type CommandRequest struct {
	Command string       `json:"command"`
	State   string       `json:"state,omitempty"`
	Port    *int         `json:"port,omitempty"`
	Mark    *MarkRequest `json:"mark,omitempty"`
}

// MarkRequest is the (target, data) pair carried by a "mark_buffer"
// command.
type MarkRequest struct {
	TargetComponent string `json:"target_component"`
	Data            any    `json:"data,omitempty"`
}

// BufferRequest is the body of the etb/ftb endpoints.
type BufferRequest struct {
	Data                []byte `json:"data"`
	FilledLen           int    `json:"filled_len"`
	Offset              int    `json:"offset"`
	Flags               uint32 `json:"flags"`
	MarkTargetComponent string `json:"mark_target_component,omitempty"`
	MarkData            any    `json:"mark_data,omitempty"`
}

// EventRecord mirrors internal/eventlog.Record for client-side decoding
// of the NDJSON event feed.
type EventRecord struct {
	Timestamp   time.Time `json:"ts"`
	ComponentID string    `json:"component_id"`
	Kind        string    `json:"kind"`
	Port        int       `json:"port,omitempty"`
	Command     string    `json:"command,omitempty"`
	Error       string    `json:"error,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

// StatusResponse is the daemon's own health report.
type StatusResponse struct {
	Status         string `json:"status"`
	ComponentCount int    `json:"component_count"`
}

// APIError is returned when the API returns an error response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}
