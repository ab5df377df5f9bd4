package auditlogs

import "time"

type Event struct {
	Event   EventInfo `json:"event"`
	Target  Target    `json:"target"`
	Context Context   `json:"context"`
	Time    time.Time `json:"time"`
}

type EventInfo struct {
	Type         string `json:"type"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type Target struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Context fields that identify a person are encrypted before they leave the
// service.
type Context struct {
	IPAddress    string `json:"ipAddress,omitempty"`
	UserAgent    string `json:"userAgent,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
	InputPreview string `json:"inputPreview,omitempty"`
	// Client is a coarse device summary and stays readable.
	Client string `json:"client,omitempty"`
}
