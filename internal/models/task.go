package models

// TargetMode describes how a task identifies its target.
type TargetMode string

const (
	// TargetModeURL means the task carries a raw content URL.
	TargetModeURL TargetMode = "url"
	// TargetModeNick means the task carries a platform nickname that must be
	// resolved to an open content page first.
	TargetModeNick TargetMode = "nick"
)

// Task is one unit of work read from the queue. It is built by the task
// loader, carried through resolution and execution, and only written back
// through the result writer.
type Task struct {
	// Row is the 1-based row index in the backing queue (row 1 is the header).
	Row int `json:"row"`

	Mode   TargetMode `json:"mode"`
	Name   string     `json:"name"`
	Target string     `json:"target"` // nickname or raw URL depending on Mode

	// Message is the raw message template ({{name}}, {{city}}, ...).
	Message string `json:"message"`

	// Optional profile fields carried over from the queue row.
	City      string `json:"city,omitempty"`
	Posts     string `json:"posts,omitempty"`
	Followers string `json:"followers,omitempty"`

	Status   string `json:"status"`
	Notes    string `json:"notes,omitempty"`
	Attempts int    `json:"attempts"`
}

// PublishTask is one unit of work from the publish queue.
type PublishTask struct {
	Row       int         `json:"row"`
	Kind      ContentKind `json:"kind"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	ImagePath string      `json:"image_path,omitempty"`
	Tags      string      `json:"tags,omitempty"`
	Status    string      `json:"status"`
	Notes     string      `json:"notes,omitempty"`
	Attempts  int         `json:"attempts"`
}

// InboxReply is a queued reply for an inbox conversation.
type InboxReply struct {
	Row   int    `json:"row"`
	Nick  string `json:"nick"`
	Reply string `json:"reply"`
}

// Conversation is one inbox conversation discovered on the inbox page.
type Conversation struct {
	Nick        string `json:"nick"`
	LastMessage string `json:"last_message"`
	Timestamp   string `json:"timestamp"`
	URL         string `json:"url"`
}
