package models

import "strings"

// RowStatus is the persisted state of a queue row. A row transitions at most
// once per run and a Skipped row is never retried.
type RowStatus string

const (
	RowPending RowStatus = "Pending"
	RowDone    RowStatus = "Done"
	RowFailed  RowStatus = "Failed"
	RowSkipped RowStatus = "Skipped"
)

// Row is one record in a queue. Cells are positional; the column layout is
// defined per queue below.
type Row struct {
	Index int      `json:"index"` // 1-based, row 1 is the header
	Cells []string `json:"cells"`
}

// Cell returns the trimmed cell at col (0-based), or "" when the row is
// shorter than col.
func (r Row) Cell(col int) string {
	if col < 0 || col >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[col])
}

// Queue names.
const (
	QueueMessages = "MsgList"
	QueuePublish  = "PostQueue"
	QueueInbox    = "InboxQueue"
	QueueHistory  = "MsgHistory"
)

// Message queue columns (MsgList).
const (
	MsgColMode = iota
	MsgColName
	MsgColTarget
	MsgColCity
	MsgColPosts
	MsgColFollowers
	MsgColMessage
	MsgColStatus
	MsgColNotes
	MsgColResultURL
	MsgColAttempts
	MsgColCount
)

// Publish queue columns (PostQueue).
const (
	PubColKind = iota
	PubColTitle
	PubColContent
	PubColImagePath
	PubColTags
	PubColStatus
	PubColResultURL
	PubColTimestamp
	PubColNotes
	PubColAttempts
	PubColCount
)

// Inbox queue columns (InboxQueue).
const (
	InboxColNick = iota
	InboxColName
	InboxColLastMessage
	InboxColReply
	InboxColStatus
	InboxColTimestamp
	InboxColNotes
	InboxColLog
	InboxColCount
)

// QueueHeaders returns the header row for a queue, used when a store
// bootstraps an empty queue.
func QueueHeaders(queue string) []string {
	switch queue {
	case QueueMessages:
		return []string{"MODE", "NAME", "NICK/URL", "CITY", "POSTS", "FOLLOWERS",
			"MESSAGE", "STATUS", "NOTES", "RESULT URL", "ATTEMPTS"}
	case QueuePublish:
		return []string{"TYPE", "TITLE", "CONTENT", "IMAGE_PATH", "TAGS",
			"STATUS", "POST_URL", "TIMESTAMP", "NOTES", "ATTEMPTS"}
	case QueueInbox:
		return []string{"NICK", "NAME", "LAST_MSG", "MY_REPLY", "STATUS",
			"TIMESTAMP", "NOTES", "CONVERSATION_LOG"}
	case QueueHistory:
		return []string{"TIMESTAMP", "NICK", "NAME", "MESSAGE", "POST_URL",
			"STATUS", "RESULT_URL"}
	}
	return []string{"DATA"}
}
