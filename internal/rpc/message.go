package rpc

import (
	"bytes"
	"encoding/json"
)

// Command tags a message sent to the local RPC service.
type Command string

const CommandStatus Command = "status"

// Emoji is the custom status emoji descriptor.
type Emoji struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StatusMessage is the "status" command envelope.
//
// Only Message is populated by TextStatus; the remaining optional slots are
// reserved for other status variants and are omitted from the wire when nil.
type StatusMessage struct {
	Cmd Command `json:"cmd"`

	ShowGame    *bool   `json:"showGame,omitempty"`
	Status      *string `json:"status,omitempty"`
	Emoji       *Emoji  `json:"emoji,omitempty"`
	ExpiresTime *uint32 `json:"expiresTime,omitempty"`
	Message     *string `json:"message,omitempty"`
}

// TextStatus builds the text-only status update.
func TextStatus(text string) StatusMessage {
	return StatusMessage{Cmd: CommandStatus, Message: &text}
}

// FormatText joins the status text. No separators, no trimming.
func FormatText(prefix, lyric, suffix string) string {
	return prefix + lyric + suffix
}

// Encode returns the compact JSON form.
//
// HTML escaping is off so '<', '>' and '&' in lyrics reach the service verbatim.
func (m StatusMessage) Encode() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}
