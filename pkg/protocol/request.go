// Package protocol defines the messages the page annotator sends to the tab
// automator and the bus that carries them.
//
// Requests are plain data. On the wire they are JSON objects with an
// "eventName" discriminant; Decode narrows them to a concrete variant once,
// so handlers never re-check the discriminant themselves.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// EventName is the wire discriminant of a request.
type EventName string

const (
	EventAttachLink   EventName = "attachLink"
	EventMergeComment EventName = "mergeComment"
)

// ErrUnknownEvent is returned by Decode for a missing or unrecognized
// eventName.
var ErrUnknownEvent = errors.New("unknown event")

// Request is one of AttachLink or MergeComment.
type Request interface {
	EventName() EventName
	isRequest()
}

// AttachLink asks for the tracker attachment form of a ticket to be opened
// and prefilled with a pull request.
type AttachLink struct {
	AttachURL string `json:"attachUrl"`
	PRURL     string `json:"prUrl"`
	PRNumber  string `json:"prNum"`
	PRTitle   string `json:"prTitle"`
	RepoOrg   string `json:"repoOrg"`
	RepoName  string `json:"repoName"`
}

// EventName implements Request.
func (AttachLink) EventName() EventName { return EventAttachLink }
func (AttachLink) isRequest()           {}

// MergeComment asks for a ticket to be opened with a comment recording that
// a pull request was merged.
type MergeComment struct {
	BugURL    string `json:"bugUrl"`
	Author    string `json:"author"`
	AuthorURL string `json:"authorUrl"`
	RepoOrg   string `json:"repoOrg"`
	RepoName  string `json:"repoName"`
	PRTitle   string `json:"prTitle"`
	PRNumber  string `json:"prNum"`
	PRURL     string `json:"prUrl"`
	CommitSHA string `json:"commitSha"`
	CommitURL string `json:"commitUrl"`
}

// EventName implements Request.
func (MergeComment) EventName() EventName { return EventMergeComment }
func (MergeComment) isRequest()           {}

// Encode serializes r in its wire form.
func Encode(r Request) ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", r.EventName(), err)
	}
	data, err := sjson.SetBytes(payload, "eventName", string(r.EventName()))
	if err != nil {
		return nil, fmt.Errorf("failed to tag %s: %w", r.EventName(), err)
	}
	return data, nil
}

// Decode parses a wire message into its concrete variant.
func Decode(data []byte) (Request, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("malformed request: invalid JSON")
	}

	name := EventName(gjson.GetBytes(data, "eventName").String())
	switch name {
	case EventAttachLink:
		var r AttachLink
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("malformed %s request: %w", name, err)
		}
		return r, nil
	case EventMergeComment:
		var r MergeComment
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("malformed %s request: %w", name, err)
		}
		return r, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}
