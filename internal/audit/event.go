// Package audit records EasyCA lifecycle operations in a tamper-evident log.
//
// Each event is one JSON line. Its hash covers the event and the hash of the
// line before it, so editing, removing or inserting a line breaks the chain
// from that point on. Private keys never appear in events.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/user"
	"sync"
	"time"
)

// EventType names a lifecycle operation.
type EventType string

const (
	EventCACreated     EventType = "CA_CREATED"
	EventCSRCreated    EventType = "CSR_CREATED"
	EventCertIssued    EventType = "CERT_ISSUED"
	EventKeyArchived   EventType = "KEY_ARCHIVED"
	EventSubCAPromoted EventType = "SUBCA_PROMOTED"
)

// Result is the outcome of the audited operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Actor is the local account that ran the command.
type Actor struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Host string `json:"host,omitempty"`
}

// Object is the artifact the operation produced or moved.
type Object struct {
	Type    string `json:"type"` // ca, csr, certificate, key
	Name    string `json:"name,omitempty"`
	Serial  string `json:"serial,omitempty"`
	Subject string `json:"subject,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Context holds the parameters of the operation.
type Context struct {
	CA        string `json:"ca,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
	Days      int    `json:"days,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Event is one line of the audit log.
type Event struct {
	EventType EventType `json:"event_type"`
	Timestamp string    `json:"timestamp"` // RFC3339, UTC
	Actor     Actor     `json:"actor"`
	Object    Object    `json:"object"`
	Context   Context   `json:"context,omitempty"`
	Result    Result    `json:"result"`
	HashPrev  string    `json:"hash_prev"`
	Hash      string    `json:"hash,omitempty"`
}

var (
	actorOnce sync.Once
	actor     Actor
)

// localActor resolves the current account once per process.
func localActor() Actor {
	actorOnce.Do(func() {
		actor = Actor{Type: "user", ID: "unknown"}
		if u, err := user.Current(); err == nil && u.Username != "" {
			actor.ID = u.Username
		} else if name := os.Getenv("USER"); name != "" {
			actor.ID = name
		}
		actor.Host, _ = os.Hostname()
	})
	return actor
}

// NewEvent describes an operation on obj. A non-nil opErr turns the event
// into a failure whose reason is the error text.
func NewEvent(t EventType, obj Object, ctx Context, opErr error) *Event {
	e := &Event{
		EventType: t,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Actor:     localActor(),
		Object:    obj,
		Context:   ctx,
		Result:    ResultSuccess,
	}
	if opErr != nil {
		e.Result = ResultFailure
		e.Context.Reason = opErr.Error()
	}
	return e
}

// Validate reports the first missing mandatory field.
func (e *Event) Validate() error {
	switch {
	case e.EventType == "":
		return errors.New("missing event_type")
	case e.Timestamp == "":
		return errors.New("missing timestamp")
	case e.Actor.Type == "" || e.Actor.ID == "":
		return errors.New("missing actor")
	case e.Result == "":
		return errors.New("missing result")
	}
	return nil
}

// digest hashes the event without its own hash, chained to HashPrev.
func (e *Event) digest() (string, error) {
	unsealed := *e
	unsealed.Hash = ""
	body, err := json.Marshal(&unsealed)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	sum := sha256.Sum256(append(body, e.HashPrev...))
	return HashPrefix + hex.EncodeToString(sum[:]), nil
}

// seal links the event after prev and sets its hash.
func (e *Event) seal(prev string) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	e.HashPrev = prev
	h, err := e.digest()
	if err != nil {
		return err
	}
	e.Hash = h
	return nil
}

// follows checks that the event is correctly linked after prev.
func (e *Event) follows(prev string) error {
	if e.HashPrev != prev {
		return fmt.Errorf("hash chain broken: expected prev=%s, got prev=%s", prev, e.HashPrev)
	}
	want, err := e.digest()
	if err != nil {
		return err
	}
	if e.Hash != want {
		return fmt.Errorf("hash mismatch: expected=%s, got=%s", want, e.Hash)
	}
	return nil
}
