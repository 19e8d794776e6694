// Package ticker decides, for any polling or streaming transport, whether the
// user's notes changed since the last observation or whether a heartbeat is
// due.
package ticker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event names on the wire.
const (
	EventPing         = "ping"
	EventNotesChanged = "notes:changed"
)

// Payload is one message for the client. Exactly one of ID (notes:changed)
// or TS (ping, Unix milliseconds) is meaningful, selected by Event.
type Payload struct {
	Event string
	ID    string
	TS    int64
}

type changedData struct {
	ID string `json:"id"`
}

type pingData struct {
	TS int64 `json:"ts"`
}

type wirePayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (p Payload) MarshalJSON() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch p.Event {
	case EventNotesChanged:
		data, err = json.Marshal(changedData{ID: p.ID})
	case EventPing:
		data, err = json.Marshal(pingData{TS: p.TS})
	default:
		return nil, fmt.Errorf("unknown ticker event %q", p.Event)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wirePayload{Event: p.Event, Data: data})
}

func (p *Payload) UnmarshalJSON(b []byte) error {
	var w wirePayload
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Event {
	case EventNotesChanged:
		var d changedData
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return err
		}
		*p = Payload{Event: w.Event, ID: d.ID}
	case EventPing:
		var d pingData
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return err
		}
		*p = Payload{Event: w.Event, TS: d.TS}
	default:
		return fmt.Errorf("unknown ticker event %q", w.Event)
	}
	return nil
}

// Changed reports whether p carries a new latest id.
func (p Payload) Changed() bool { return p.Event == EventNotesChanged }

// Tick is the state transition of one observation. An empty id means that no
// event has been seen yet. When latestID is set and differs from lastSeenID,
// it returns a notes:changed payload and latestID as the new cursor;
// otherwise a ping stamped with now and the unchanged cursor.
func Tick(lastSeenID, latestID string, now time.Time) (string, Payload) {
	if latestID != "" && latestID != lastSeenID {
		return latestID, Payload{Event: EventNotesChanged, ID: latestID}
	}
	return lastSeenID, Payload{Event: EventPing, TS: now.UnixMilli()}
}

// LatestFunc returns the newest event id for the watched account, or "" if
// there is none.
type LatestFunc func(ctx context.Context) (string, error)

// EmitFunc delivers a payload to the connection.
type EmitFunc func(ctx context.Context, p Payload) error

var timeNow = time.Now

// Run drives Tick for one connection: it observes source immediately and
// then every interval, emitting each payload. The cursor lives only inside
// this loop. Run returns nil when ctx is done, or the first source or emit
// error.
func Run(ctx context.Context, interval time.Duration, lastSeenID string, source LatestFunc, emit EmitFunc) error {
	if interval <= 0 {
		return fmt.Errorf("ticker interval must be positive, got %s", interval)
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	cursor := lastSeenID
	for {
		if ctx.Err() != nil {
			return nil
		}

		latest, err := source(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("latest event id: %w", err)
		}

		var p Payload
		cursor, p = Tick(cursor, latest, timeNow())
		if err := emit(ctx, p); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
