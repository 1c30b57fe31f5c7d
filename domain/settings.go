package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Document is a settings payload keyed by top-level field. Values are kept as raw JSON so a
// snapshot restored from history is byte-for-byte what was stored.
type Document map[string]json.RawMessage

// Merge applies patch on top of d, replacing whole top-level keys.
func (d Document) Merge(patch Document) Document {
	out := d.Clone()
	if out == nil {
		out = Document{}
	}
	for k, v := range patch {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Compact rewrites every value without insignificant whitespace and rejects invalid JSON.
func (d Document) Compact() (Document, error) {
	if d == nil {
		return nil, nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return nil, NewValidationError("invalid JSON value", FieldError{Field: k, Message: err.Error()})
		}
		out[k] = buf.Bytes()
	}
	return out, nil
}

// Equal compares two documents key by key after compacting whitespace.
func (d Document) Equal(other Document) bool {
	if len(d) != len(other) {
		return false
	}
	for k, v := range d {
		ov, ok := other[k]
		if !ok || !jsonEqual(v, ov) {
			return false
		}
	}
	return true
}

// Entry is a named, independently toggleable item inside a collection module.
type Entry struct {
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	Data      Document  `json:"data,omitempty"`
	IsDeleted bool      `json:"isDeleted,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (e Entry) clone() Entry {
	e.Data = e.Data.Clone()
	return e
}

// Snapshot is the full state of an aggregate as recorded in history.
type Snapshot struct {
	Data    Document `json:"data,omitempty"`
	Entries []Entry  `json:"entries,omitempty"`
}

// Empty reports whether the snapshot holds no state at all.
func (s Snapshot) Empty() bool {
	return len(s.Data) == 0 && len(s.Entries) == 0
}

// JSON renders the snapshot for the history ledger.
func (s Snapshot) JSON() json.RawMessage {
	b, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}

// ParseSnapshot decodes a history value. Empty or null input yields an empty snapshot.
func ParseSnapshot(raw json.RawMessage) (Snapshot, error) {
	var s Snapshot
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return s, nil
	}
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return s, WrapError(ErrCodeInvalid, "history value is not a settings snapshot", err)
	}
	return s, nil
}

// Settings is the tenant-scoped configuration aggregate for one module.
type Settings struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenantId"`
	Module    Module     `json:"module"`
	Version   int        `json:"version"`
	Data      Document   `json:"data"`
	Entries   []Entry    `json:"entries,omitempty"`
	IsDeleted bool       `json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedBy string     `json:"createdBy,omitempty"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Touch refreshes timestamps and records who made the change.
func (s *Settings) Touch(now time.Time, actorID string) {
	if s == nil {
		return
	}
	s.UpdatedAt = now
	s.UpdatedBy = actorID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
		s.CreatedBy = actorID
	}
}

func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	out := *s
	out.Data = s.Data.Clone()
	if s.Entries != nil {
		out.Entries = make([]Entry, len(s.Entries))
		for i, e := range s.Entries {
			out.Entries[i] = e.clone()
		}
	}
	if s.DeletedAt != nil {
		t := *s.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}

// Snapshot captures data and every entry, tombstones included.
func (s *Settings) Snapshot() Snapshot {
	c := s.Clone()
	return Snapshot{Data: c.Data, Entries: c.Entries}
}

// Restore replaces the aggregate state with snap and revives a soft-deleted aggregate.
func (s *Settings) Restore(snap Snapshot) {
	c := (&Settings{Data: snap.Data, Entries: snap.Entries}).Clone()
	s.Data = c.Data
	s.Entries = c.Entries
	s.IsDeleted = false
	s.DeletedAt = nil
}

// Merge applies a shallow patch to the module document.
func (s *Settings) Merge(patch Document) {
	s.Data = s.Data.Merge(patch)
}

func (s *Settings) SoftDelete(now time.Time) {
	s.IsDeleted = true
	s.DeletedAt = &now
}

// View returns a copy without soft-deleted entries.
func (s *Settings) View() *Settings {
	out := s.Clone()
	if out == nil || out.Entries == nil {
		return out
	}
	live := out.Entries[:0]
	for _, e := range out.Entries {
		if !e.IsDeleted {
			live = append(live, e)
		}
	}
	out.Entries = live
	return out
}

// LiveEntry finds the non-deleted entry called name.
func (s *Settings) LiveEntry(name string) (Entry, bool) {
	if i := s.liveIndex(name); i >= 0 {
		return s.Entries[i].clone(), true
	}
	return Entry{}, false
}

func (s *Settings) AppendEntry(e Entry, now time.Time) error {
	if s.liveIndex(e.Name) >= 0 {
		return ErrEntryAlreadyExists
	}
	e.IsDeleted = false
	e.CreatedAt = now
	e.UpdatedAt = now
	s.Entries = append(s.Entries, e.clone())
	return nil
}

// UpdateEntry merges patch into the entry data. A non-nil enabled overrides the flag.
func (s *Settings) UpdateEntry(name string, patch Document, enabled *bool, now time.Time) (Entry, error) {
	i := s.liveIndex(name)
	if i < 0 {
		return Entry{}, ErrEntryNotFound
	}
	e := &s.Entries[i]
	e.Data = e.Data.Merge(patch)
	if enabled != nil {
		e.Enabled = *enabled
	}
	e.UpdatedAt = now
	return e.clone(), nil
}

func (s *Settings) ToggleEntry(name string, now time.Time) (Entry, error) {
	i := s.liveIndex(name)
	if i < 0 {
		return Entry{}, ErrEntryNotFound
	}
	e := &s.Entries[i]
	e.Enabled = !e.Enabled
	e.UpdatedAt = now
	return e.clone(), nil
}

func (s *Settings) SoftDeleteEntry(name string, now time.Time) error {
	i := s.liveIndex(name)
	if i < 0 {
		return ErrEntryNotFound
	}
	s.Entries[i].IsDeleted = true
	s.Entries[i].UpdatedAt = now
	return nil
}

func (s *Settings) liveIndex(name string) int {
	for i, e := range s.Entries {
		if e.Name == name && !e.IsDeleted {
			return i
		}
	}
	return -1
}

// Decode unmarshals the module document into a typed configuration struct.
func (s *Settings) Decode(dst any) error {
	return DecodeDocument(s.Data, dst)
}

// DecodeDocument converts a document into dst through its JSON form.
func DecodeDocument(doc Document, dst any) error {
	if doc == nil {
		doc = Document{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// SettingsInput carries the payload for creating an aggregate.
type SettingsInput struct {
	Data    Document `json:"data"`
	Entries []Entry  `json:"entries,omitempty"`
}

func jsonEqual(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if err := json.Compact(&ca, a); err != nil {
		return bytes.Equal(a, b)
	}
	if err := json.Compact(&cb, b); err != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
