package message

import (
	"encoding/json"

	"github.com/google/uuid"
)

// System actions recorded as SYSTEM messages.
const (
	ActionChatCreated   = "chat_created"
	ActionFileUpdated   = "file_updated"
	ActionUserJoined    = "user_joined"
	ActionUserLeft      = "user_left"
	ActionUserAutoAdded = "user_auto_added"
)

// SystemEvent is a tagged union over known system actions. Exactly one of the
// typed payload fields is set for a known action; unknown actions round-trip
// through Raw so older payloads survive newer readers.
type SystemEvent struct {
	Action string

	ChatCreated   *ChatCreatedData
	FileUpdated   *FileUpdatedData
	UserJoined    *UserJoinedData
	UserLeft      *UserLeftData
	UserAutoAdded *UserAutoAddedData
	Raw           json.RawMessage
}

type ChatCreatedData struct {
	FileID   string    `json:"file_id,omitempty"`
	FileName string    `json:"file_name,omitempty"`
	Creator  uuid.UUID `json:"creator"`
}

type FileUpdatedData struct {
	FileID    string    `json:"file_id"`
	FileName  string    `json:"file_name"`
	UpdatedBy uuid.UUID `json:"updated_by"`
}

type UserJoinedData struct {
	UserID   uuid.UUID `json:"user_id"`
	UserName string    `json:"user_name"`
	AddedBy  uuid.UUID `json:"added_by"`
}

type UserLeftData struct {
	UserID    uuid.UUID `json:"user_id"`
	RemovedBy uuid.UUID `json:"removed_by"`
}

type UserAutoAddedData struct {
	UserID   uuid.UUID `json:"user_id"`
	UserName string    `json:"user_name"`
	Reason   string    `json:"reason"`
}

type systemEnvelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func (e SystemEvent) MarshalJSON() ([]byte, error) {
	var data any
	switch e.Action {
	case ActionChatCreated:
		data = e.ChatCreated
	case ActionFileUpdated:
		data = e.FileUpdated
	case ActionUserJoined:
		data = e.UserJoined
	case ActionUserLeft:
		data = e.UserLeft
	case ActionUserAutoAdded:
		data = e.UserAutoAdded
	default:
		return json.Marshal(systemEnvelope{Action: e.Action, Data: e.Raw})
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(systemEnvelope{Action: e.Action, Data: raw})
}

func (e *SystemEvent) UnmarshalJSON(b []byte) error {
	var env systemEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	*e = SystemEvent{Action: env.Action}
	switch env.Action {
	case ActionChatCreated:
		e.ChatCreated = &ChatCreatedData{}
		return unmarshalData(env.Data, e.ChatCreated)
	case ActionFileUpdated:
		e.FileUpdated = &FileUpdatedData{}
		return unmarshalData(env.Data, e.FileUpdated)
	case ActionUserJoined:
		e.UserJoined = &UserJoinedData{}
		return unmarshalData(env.Data, e.UserJoined)
	case ActionUserLeft:
		e.UserLeft = &UserLeftData{}
		return unmarshalData(env.Data, e.UserLeft)
	case ActionUserAutoAdded:
		e.UserAutoAdded = &UserAutoAddedData{}
		return unmarshalData(env.Data, e.UserAutoAdded)
	default:
		e.Raw = env.Data
		return nil
	}
}

func unmarshalData(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// Encode serializes e for storage in Message.SystemPayload.
func (e SystemEvent) Encode() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeSystemEvent parses a stored SystemPayload column value.
func DecodeSystemEvent(payload string) (SystemEvent, error) {
	var e SystemEvent
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return SystemEvent{}, err
	}
	return e, nil
}
