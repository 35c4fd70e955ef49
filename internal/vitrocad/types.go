package vitrocad

import (
	"encoding/json"
	"strings"
)

// Account is a VitroCAD principal as returned by the security endpoints.
// Profile attributes live in FieldValueMap keyed by upper-case column names.
type Account struct {
	ID            string            `json:"id"`
	Login         string            `json:"login"`
	Token         string            `json:"token,omitempty"`
	IsAdmin       bool              `json:"isAdmin,omitempty"`
	IsActive      *bool             `json:"isActive,omitempty"`
	GroupList     []Group           `json:"groupList,omitempty"`
	FieldValueMap map[string]string `json:"fieldValueMap,omitempty"`
}

type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (a *Account) field(keys ...string) string {
	for _, k := range keys {
		if v, ok := a.FieldValueMap[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// Active reports the provider's active flag. Accounts that omit the flag
// are treated as active.
func (a *Account) Active() bool {
	return a.IsActive == nil || *a.IsActive
}

// Name returns the display name, falling back to the login.
func (a *Account) Name() string {
	if n := a.field("NAME", "TITLE"); n != "" {
		return n
	}
	return a.Login
}

func (a *Account) Email() string {
	return strings.ToLower(a.field("EMAIL", "MAIL"))
}

func (a *Account) Avatar() string {
	return a.field("AVATAR", "PHOTO")
}

// GroupIDs flattens GroupList to a JSON array string suitable for storage.
func (a *Account) GroupIDs() string {
	ids := make([]string, 0, len(a.GroupList))
	for _, g := range a.GroupList {
		ids = append(ids, g.ID)
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

// Item is a document or list entry in the VitroCAD content tree.
type Item struct {
	ID            string            `json:"id"`
	ParentID      string            `json:"parentId,omitempty"`
	ListID        string            `json:"listId,omitempty"`
	CreatorID     string            `json:"creatorId,omitempty"`
	EditorID      string            `json:"editorId,omitempty"`
	Created       string            `json:"created,omitempty"`
	Modified      string            `json:"modified,omitempty"`
	FieldValueMap map[string]string `json:"fieldValueMap,omitempty"`
}

// Name returns the item display name from the field map.
func (it *Item) Name() string {
	if v, ok := it.FieldValueMap["NAME"]; ok && v != "" {
		return v
	}
	if v, ok := it.FieldValueMap["TITLE"]; ok && v != "" {
		return v
	}
	return it.ID
}

// Permission grants a principal access to an item.
type Permission struct {
	PrincipalID string `json:"principalId"`
	Level       string `json:"level,omitempty"`
}
