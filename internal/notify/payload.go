// Package notify decodes push payloads into local notifications and defines
// the Notifier surface used to reach the platform tray.
package notify

import "encoding/json"

// Defaults applied when a push payload omits presentation fields.
const (
	DefaultTitle = "Game Store"
	DefaultIcon  = "/icon-192.png"
	DefaultBadge = "/icon-192.png"
)

// defaultVibration is a short, non-intrusive pattern.
var defaultVibration = []int{100, 50, 100}

// Action is one button attached to a notification.
type Action struct {
	ID    string `json:"action"`
	Title string `json:"title"`
	Icon  string `json:"icon,omitempty"`
}

// Notification is a local notification ready for display. Tag is used by the
// platform for de-duplication: showing a notification with an existing tag
// replaces the previous one.
type Notification struct {
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Icon               string         `json:"icon"`
	Badge              string         `json:"badge"`
	Image              string         `json:"image,omitempty"`
	Tag                string         `json:"tag,omitempty"`
	Data               map[string]any `json:"data,omitempty"`
	Actions            []Action       `json:"actions"`
	Vibrate            []int          `json:"vibrate"`
	RequireInteraction bool           `json:"requireInteraction"`
}

// DecodePayload turns a raw push payload into a Notification. Decoded fields
// are merged over defaults. A payload that is not valid JSON degrades to a
// minimal notification carrying the raw text as body; this never fails.
func DecodePayload(raw []byte) Notification {
	n := Notification{
		Title:   DefaultTitle,
		Icon:    DefaultIcon,
		Badge:   DefaultBadge,
		Actions: []Action{},
		Vibrate: defaultVibration,
	}

	if len(raw) == 0 {
		n.Body = "You have a new notification"
		return n
	}

	var decoded Notification
	if err := json.Unmarshal(raw, &decoded); err != nil {
		n.Body = string(raw)
		return n
	}

	if decoded.Title != "" {
		n.Title = decoded.Title
	}
	n.Body = decoded.Body
	if decoded.Icon != "" {
		n.Icon = decoded.Icon
	}
	if decoded.Badge != "" {
		n.Badge = decoded.Badge
	}
	n.Image = decoded.Image
	n.Tag = decoded.Tag
	n.Data = decoded.Data
	if decoded.Actions != nil {
		n.Actions = decoded.Actions
	}
	if decoded.Vibrate != nil {
		n.Vibrate = decoded.Vibrate
	}
	n.RequireInteraction = decoded.RequireInteraction

	return n
}

// TargetURL resolves the navigation target for a click. The clicked action id
// wins when the data bag maps it to a URL, then the payload's own url, then
// the site root.
func (n Notification) TargetURL(actionID string) string {
	if n.Data != nil {
		if actionID != "" {
			if u, ok := n.Data[actionID].(string); ok && u != "" {
				return u
			}
		}
		if u, ok := n.Data["url"].(string); ok && u != "" {
			return u
		}
	}
	return "/"
}
