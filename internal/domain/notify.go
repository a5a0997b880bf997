package domain

import "strconv"

// BadgeCap is the largest unread count rendered literally.
const BadgeCap = 9

// Badge is the unread indicator shown by the consumer.
type Badge struct {
	Count   int  `json:"count"`
	Visible bool `json:"visible"`
}

// BadgeFor returns the badge for an unread count.
func BadgeFor(unread int) Badge {
	return Badge{Count: unread, Visible: unread > 0}
}

// Label returns the display text for the badge. Counts above BadgeCap are
// rendered as "9+"; the stored count is unaffected.
func (b Badge) Label() string {
	switch {
	case b.Count <= 0:
		return ""
	case b.Count > BadgeCap:
		return strconv.Itoa(BadgeCap) + "+"
	default:
		return strconv.Itoa(b.Count)
	}
}

// WindowState is the consumer window's focus and visibility.
type WindowState struct {
	Focused   bool `json:"focused"`
	Visible   bool `json:"visible"`
	Minimized bool `json:"minimized"`
}

// Attentive reports whether the operator can currently see new messages.
func (w WindowState) Attentive() bool {
	return w.Focused && w.Visible && !w.Minimized
}
