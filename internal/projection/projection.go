// Package projection derives the presentation of an order status: label,
// badge color, progress and whether the order can still change.
package projection

import (
	"github.com/saborportugues/api/internal/enum"
	"github.com/saborportugues/api/internal/orderflow"
)

// Projection is the display state of a single order status.
type Projection struct {
	Status          string   `json:"status"`
	Label           string   `json:"label"`
	ColorClass      string   `json:"color_class"`
	ProgressPercent int      `json:"progress_percent"`
	IsTerminal      bool     `json:"is_terminal"`
	NextStatuses    []string `json:"next_statuses"`
}

type presentation struct {
	label        string
	color        string
	notification string
}

var presentations = map[enum.OrderStatus]presentation{
	enum.OrderStatusPending:        {"Awaiting confirmation", "bg-yellow-500", "Order received"},
	enum.OrderStatusAccepted:       {"Accepted by restaurant", "bg-blue-500", "Order accepted by the restaurant"},
	enum.OrderStatusPreparing:      {"Being prepared", "bg-orange-500", "Order is being prepared"},
	enum.OrderStatusOutForDelivery: {"Out for delivery", "bg-purple-500", "Order is out for delivery"},
	enum.OrderStatusDelivered:      {"Delivered", "bg-green-500", "Order delivered!"},
	enum.OrderStatusCancelled:      {"Cancelled", "bg-red-500", "Order cancelled"},
}

const unknownColor = "bg-gray-500"

// Project maps a raw status string to its projection. Unknown statuses are
// rendered verbatim with a neutral color and no progress.
func Project(status string) Projection {
	s := enum.OrderStatus(status)
	p, ok := presentations[s]
	if !ok {
		return Projection{
			Status:       status,
			Label:        status,
			ColorClass:   unknownColor,
			NextStatuses: []string{},
		}
	}

	return Projection{
		Status:          status,
		Label:           p.label,
		ColorClass:      p.color,
		ProgressPercent: progress(s),
		IsTerminal:      s.Terminal(),
		NextStatuses:    nextStatuses(s),
	}
}

// NotificationText is the one-line message shown when an order moves into status.
func NotificationText(status string) string {
	if p, ok := presentations[enum.OrderStatus(status)]; ok {
		return p.notification
	}
	return "Status: " + status
}

func progress(s enum.OrderStatus) int {
	rank := s.Rank()
	if rank < 0 {
		return 0
	}
	return (rank + 1) * 100 / len(enum.OrderProgression)
}

func nextStatuses(s enum.OrderStatus) []string {
	nexts := orderflow.ValidTransitionsFrom(s)
	out := make([]string, len(nexts))
	for i, n := range nexts {
		out[i] = string(n)
	}
	return out
}
