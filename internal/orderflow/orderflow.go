// Package orderflow holds the order transition table: which actor may move an
// order from one status to another.
package orderflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/saborportugues/api/internal/enum"
)

// ErrInvalidTransition is wrapped by every rejection from CanTransition.
var ErrInvalidTransition = errors.New("invalid status transition")

// Transition is a permitted status change and the actor allowed to make it.
type Transition struct {
	From  enum.OrderStatus
	To    enum.OrderStatus
	Actor enum.Actor
}

// Forward steps come before cancellations so ValidTransitionsFrom lists the
// happy path first.
var validTransitions = []Transition{
	{From: enum.OrderStatusPending, To: enum.OrderStatusAccepted, Actor: enum.ActorRestaurant},
	{From: enum.OrderStatusPending, To: enum.OrderStatusCancelled, Actor: enum.ActorRestaurant},

	{From: enum.OrderStatusAccepted, To: enum.OrderStatusPreparing, Actor: enum.ActorRestaurant},
	{From: enum.OrderStatusAccepted, To: enum.OrderStatusCancelled, Actor: enum.ActorRestaurant},

	{From: enum.OrderStatusPreparing, To: enum.OrderStatusOutForDelivery, Actor: enum.ActorRestaurant},
	{From: enum.OrderStatusPreparing, To: enum.OrderStatusCancelled, Actor: enum.ActorRestaurant},

	// Drivers only ever complete; claiming does not change the status.
	{From: enum.OrderStatusOutForDelivery, To: enum.OrderStatusDelivered, Actor: enum.ActorDriver},
	{From: enum.OrderStatusOutForDelivery, To: enum.OrderStatusCancelled, Actor: enum.ActorRestaurant},
}

type transitionKey struct {
	from  enum.OrderStatus
	to    enum.OrderStatus
	actor enum.Actor
}

var transitionMap = func() map[transitionKey]bool {
	m := make(map[transitionKey]bool, len(validTransitions))
	for _, t := range validTransitions {
		m[transitionKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

// CanTransition returns nil if actor may move an order from -> to.
func CanTransition(from, to enum.OrderStatus, actor enum.Actor) error {
	if transitionMap[transitionKey{from, to, actor}] {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s is not allowed for %s (valid from %s: %s)",
		ErrInvalidTransition, from, to, actor, from, describeValidFrom(from))
}

// ValidTransitionsFrom returns the distinct statuses reachable from status by any actor.
func ValidTransitionsFrom(status enum.OrderStatus) []enum.OrderStatus {
	nexts := []enum.OrderStatus{}
	seen := map[enum.OrderStatus]bool{}
	for _, t := range validTransitions {
		if t.From == status && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// Transitions returns a copy of the full table.
func Transitions() []Transition {
	return append([]Transition(nil), validTransitions...)
}

func describeValidFrom(status enum.OrderStatus) string {
	nexts := ValidTransitionsFrom(status)
	if len(nexts) == 0 {
		return "none"
	}
	parts := make([]string, len(nexts))
	for i, s := range nexts {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
