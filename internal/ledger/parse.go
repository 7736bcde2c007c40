// Package ledger implements the trade-log reconciliation engine: it
// folds a stream of textual trade actions into a quantity ledger and
// keeps that ledger consistent across log replacement and replay.
package ledger

import (
	"regexp"
	"strconv"
	"strings"
)

// ActionType distinguishes additions from removals.
type ActionType int

// Action types.
const (
	ActionAdded ActionType = iota
	ActionRemoved
)

// Item is one quantity/name pair parsed from a trade action.
type Item struct {
	Name     string
	Quantity int
}

// Action is one parsed trade-log action.
type Action struct {
	Items []Item
	Type  ActionType
}

var (
	// Quantity-first form: "2x Xanax added to the trade". Anchoring on a
	// leading quantity keeps money lines ("$1,000,000 added to the trade")
	// out of the ledger.
	leadingAddedPattern   = regexp.MustCompile(`(?i)^\s*(\d+\s*x\s*.+?)\s+added to the trade\b`)
	leadingRemovedPattern = regexp.MustCompile(`(?i)^\s*(\d+\s*x\s*.+?)\s+removed from the trade\b`)
	// Verb-first form: "Player added 2x Xanax to the trade".
	addedPattern   = regexp.MustCompile(`(?i)\badded\b\s+(.*?)\s+\bto the trade\b`)
	removedPattern = regexp.MustCompile(`(?i)\bremoved\b\s+(.*?)\s+\bfrom the trade\b`)
	itemPattern    = regexp.MustCompile(`(?i)^(\d+)\s*x\s*(.+)$`)
)

// ParseAction matches an entry's cleaned text against the known trade
// action patterns. Entries matching neither pattern are ignored, not an
// error: ok is false and the caller moves on.
func ParseAction(text string) (Action, bool) {
	if m := leadingAddedPattern.FindStringSubmatch(text); m != nil {
		return Action{Type: ActionAdded, Items: parseItemList(m[1])}, true
	}
	if m := leadingRemovedPattern.FindStringSubmatch(text); m != nil {
		return Action{Type: ActionRemoved, Items: parseItemList(m[1])}, true
	}
	if m := addedPattern.FindStringSubmatch(text); m != nil {
		return Action{Type: ActionAdded, Items: parseItemList(m[1])}, true
	}
	if m := removedPattern.FindStringSubmatch(text); m != nil {
		return Action{Type: ActionRemoved, Items: parseItemList(m[1])}, true
	}
	return Action{}, false
}

// parseItemList splits an action payload like "2x Xanax, 1x Beer" into
// quantity/name pairs. Fragments that don't parse are skipped.
func parseItemList(payload string) []Item {
	var items []Item
	for _, part := range strings.Split(payload, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := itemPattern.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		qty, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		items = append(items, Item{Name: strings.TrimSpace(m[2]), Quantity: qty})
	}
	return items
}
