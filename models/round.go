package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RoundName identifies a knockout round of the 16-team bracket.
type RoundName string

const (
	RoundOf16    RoundName = "R16"
	QuarterFinal RoundName = "QF"
	SemiFinal    RoundName = "SF"
	Final        RoundName = "FINAL"
)

// BracketSize is the only supported bracket size.
const BracketSize = 16

// SlotCount is the number of match slots in a 16-team bracket.
const SlotCount = 15

var (
	ErrUnknownRound      = errors.New("unknown round")
	ErrRoundIndexInvalid = errors.New("round index out of range")
)

// Rounds lists the rounds in play order.
var Rounds = []RoundName{RoundOf16, QuarterFinal, SemiFinal, Final}

// MatchCount returns how many slots the round holds, 0 for an unknown round.
func (r RoundName) MatchCount() int {
	switch r {
	case RoundOf16:
		return 8
	case QuarterFinal:
		return 4
	case SemiFinal:
		return 2
	case Final:
		return 1
	default:
		return 0
	}
}

// Number is the 1-based position of the round in play order.
func (r RoundName) Number() int {
	for i, name := range Rounds {
		if name == r {
			return i + 1
		}
	}
	return 0
}

// Next returns the round fed by r. FINAL feeds nothing.
func (r RoundName) Next() (RoundName, bool) {
	n := r.Number()
	if n == 0 || n == len(Rounds) {
		return "", false
	}
	return Rounds[n], true
}

func (r RoundName) Valid() bool {
	return r.MatchCount() > 0
}

// RoundTag addresses one match slot of the bracket. The zero value is not a
// valid tag; use NewRoundTag or ParseRoundTag.
type RoundTag struct {
	Round RoundName
	Index uint8
}

// NewRoundTag validates the index against the round's range.
func NewRoundTag(round RoundName, index int) (RoundTag, error) {
	count := round.MatchCount()
	if count == 0 {
		return RoundTag{}, fmt.Errorf("%w: %q", ErrUnknownRound, string(round))
	}
	if index < 1 || index > count {
		return RoundTag{}, fmt.Errorf("%w: %s index %d (want 1..%d)", ErrRoundIndexInvalid, round, index, count)
	}
	return RoundTag{Round: round, Index: uint8(index)}, nil
}

// MustRoundTag panics on an invalid tag. Intended for constants and tests.
func MustRoundTag(round RoundName, index int) RoundTag {
	tag, err := NewRoundTag(round, index)
	if err != nil {
		panic(err)
	}
	return tag
}

// FinalTag is the single FINAL slot.
var FinalTag = RoundTag{Round: Final, Index: 1}

// ParseRoundTag accepts "R16-3", "QF-2", "SF-1", "FINAL" and "FINAL-1".
// Round names are matched case-insensitively.
func ParseRoundTag(raw string) (RoundTag, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == string(Final) {
		return FinalTag, nil
	}

	name, idx, ok := strings.Cut(s, "-")
	if !ok {
		return RoundTag{}, fmt.Errorf("%w: %q", ErrUnknownRound, raw)
	}
	index, err := strconv.Atoi(idx)
	if err != nil {
		return RoundTag{}, fmt.Errorf("%w: %q", ErrRoundIndexInvalid, raw)
	}
	return NewRoundTag(RoundName(name), index)
}

func (t RoundTag) String() string {
	if t.Round == Final {
		return string(Final)
	}
	return fmt.Sprintf("%s-%d", t.Round, t.Index)
}

// Valid reports whether t could have been produced by NewRoundTag.
func (t RoundTag) Valid() bool {
	return t.Round.Valid() && t.Index >= 1 && int(t.Index) <= t.Round.MatchCount()
}

// Order is the 0-based position of the slot in topology order
// (R16-1..R16-8, QF-1..QF-4, SF-1, SF-2, FINAL).
func (t RoundTag) Order() int {
	offset := 0
	for _, r := range Rounds {
		if r == t.Round {
			return offset + int(t.Index) - 1
		}
		offset += r.MatchCount()
	}
	return -1
}

func (t RoundTag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *RoundTag) UnmarshalText(text []byte) error {
	tag, err := ParseRoundTag(string(text))
	if err != nil {
		return err
	}
	*t = tag
	return nil
}

// AllRoundTags returns the 15 slots in topology order.
func AllRoundTags() []RoundTag {
	tags := make([]RoundTag, 0, SlotCount)
	for _, r := range Rounds {
		for i := 1; i <= r.MatchCount(); i++ {
			tags = append(tags, RoundTag{Round: r, Index: uint8(i)})
		}
	}
	return tags
}
