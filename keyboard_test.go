// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func TestLookupScancode(t *testing.T) {
	tests := []struct {
		key  string
		loc  Location
		want Scancode
	}{
		{"a", LocationStandard, 30},
		{"A", LocationStandard, 30},
		{"Escape", LocationStandard, 1},
		{"Shift", LocationLeft, ScanLShift},
		{"Shift", LocationRight, ScanRShift},
		{"5", LocationStandard, Scan5},
		{"5", LocationNumpad, ScanKP5},
		{"Control", LocationRight, 29},
		{"Delete", LocationNumpad, 83},
	}

	for _, tt := range tests {
		t.Run(tt.key+"/"+tt.loc.String(), func(t *testing.T) {
			got, ok := LookupScancode(tt.key, tt.loc)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := LookupScancode("F12", LocationStandard)
	assert.False(t, ok)
}

func TestTranslatorMakeBreakAllKeys(t *testing.T) {
	sink := &recordingSink{}
	k := NewKeyTranslator(log.NewTestLogger(t), sink)

	for key := range keyToXT {
		sink.keys = nil
		assert.NoError(t, k.KeyDown(&KeyEvent{Key: key}))
		assert.NoError(t, k.KeyUp(&KeyEvent{Key: key}))
		assert.Len(t, sink.keys, 2)
		assert.Equal(t, sink.keys[0]&0x7F, sink.keys[1]&0x7F)
		assert.Equal(t, byte(0x00), sink.keys[0]&KeyUpMask)
		assert.Equal(t, KeyUpMask, sink.keys[1]&KeyUpMask)
	}
}

func TestTranslatorScenarios(t *testing.T) {
	sink := &recordingSink{}
	k := NewKeyTranslator(log.NewTestLogger(t), sink)

	assert.NoError(t, k.KeyDown(&KeyEvent{Key: "a"}))
	assert.NoError(t, k.KeyUp(&KeyEvent{Key: "a"}))
	assert.Equal(t, []byte{30, 30 | KeyUpMask}, sink.keys)

	sink.keys = nil
	assert.NoError(t, k.KeyDown(&KeyEvent{Key: "Shift", Location: LocationRight}))
	assert.Equal(t, []byte{54}, sink.keys)

	sink.keys = nil
	assert.NoError(t, k.KeyDown(&KeyEvent{Key: "Shift", Location: LocationLeft}))
	assert.NoError(t, k.KeyDown(&KeyEvent{Key: "5", Location: LocationNumpad}))
	assert.NoError(t, k.KeyDown(&KeyEvent{Key: "5", Location: LocationStandard}))
	assert.Equal(t, []byte{42, 76, 6}, sink.keys)
}

func TestTranslatorSkipsEvents(t *testing.T) {
	sink := &recordingSink{}
	k := NewKeyTranslator(log.NewTestLogger(t), sink)

	assert.NoError(t, k.KeyDown(&KeyEvent{Key: "a", Repeat: true}))
	assert.NoError(t, k.KeyDown(&KeyEvent{Key: "a", Handled: true}))
	unknown := &KeyEvent{Key: "Meta"}
	assert.NoError(t, k.KeyDown(unknown))
	assert.False(t, unknown.Handled)
	assert.Len(t, sink.keys, 0)

	ev := &KeyEvent{Key: "q"}
	assert.NoError(t, k.KeyDown(ev))
	assert.True(t, ev.Handled)
	assert.NoError(t, k.KeyUp(ev))
	assert.Len(t, sink.keys, 1)
}

func TestTypeText(t *testing.T) {
	strokes := typeText("Hi\n")

	type stroke struct {
		key string
		up  bool
	}
	want := []stroke{
		{"Shift", false}, {"h", false}, {"h", true}, {"Shift", true},
		{"i", false}, {"i", true},
		{"Enter", false}, {"Enter", true},
	}
	assert.Len(t, strokes, len(want))
	for i, w := range want {
		assert.Equal(t, w.key, strokes[i].Event.Key)
		assert.Equal(t, w.up, strokes[i].Up)
	}

	sink := &recordingSink{}
	k := NewKeyTranslator(log.NewTestLogger(t), sink)
	for _, s := range strokes {
		assert.NoError(t, k.Type(s))
	}
	assert.Equal(t, []byte{42, 35, 35 | 0x80, 42 | 0x80, 23, 23 | 0x80, 28, 28 | 0x80}, sink.keys)
}

func TestTypeRuneControl(t *testing.T) {
	strokes, ok := typeRune(0x03)
	assert.True(t, ok)
	assert.Len(t, strokes, 4)
	assert.Equal(t, "Control", strokes[0].Event.Key)
	assert.Equal(t, "c", strokes[1].Event.Key)

	_, ok = typeRune('~')
	assert.False(t, ok)
	_, ok = typeRune('é')
	assert.False(t, ok)
}
