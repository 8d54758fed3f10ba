// Package storage implements the persisted keymap wire format named in
// spec.md section 6: a versioned header followed by
// [NUM_LAYER][ROW][COL] of KeyAction, little-endian, 2 bytes per action.
// No flash driver lives here (that adapter is out of scope) -- this is
// the pure encode/decode pair a real Storage adapter would wrap.
package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/uplg/keybd/internal/action"
	"github.com/uplg/keybd/internal/errs"
	"github.com/uplg/keybd/internal/keymap"
)

// FormatVersion is the current persisted-layout version.
const FormatVersion uint16 = 1

const headerSize = 8 // version(2) + layers(2) + rows(2) + cols(2)
const actionSize = 2 // Kind(1) + payload byte(1)

// EncodeKeyMap serializes the bindings of every layer of m, active or
// not, into the persisted layout. Only the single-tap binding of each
// KeyAction is persisted. Each Action is written as its Kind plus one
// payload byte (Key, Mod, or Layer, whichever the Kind uses). A OneShot
// stores its inner modifier mask and decodes back to a OneShot modifier.
// A TapHold stores only its tap leaf's keycode; its hold leaf is not
// stored, and DecodeKeyMap reads a TapHold entry back as action.No.
func EncodeKeyMap(m *keymap.Map) []byte {
	buf := make([]byte, headerSize+m.NumLayers*m.Rows*m.Cols*actionSize)
	binary.LittleEndian.PutUint16(buf[0:2], FormatVersion)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(m.NumLayers))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(m.Rows))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(m.Cols))

	off := headerSize
	for l := 0; l < m.NumLayers; l++ {
		for r := 0; r < m.Rows; r++ {
			for c := 0; c < m.Cols; c++ {
				a := m.ActionAtLayer(l, r, c)
				buf[off], buf[off+1] = encodeAction(a)
				off += actionSize
			}
		}
	}
	return buf
}

// DecodeKeyMap parses a persisted layout back into a fresh keymap.Map.
func DecodeKeyMap(buf []byte) (*keymap.Map, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("storage: truncated header (%d bytes): %w", len(buf), errs.ErrConfiguration)
	}
	version := binary.LittleEndian.Uint16(buf[0:2])
	if version != FormatVersion {
		return nil, fmt.Errorf("storage: unsupported format version %d: %w", version, errs.ErrConfiguration)
	}
	layers := int(binary.LittleEndian.Uint16(buf[2:4]))
	rows := int(binary.LittleEndian.Uint16(buf[4:6]))
	cols := int(binary.LittleEndian.Uint16(buf[6:8]))

	want := headerSize + layers*rows*cols*actionSize
	if len(buf) < want {
		return nil, fmt.Errorf("storage: truncated body, want %d bytes have %d: %w", want, len(buf), errs.ErrConfiguration)
	}

	m, err := keymap.New(rows, cols, layers)
	if err != nil {
		return nil, err
	}

	off := headerSize
	for l := 0; l < layers; l++ {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				a := decodeAction(buf[off], buf[off+1])
				if err := m.Set(l, r, c, action.FromAction(a)); err != nil {
					return nil, err
				}
				off += actionSize
			}
		}
	}
	return m, nil
}

func encodeAction(a action.Action) (byte, byte) {
	switch a.Kind {
	case action.KindKey:
		return byte(a.Kind), byte(a.Key)
	case action.KindModifier:
		return byte(a.Kind), byte(a.Mod)
	case action.KindLayerOn, action.KindLayerOff, action.KindLayerToggle, action.KindMomentary, action.KindDefaultLayer:
		return byte(a.Kind), byte(a.Layer)
	case action.KindTapHold:
		// Flattened: persists only the tap leaf's payload (see doc comment).
		if a.Tap != nil {
			return byte(a.Kind), byte(a.Tap.Key)
		}
		return byte(a.Kind), 0
	case action.KindOneShot:
		if a.Inner != nil {
			return byte(a.Kind), byte(a.Inner.Mod)
		}
		return byte(a.Kind), 0
	default:
		return byte(a.Kind), 0
	}
}

func decodeAction(kindByte, payload byte) action.Action {
	switch action.Kind(kindByte) {
	case action.KindKey:
		return action.Key(action.KeyCode(payload))
	case action.KindModifier:
		return action.Modifier(action.ModifierMask(payload))
	case action.KindLayerOn:
		return action.LayerOn(payload)
	case action.KindLayerOff:
		return action.LayerOff(payload)
	case action.KindLayerToggle:
		return action.LayerToggle(payload)
	case action.KindMomentary:
		return action.Momentary(payload)
	case action.KindDefaultLayer:
		return action.Action{Kind: action.KindDefaultLayer, Layer: payload}
	case action.KindOneShot:
		return action.OneShot(action.Modifier(action.ModifierMask(payload)))
	case action.KindTransparent:
		return action.Transparent
	default:
		return action.No
	}
}
