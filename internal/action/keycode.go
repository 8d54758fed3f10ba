package action

// KeyCode is a USB HID keyboard usage ID (HID Usage Tables, page 0x07),
// the same numbering space the assembled Report's keycode bytes use.
type KeyCode uint8

// A subset of the USB HID keyboard usage table, enough to express a
// full alphanumeric keymap plus common punctuation and navigation keys.
const (
	KCNone KeyCode = 0x00

	KCA KeyCode = 0x04
	KCB KeyCode = 0x05
	KCC KeyCode = 0x06
	KCD KeyCode = 0x07
	KCE KeyCode = 0x08
	KCF KeyCode = 0x09
	KCG KeyCode = 0x0A
	KCH KeyCode = 0x0B
	KCI KeyCode = 0x0C
	KCJ KeyCode = 0x0D
	KCK KeyCode = 0x0E
	KCL KeyCode = 0x0F
	KCM KeyCode = 0x10
	KCN KeyCode = 0x11
	KCO KeyCode = 0x12
	KCP KeyCode = 0x13
	KCQ KeyCode = 0x14
	KCR KeyCode = 0x15
	KCS KeyCode = 0x16
	KCT KeyCode = 0x17
	KCU KeyCode = 0x18
	KCV KeyCode = 0x19
	KCW KeyCode = 0x1A
	KCX KeyCode = 0x1B
	KCY KeyCode = 0x1C
	KCZ KeyCode = 0x1D

	KC1 KeyCode = 0x1E
	KC2 KeyCode = 0x1F
	KC3 KeyCode = 0x20
	KC4 KeyCode = 0x21
	KC5 KeyCode = 0x22
	KC6 KeyCode = 0x23
	KC7 KeyCode = 0x24
	KC8 KeyCode = 0x25
	KC9 KeyCode = 0x26
	KC0 KeyCode = 0x27

	KCEnter     KeyCode = 0x28
	KCEsc       KeyCode = 0x29
	KCBackspace KeyCode = 0x2A
	KCTab       KeyCode = 0x2B
	KCSpace     KeyCode = 0x2C
	KCMinus     KeyCode = 0x2D
	KCEqual     KeyCode = 0x2E
	KCLBracket  KeyCode = 0x2F
	KCRBracket  KeyCode = 0x30

	KCCapsLock KeyCode = 0x39

	KCF1  KeyCode = 0x3A
	KCF2  KeyCode = 0x3B
	KCF3  KeyCode = 0x3C
	KCF4  KeyCode = 0x3D
	KCF5  KeyCode = 0x3E
	KCF6  KeyCode = 0x3F
	KCF7  KeyCode = 0x40
	KCF8  KeyCode = 0x41
	KCF9  KeyCode = 0x42
	KCF10 KeyCode = 0x43
	KCF11 KeyCode = 0x44
	KCF12 KeyCode = 0x45

	KCRight KeyCode = 0x4F
	KCLeft  KeyCode = 0x50
	KCDown  KeyCode = 0x51
	KCUp    KeyCode = 0x52
)

// keycodeNames maps the parser's QMK-style "KC_" names to usage IDs.
var keycodeNames = map[string]KeyCode{
	"KC_A": KCA, "KC_B": KCB, "KC_C": KCC, "KC_D": KCD, "KC_E": KCE,
	"KC_F": KCF, "KC_G": KCG, "KC_H": KCH, "KC_I": KCI, "KC_J": KCJ,
	"KC_K": KCK, "KC_L": KCL, "KC_M": KCM, "KC_N": KCN, "KC_O": KCO,
	"KC_P": KCP, "KC_Q": KCQ, "KC_R": KCR, "KC_S": KCS, "KC_T": KCT,
	"KC_U": KCU, "KC_V": KCV, "KC_W": KCW, "KC_X": KCX, "KC_Y": KCY,
	"KC_Z": KCZ,

	"KC_1": KC1, "KC_2": KC2, "KC_3": KC3, "KC_4": KC4, "KC_5": KC5,
	"KC_6": KC6, "KC_7": KC7, "KC_8": KC8, "KC_9": KC9, "KC_0": KC0,

	"KC_ENTER": KCEnter, "KC_ENT": KCEnter,
	"KC_ESC": KCEsc, "KC_ESCAPE": KCEsc,
	"KC_BSPC": KCBackspace, "KC_BACKSPACE": KCBackspace,
	"KC_TAB":   KCTab,
	"KC_SPACE": KCSpace, "KC_SPC": KCSpace,
	"KC_MINUS": KCMinus, "KC_EQUAL": KCEqual,
	"KC_LBRACKET": KCLBracket, "KC_RBRACKET": KCRBracket,
	"KC_CAPSLOCK": KCCapsLock,

	"KC_F1": KCF1, "KC_F2": KCF2, "KC_F3": KCF3, "KC_F4": KCF4,
	"KC_F5": KCF5, "KC_F6": KCF6, "KC_F7": KCF7, "KC_F8": KCF8,
	"KC_F9": KCF9, "KC_F10": KCF10, "KC_F11": KCF11, "KC_F12": KCF12,

	"KC_RIGHT": KCRight, "KC_LEFT": KCLeft, "KC_DOWN": KCDown, "KC_UP": KCUp,
}

// KeyCodeByName resolves a QMK-style "KC_*" keycode name, as used by the
// keymap fixture parser.
func KeyCodeByName(name string) (KeyCode, bool) {
	kc, ok := keycodeNames[name]
	return kc, ok
}
