package types

import "strconv"

// ValueKind tags the payload carried by a Value, per §6 "Element value types".
type ValueKind int

const (
	KindEmptyList ValueKind = iota
	KindEmptyContainer
	KindPresenceContainer
	KindEmptyLeaf
	KindUnion
	KindBinary
	KindBits
	KindBool
	KindDecimal64
	KindEnum
	KindIdentityRef
	KindInstanceID
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindString
	KindUint8
	KindUint16
	KindUint32
	KindUint64
)

var valueKindNames = [...]string{
	KindEmptyList:         "empty-list",
	KindEmptyContainer:    "empty-container",
	KindPresenceContainer: "presence-container",
	KindEmptyLeaf:         "empty-leaf",
	KindUnion:             "union",
	KindBinary:            "binary",
	KindBits:              "bits",
	KindBool:              "bool",
	KindDecimal64:         "decimal64",
	KindEnum:              "enum",
	KindIdentityRef:       "identityref",
	KindInstanceID:        "instance-id",
	KindInt8:              "int8",
	KindInt16:             "int16",
	KindInt32:             "int32",
	KindInt64:             "int64",
	KindString:            "string",
	KindUint8:             "uint8",
	KindUint16:            "uint16",
	KindUint32:            "uint32",
	KindUint64:            "uint64",
}

// String renders the kind using its YANG type name.
func (k ValueKind) String() string {
	if int(k) < 0 || int(k) >= len(valueKindNames) {
		return "unknown"
	}
	return valueKindNames[k]
}

// ParseValueKind is the inverse of ValueKind.String, used by codecs that
// round-trip a Value through a textual representation (the XML data
// store codec, JSON fixtures in tests).
func ParseValueKind(s string) (ValueKind, error) {
	for k, name := range valueKindNames {
		if name == s {
			return ValueKind(k), nil
		}
	}
	return 0, NewError(InvalidArg, "unknown value kind: %s", s)
}

// Value is a tagged union: exactly one of the typed fields below is
// meaningful for a given Kind. XPath and Default are set regardless of
// Kind. This mirrors the sum-type idiom called for in DESIGN NOTES §9
// in place of a generic interface{} payload.
type Value struct {
	XPath   string
	Kind    ValueKind
	Default bool

	Str    string  // KindString, KindIdentityRef, KindInstanceID, KindUnion, KindBits, KindEnum
	Bin    []byte  // KindBinary
	Bool   bool    // KindBool
	Int    int64   // KindInt8/16/32/64
	Uint   uint64  // KindUint8/16/32/64
	Dec    float64 // KindDecimal64 (fixed-point semantics enforced by the validator, not this type)
	DecDig uint8   // number of fractional digits for KindDecimal64
}

// String renders the value's payload as a string, ignoring XPath/Kind
// metadata. Used by the XML codec and by diff formatting.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return formatInt(v.Int)
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return formatUint(v.Uint)
	case KindBinary:
		return base64Encode(v.Bin)
	case KindDecimal64:
		prec := -1
		if v.DecDig > 0 {
			prec = int(v.DecDig)
		}
		return strconv.FormatFloat(v.Dec, 'f', prec, 64)
	case KindEmptyLeaf, KindEmptyContainer, KindEmptyList:
		return ""
	default:
		return v.Str
	}
}

// Equal reports whether two values carry the same payload, ignoring
// the Default flag (used by diff generation to detect MODIFIED nodes).
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return v.Int == o.Int
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return v.Uint == o.Uint
	case KindDecimal64:
		return v.Dec == o.Dec && v.DecDig == o.DecDig
	case KindBinary:
		return string(v.Bin) == string(o.Bin)
	case KindEmptyLeaf, KindEmptyContainer, KindEmptyList, KindPresenceContainer:
		return true
	default:
		return v.Str == o.Str
	}
}
