package datastore

import (
	"encoding/base64"
	"encoding/xml"
	"strconv"

	"github.com/cuemby/yangstore/pkg/types"
)

// The on-disk tree format (spec §4.4 "Data Store"): one <node> element
// per types.Node, recursively. Key leaves and the node's own value (if
// it is a leaf) carry their ValueKind as an attribute so decoding can
// reconstruct the typed payload without a schema in hand. encoding/xml
// is stdlib; no third-party XML codec appears anywhere in the
// retrieval pack (see DESIGN.md).

type xmlTree struct {
	XMLName xml.Name  `xml:"tree"`
	Roots   []xmlNode `xml:"node"`
}

type xmlNode struct {
	XMLName  xml.Name
	Module   string    `xml:"module,attr,omitempty"`
	Keys     []xmlKV   `xml:"key,omitempty"`
	Value    *xmlValue `xml:"value,omitempty"`
	Children []xmlNode `xml:"node"`
}

type xmlKV struct {
	Name string `xml:"name,attr"`
	Kind string `xml:"kind,attr"`
	Data string `xml:",chardata"`
}

type xmlValue struct {
	Kind    string `xml:"kind,attr"`
	Default bool   `xml:"default,attr,omitempty"`
	DecDig  uint8  `xml:"decdig,attr,omitempty"`
	Data    string `xml:",chardata"`
}

// EncodeForest serializes a list of module-root nodes (one Data Store
// file holds one module's forest of top-level nodes) to XML, with
// default-flagged values stripped per spec §4.4 ("default nodes are
// stripped from the on-disk representation").
func EncodeForest(roots []*types.Node) ([]byte, error) {
	tree := xmlTree{}
	for _, r := range roots {
		if n, ok := toXMLNode(r); ok {
			tree.Roots = append(tree.Roots, n)
		}
	}
	out, err := xml.MarshalIndent(tree, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// DecodeForest parses XML produced by EncodeForest back into a forest
// of detached Node trees.
func DecodeForest(data []byte) ([]*types.Node, error) {
	var tree xmlTree
	if err := xml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	roots := make([]*types.Node, 0, len(tree.Roots))
	for _, xn := range tree.Roots {
		n, err := fromXMLNode(xn)
		if err != nil {
			return nil, err
		}
		roots = append(roots, n)
	}
	return roots, nil
}

func toXMLNode(n *types.Node) (xmlNode, bool) {
	if n.Value != nil && n.Value.Default {
		return xmlNode{}, false
	}
	xn := xmlNode{
		XMLName: xml.Name{Local: n.Name},
		Module:  n.Module,
	}
	if len(n.Keys) > 0 {
		for name, v := range n.Keys {
			xn.Keys = append(xn.Keys, xmlKV{Name: name, Kind: v.Kind.String(), Data: v.String()})
		}
	}
	if n.Value != nil {
		xn.Value = &xmlValue{Kind: n.Value.Kind.String(), Default: n.Value.Default, DecDig: n.Value.DecDig, Data: n.Value.String()}
	}
	for _, c := range n.Children {
		if cn, ok := toXMLNode(c); ok {
			xn.Children = append(xn.Children, cn)
		}
	}
	return xn, true
}

func fromXMLNode(xn xmlNode) (*types.Node, error) {
	n := &types.Node{Name: xn.XMLName.Local, Module: xn.Module}
	if len(xn.Keys) > 0 {
		n.Keys = make(map[string]types.Value, len(xn.Keys))
		for _, kv := range xn.Keys {
			v, err := ValueFromPayload(kv.Kind, kv.Data, 0)
			if err != nil {
				return nil, err
			}
			n.Keys[kv.Name] = v
		}
	}
	if xn.Value != nil {
		v, err := ValueFromPayload(xn.Value.Kind, xn.Value.Data, xn.Value.DecDig)
		if err != nil {
			return nil, err
		}
		v.Default = xn.Value.Default
		n.Value = &v
	}
	for _, c := range xn.Children {
		child, err := fromXMLNode(c)
		if err != nil {
			return nil, err
		}
		n.AppendChild(child)
	}
	return n, nil
}

// ValueFromPayload parses a (kind-name, string-payload) pair into a
// types.Value, the inverse of Value.String() for every ValueKind this
// codec round-trips. Exported so other wire formats addressing the same
// Value sum type (pkg/opdata's operational-data provider protocol) can
// parse payloads the same way the data store's own XML codec does.
func ValueFromPayload(kindName, data string, decDig uint8) (types.Value, error) {
	kind, err := types.ParseValueKind(kindName)
	if err != nil {
		return types.Value{}, err
	}
	v := types.Value{Kind: kind, DecDig: decDig}
	switch kind {
	case types.KindBool:
		v.Bool = data == "true"
	case types.KindInt8, types.KindInt16, types.KindInt32, types.KindInt64:
		n, err := strconv.ParseInt(data, 10, 64)
		if err != nil {
			return types.Value{}, types.NewError(types.MalformedMsg, "bad int payload %q: %v", data, err)
		}
		v.Int = n
	case types.KindUint8, types.KindUint16, types.KindUint32, types.KindUint64:
		n, err := strconv.ParseUint(data, 10, 64)
		if err != nil {
			return types.Value{}, types.NewError(types.MalformedMsg, "bad uint payload %q: %v", data, err)
		}
		v.Uint = n
	case types.KindDecimal64:
		f, err := strconv.ParseFloat(data, 64)
		if err != nil {
			return types.Value{}, types.NewError(types.MalformedMsg, "bad decimal64 payload %q: %v", data, err)
		}
		v.Dec = f
	case types.KindBinary:
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return types.Value{}, types.NewError(types.MalformedMsg, "bad binary payload: %v", err)
		}
		v.Bin = b
	case types.KindEmptyLeaf, types.KindEmptyContainer, types.KindEmptyList, types.KindPresenceContainer:
		// no payload
	default:
		v.Str = data
	}
	return v, nil
}
