package settings

import (
	"errors"
	"io"
	"slices"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// pretty matches the two-space layout the documents are stored in.
var pretty = jsoniter.Config{EscapeHTML: true, IndentionStep: 2}.Froze()

// Decode parses a document; object key order is kept. Scalars other than strings become their
// JSON text, nulls become empty lists.
func Decode(data []byte) (*Node, error) {
	iter := jsoniter.ConfigCompatibleWithStandardLibrary.BorrowIterator(data)
	defer jsoniter.ConfigCompatibleWithStandardLibrary.ReturnIterator(iter)

	node := readNode(iter)
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return nil, iter.Error
	}

	return node, nil
}

// Encode renders a document indented by two spaces.
func Encode(n *Node) ([]byte, error) {
	return encode(pretty, n)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}

	*n = *decoded

	return nil
}

func (n *Node) MarshalJSON() ([]byte, error) {
	return encode(jsoniter.ConfigCompatibleWithStandardLibrary, n)
}

func encode(api jsoniter.API, n *Node) ([]byte, error) {
	stream := api.BorrowStream(nil)
	defer api.ReturnStream(stream)

	writeNode(stream, n)
	if stream.Error != nil {
		return nil, stream.Error
	}

	return slices.Clone(stream.Buffer()), nil
}

func readNode(iter *jsoniter.Iterator) *Node {
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		node := NewBranch()
		iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			node.set(key, readNode(it))
			return it.Error == nil
		})
		return node

	case jsoniter.ArrayValue:
		node := NewLeaves()
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			if v, ok := readScalar(it); ok {
				node.values = append(node.values, v)
			}
			return it.Error == nil
		})
		return node

	default:
		if v, ok := readScalar(iter); ok {
			return NewLeaves(v)
		}
		return NewLeaves()
	}
}

func readScalar(iter *jsoniter.Iterator) (string, bool) {
	switch iter.WhatIsNext() {
	case jsoniter.StringValue:
		return iter.ReadString(), true
	case jsoniter.NumberValue:
		return string(iter.ReadNumber()), true
	case jsoniter.BoolValue:
		return strconv.FormatBool(iter.ReadBool()), true
	default:
		iter.Skip()
		return "", false
	}
}

func writeNode(stream *jsoniter.Stream, n *Node) {
	if n == nil || n.kind == KindLeaves {
		var values []string
		if n != nil {
			values = n.values
		}

		if len(values) == 0 {
			stream.WriteEmptyArray()
			return
		}

		stream.WriteArrayStart()
		for i, v := range values {
			if i > 0 {
				stream.WriteMore()
			}
			stream.WriteString(v)
		}
		stream.WriteArrayEnd()

		return
	}

	if len(n.keys) == 0 {
		stream.WriteEmptyObject()
		return
	}

	stream.WriteObjectStart()
	for i, k := range n.keys {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(k)
		writeNode(stream, n.children[k])
	}
	stream.WriteObjectEnd()
}
