// Package fdt models flattened-device-tree nodes and serializes them into
// the blob format the guest kernel parses.
package fdt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// Property is a single device-tree property. Exactly one typed field may be
// populated.
type Property struct {
	Strings []string
	U32     []uint32
	U64     []uint64
	Bytes   []byte
	Flag    bool
}

func (p Property) kind() (string, error) {
	count := 0
	kind := ""
	if len(p.Strings) > 0 {
		count, kind = count+1, "strings"
	}
	if len(p.U32) > 0 {
		count, kind = count+1, "u32"
	}
	if len(p.U64) > 0 {
		count, kind = count+1, "u64"
	}
	if len(p.Bytes) > 0 {
		count, kind = count+1, "bytes"
	}
	if p.Flag {
		count, kind = count+1, "flag"
	}
	switch count {
	case 0:
		return "", fmt.Errorf("fdt: property has no values")
	case 1:
		return kind, nil
	default:
		return "", fmt.Errorf("fdt: property has %d value kinds", count)
	}
}

func (p Property) encode() ([]byte, error) {
	kind, err := p.kind()
	if err != nil {
		return nil, err
	}
	switch kind {
	case "strings":
		var buf bytes.Buffer
		for _, v := range p.Strings {
			buf.WriteString(v)
			buf.WriteByte(0)
		}
		return buf.Bytes(), nil
	case "u32":
		data := make([]byte, 0, len(p.U32)*4)
		for _, v := range p.U32 {
			data = binary.BigEndian.AppendUint32(data, v)
		}
		return data, nil
	case "u64":
		data := make([]byte, 0, len(p.U64)*8)
		for _, v := range p.U64 {
			data = binary.BigEndian.AppendUint64(data, v)
		}
		return data, nil
	case "bytes":
		return p.Bytes, nil
	default: // flag
		return nil, nil
	}
}

// Node is a device-tree node. Property order in the blob is by name, which
// keeps output deterministic.
type Node struct {
	Name       string
	Properties map[string]Property
	Children   []Node
}

const (
	headerSize  = 0x28
	treeVersion = 17
	lastCompVer = 16
	magic       = 0xd00dfeed

	tokenBeginNode = 0x1
	tokenEndNode   = 0x2
	tokenProp      = 0x3
	tokenEnd       = 0x9
)

// Build serializes the node tree rooted at root into an FDT blob.
func Build(root Node) ([]byte, error) {
	w := &blobWriter{stringOffsets: make(map[string]uint32)}
	if err := w.node(root); err != nil {
		return nil, err
	}
	return w.finish(), nil
}

type blobWriter struct {
	structure     bytes.Buffer
	stringTable   bytes.Buffer
	stringOffsets map[string]uint32
}

func (w *blobWriter) node(n Node) error {
	w.token(tokenBeginNode)
	w.structure.WriteString(n.Name)
	w.structure.WriteByte(0)
	w.pad()

	names := make([]string, 0, len(n.Properties))
	for name := range n.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := n.Properties[name].encode()
		if err != nil {
			return fmt.Errorf("%w (property %q of %q)", err, name, n.Name)
		}
		w.property(name, data)
	}

	for _, child := range n.Children {
		if err := w.node(child); err != nil {
			return err
		}
	}

	w.token(tokenEndNode)
	return nil
}

func (w *blobWriter) property(name string, value []byte) {
	w.token(tokenProp)
	w.u32(uint32(len(value)))
	w.u32(w.stringOffset(name))
	w.structure.Write(value)
	w.pad()
}

func (w *blobWriter) stringOffset(name string) uint32 {
	if off, ok := w.stringOffsets[name]; ok {
		return off
	}
	off := uint32(w.stringTable.Len())
	w.stringTable.WriteString(name)
	w.stringTable.WriteByte(0)
	w.stringOffsets[name] = off
	return off
}

func (w *blobWriter) token(t uint32) { w.u32(t) }

func (w *blobWriter) u32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.structure.Write(tmp[:])
}

func (w *blobWriter) pad() {
	for w.structure.Len()%4 != 0 {
		w.structure.WriteByte(0)
	}
}

func (w *blobWriter) finish() []byte {
	w.token(tokenEnd)
	w.pad()

	structure := w.structure.Bytes()
	strings := w.stringTable.Bytes()

	// One empty memory-reservation entry terminates the reserve map.
	const reserveSize = 16

	offReserve := headerSize
	offStruct := offReserve + reserveSize
	offStrings := offStruct + len(structure)
	total := offStrings + len(strings)

	blob := make([]byte, total)
	header := blob[:headerSize]
	binary.BigEndian.PutUint32(header[0:4], magic)
	binary.BigEndian.PutUint32(header[4:8], uint32(total))
	binary.BigEndian.PutUint32(header[8:12], uint32(offStruct))
	binary.BigEndian.PutUint32(header[12:16], uint32(offStrings))
	binary.BigEndian.PutUint32(header[16:20], uint32(offReserve))
	binary.BigEndian.PutUint32(header[20:24], treeVersion)
	binary.BigEndian.PutUint32(header[24:28], lastCompVer)
	binary.BigEndian.PutUint32(header[28:32], 0)
	binary.BigEndian.PutUint32(header[32:36], uint32(len(strings)))
	binary.BigEndian.PutUint32(header[36:40], uint32(len(structure)))

	copy(blob[offStruct:], structure)
	copy(blob[offStrings:], strings)

	return blob
}
