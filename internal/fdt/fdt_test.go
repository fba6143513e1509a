package fdt

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestBuildHeader(t *testing.T) {
	blob, err := Build(Node{Name: ""})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(blob) < headerSize {
		t.Fatalf("blob too short: %d bytes", len(blob))
	}
	if got := binary.BigEndian.Uint32(blob[0:4]); got != magic {
		t.Fatalf("magic = %#x, want %#x", got, uint32(magic))
	}
	if got := binary.BigEndian.Uint32(blob[4:8]); got != uint32(len(blob)) {
		t.Fatalf("total size = %d, want %d", got, len(blob))
	}
	if got := binary.BigEndian.Uint32(blob[20:24]); got != treeVersion {
		t.Fatalf("version = %d, want %d", got, uint32(treeVersion))
	}
}

func TestBuildEmitsPropertiesAndStrings(t *testing.T) {
	root := Node{
		Name: "",
		Properties: map[string]Property{
			"compatible":  {Strings: []string{"arm,gic-v3"}},
			"#size-cells": {U32: []uint32{2}},
		},
		Children: []Node{
			{
				Name: "intc@8000000",
				Properties: map[string]Property{
					"interrupt-controller": {Flag: true},
					"reg":                  {U64: []uint64{0x08000000, 0x10000}},
				},
			},
		},
	}

	blob, err := Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, want := range []string{"compatible", "#size-cells", "interrupt-controller", "reg"} {
		if !bytes.Contains(blob, append([]byte(want), 0)) {
			t.Fatalf("string table missing %q", want)
		}
	}
	if !bytes.Contains(blob, append([]byte("arm,gic-v3"), 0)) {
		t.Fatalf("missing compatible value")
	}
	if !bytes.Contains(blob, append([]byte("intc@8000000"), 0)) {
		t.Fatalf("missing child node name")
	}

	var reg [8]byte
	binary.BigEndian.PutUint64(reg[:], 0x08000000)
	if !bytes.Contains(blob, reg[:]) {
		t.Fatalf("missing big-endian reg value")
	}
}

func TestBuildDeterministic(t *testing.T) {
	root := Node{
		Name: "",
		Properties: map[string]Property{
			"b": {U32: []uint32{2}},
			"a": {U32: []uint32{1}},
			"c": {U32: []uint32{3}},
		},
	}

	first, err := Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for i := 0; i < 4; i++ {
		next, err := Build(root)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if !bytes.Equal(first, next) {
			t.Fatalf("Build output not deterministic")
		}
	}
}

func TestBuildRejectsInvalidProperties(t *testing.T) {
	_, err := Build(Node{
		Name:       "",
		Properties: map[string]Property{"empty": {}},
	})
	if err == nil {
		t.Fatalf("empty property accepted")
	}

	_, err = Build(Node{
		Name: "",
		Properties: map[string]Property{
			"both": {U32: []uint32{1}, U64: []uint64{2}},
		},
	})
	if err == nil {
		t.Fatalf("multi-kind property accepted")
	}
}
