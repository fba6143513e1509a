//go:build !linux

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "gicprobe: requires Linux KVM")
	os.Exit(1)
}
