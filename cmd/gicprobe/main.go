//go:build linux

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tinyrange/microvm/internal/config"
	"github.com/tinyrange/microvm/internal/debug"
	"github.com/tinyrange/microvm/internal/fdt"
	"github.com/tinyrange/microvm/internal/gic"
	"github.com/tinyrange/microvm/internal/hv/kvm"
)

func run() error {
	configPath := flag.String("config", "", "machine config file (YAML)")
	cpus := flag.Int("cpus", 0, "override vCPU count")
	gicVersion := flag.String("gic", "", "pin the GIC revision (v2 or v3)")
	trace := flag.String("trace", "", "write the trace log to this file")
	dumpFdt := flag.String("dump-fdt", "", "write the interrupt-controller FDT fragment to this file")
	flag.Parse()

	machine := config.Machine{}
	if *configPath != "" {
		var err error
		machine, err = config.Load(*configPath)
		if err != nil {
			return err
		}
	} else {
		var err error
		machine, err = config.Parse([]byte("{}"))
		if err != nil {
			return err
		}
	}
	if *cpus > 0 {
		machine.CPUs = *cpus
	}
	if *gicVersion != "" {
		machine.GIC.Version = *gicVersion
	}
	if *trace != "" {
		machine.Trace = *trace
	}

	if machine.Trace != "" {
		if err := debug.OpenFile(machine.Trace); err != nil {
			return fmt.Errorf("open trace log: %w", err)
		}
		defer debug.Close()
	}

	ver, err := machine.GIC.ResolveVersion()
	if err != nil {
		return err
	}

	hyp, err := kvm.Open()
	if err != nil {
		return err
	}
	defer hyp.Close()

	vm, err := hyp.NewVirtualMachine()
	if err != nil {
		return err
	}
	defer vm.Close()

	// vCPUs must exist before the controller can be finalized.
	if err := vm.CreateVCPUs(machine.CPUs); err != nil {
		return err
	}

	dev, err := gic.NewWithVersion(vm, uint64(machine.CPUs), ver)
	if err != nil {
		return fmt.Errorf("build interrupt controller: %w", err)
	}
	defer dev.Close()

	fmt.Printf("version:    %s\n", dev.Version())
	fmt.Printf("vcpus:      %d\n", dev.VcpuCount())
	fmt.Printf("compatible: %s\n", dev.FDTCompatibility())
	fmt.Printf("maint irq:  %d\n", dev.FDTMaintenanceIRQ())
	props := dev.DeviceProperties()
	for i := 0; i+1 < len(props); i += 2 {
		fmt.Printf("region:     %#x + %#x\n", props[i], props[i+1])
	}

	if *dumpFdt != "" {
		blob, err := fdt.Build(fdt.Node{Name: "", Children: []fdt.Node{dev.DeviceTreeNode()}})
		if err != nil {
			return fmt.Errorf("build FDT fragment: %w", err)
		}
		if err := os.WriteFile(*dumpFdt, blob, 0644); err != nil {
			return fmt.Errorf("write FDT fragment: %w", err)
		}
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gicprobe: %v\n", err)
		os.Exit(1)
	}
}
