package protocols

import (
	"fmt"
	"slices"
	"sync"

	"github.com/usepat/SW-soniccontrol/internal/ir"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// versions are applied oldest first; each layer overrides the contracts of
// the versions before it.
var versions = []struct {
	version ir.Version
	layer   func(schema.DeviceType) layer
}{
	{ir.V(1, 0, 0), v1Layer},
	{ir.V(2, 0, 0), v2Layer},
}

// devices have built-in tables.
var devices = []schema.DeviceType{schema.DeviceUnknown, schema.DeviceDescale, schema.DeviceMVPWorker}

// builtinKeys lists the tables compiled into the binary. The unknown device
// only speaks enough protocol to be identified.
var builtinKeys = []schema.Key{
	{Device: schema.DeviceUnknown, Version: ir.V(1, 0, 0), Build: schema.BuildRelease},
	{Device: schema.DeviceDescale, Version: ir.V(1, 0, 0), Build: schema.BuildRelease},
	{Device: schema.DeviceDescale, Version: ir.V(1, 0, 0), Build: schema.BuildDebug},
	{Device: schema.DeviceDescale, Version: ir.V(2, 0, 0), Build: schema.BuildRelease},
	{Device: schema.DeviceDescale, Version: ir.V(2, 0, 0), Build: schema.BuildDebug},
	{Device: schema.DeviceMVPWorker, Version: ir.V(1, 0, 0), Build: schema.BuildRelease},
	{Device: schema.DeviceMVPWorker, Version: ir.V(1, 0, 0), Build: schema.BuildDebug},
	{Device: schema.DeviceMVPWorker, Version: ir.V(2, 0, 0), Build: schema.BuildRelease},
	{Device: schema.DeviceMVPWorker, Version: ir.V(2, 0, 0), Build: schema.BuildDebug},
}

// Table materializes the protocol table for key by applying every version
// layer up to and including key.Version. Debug-only commands are listed as
// unsupported in release builds.
func Table(key schema.Key) (schema.ProtocolTable, error) {
	if !slices.Contains(devices, key.Device) {
		return schema.ProtocolTable{}, fmt.Errorf("no built-in protocol for device %s", key.Device)
	}
	var merged layer
	found := false
	for _, v := range versions {
		if v.version.Compare(key.Version) > 0 {
			break
		}
		l := v.layer(key.Device)
		for _, code := range l.codes {
			merged.add(l.contracts[code])
		}
		found = found || v.version == key.Version
	}
	if !found || len(merged.codes) == 0 {
		return schema.ProtocolTable{}, fmt.Errorf("no built-in protocol for %s", key)
	}

	table := schema.ProtocolTable{
		Version: key.Version,
		Device:  key.Device,
		Build:   key.Build,
	}
	for _, code := range merged.codes {
		c := merged.contracts[code]
		if key.Build == schema.BuildRelease && !c.release {
			table.Unsupported = append(table.Unsupported, code)
			continue
		}
		table.Commands = append(table.Commands, c.command)
		table.Answers = append(table.Answers, c.answer)
	}
	table.Answers = append(table.Answers, answerOnly()...)
	return table, nil
}

var builtin = sync.OnceValue(func() []*schema.ProtocolDescriptor {
	out := make([]*schema.ProtocolDescriptor, len(builtinKeys))
	for i, key := range builtinKeys {
		table, err := Table(key)
		if err != nil {
			panic(err)
		}
		out[i] = schema.MustProtocolDescriptor(table)
	}
	return out
})

// Builtin returns the descriptors compiled into the binary. Descriptors are
// immutable and shared between callers.
func Builtin() []*schema.ProtocolDescriptor {
	return slices.Clone(builtin())
}

// Keys returns the keys of the built-in descriptors.
func Keys() []schema.Key {
	return slices.Clone(builtinKeys)
}
