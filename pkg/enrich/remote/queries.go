package remote

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/projectdiscovery/netinventory/pkg/types"
	"github.com/tidwall/gjson"
)

var errEmptyOutput = errors.New("empty output")

type query struct {
	name    string
	command string
	parse   func(output string, findings *types.Findings) error
}

func queriesFor(p Protocol) []query {
	if p == ProtocolSSH {
		return sshQueries
	}
	return winrmQueries
}

// FormatCapacity renders a byte count for humans, e.g. 8589934592 is "8.0 GiB"
func FormatCapacity(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// FormatDisk renders free and total space of a drive
func FormatDisk(free, total uint64) string {
	return fmt.Sprintf("%s free of %s", FormatCapacity(free), FormatCapacity(total))
}

func cim(class, properties string) string {
	return fmt.Sprintf("Get-CimInstance -ClassName %s | Select-Object %s | ConvertTo-Json -Compress", class, properties)
}

var winrmQueries = []query{
	{
		name:    "cpu",
		command: cim("Win32_Processor", "Name"),
		parse: func(output string, f *types.Findings) error {
			obj, err := firstObject(output)
			if err != nil {
				return err
			}
			f.Set(types.FieldCPU, obj.Get("Name").String())
			return nil
		},
	},
	{
		name:    "system",
		command: cim("Win32_ComputerSystem", "TotalPhysicalMemory,Manufacturer,Model"),
		parse: func(output string, f *types.Findings) error {
			obj, err := firstObject(output)
			if err != nil {
				return err
			}
			if ram := obj.Get("TotalPhysicalMemory").Uint(); ram > 0 {
				f.Set(types.FieldRAM, FormatCapacity(ram))
			}
			f.Set(types.FieldManufacturer, obj.Get("Manufacturer").String())
			f.Set(types.FieldModel, obj.Get("Model").String())
			return nil
		},
	},
	{
		name:    "disk",
		command: `Get-CimInstance -ClassName Win32_LogicalDisk -Filter "DeviceID='$env:SystemDrive'" | Select-Object Size,FreeSpace | ConvertTo-Json -Compress`,
		parse: func(output string, f *types.Findings) error {
			obj, err := firstObject(output)
			if err != nil {
				return err
			}
			total := obj.Get("Size").Uint()
			if total == 0 {
				return fmt.Errorf("no size reported")
			}
			f.Set(types.FieldHDD, FormatDisk(obj.Get("FreeSpace").Uint(), total))
			return nil
		},
	},
	{
		name:    "os",
		command: cim("Win32_OperatingSystem", "Caption,Version"),
		parse: func(output string, f *types.Findings) error {
			obj, err := firstObject(output)
			if err != nil {
				return err
			}
			f.Set(types.FieldOS, obj.Get("Caption").String())
			f.Set(types.FieldOSVersion, obj.Get("Version").String())
			return nil
		},
	},
	{
		name:    "bios",
		command: cim("Win32_BIOS", "SerialNumber"),
		parse: func(output string, f *types.Findings) error {
			obj, err := firstObject(output)
			if err != nil {
				return err
			}
			f.Set(types.FieldSerialNumber, obj.Get("SerialNumber").String())
			return nil
		},
	},
}

// firstObject returns the first object of a ConvertTo-Json payload, which is
// a bare object for one instance and an array for several
func firstObject(output string) (gjson.Result, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return gjson.Result{}, errEmptyOutput
	}
	if !gjson.Valid(output) {
		return gjson.Result{}, fmt.Errorf("invalid json output")
	}
	result := gjson.Parse(output)
	if result.IsArray() {
		items := result.Array()
		if len(items) == 0 {
			return gjson.Result{}, errEmptyOutput
		}
		result = items[0]
	}
	if !result.IsObject() {
		return gjson.Result{}, fmt.Errorf("unexpected json output")
	}
	return result, nil
}

var sshQueries = []query{
	{name: "cpu", command: "cat /proc/cpuinfo", parse: parseCPUInfo},
	{name: "ram", command: "cat /proc/meminfo", parse: parseMemInfo},
	{name: "disk", command: "df -P -B1 /", parse: parseDF},
	{name: "os", command: "cat /etc/os-release", parse: parseOSRelease},
	{name: "manufacturer", command: "cat /sys/class/dmi/id/sys_vendor", parse: dmiField(types.FieldManufacturer)},
	{name: "model", command: "cat /sys/class/dmi/id/product_name", parse: dmiField(types.FieldModel)},
	{name: "serial", command: "cat /sys/class/dmi/id/product_serial", parse: dmiField(types.FieldSerialNumber)},
}

func parseCPUInfo(output string, f *types.Findings) error {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "model name", "Model", "Hardware":
			if value = strings.TrimSpace(value); value != "" {
				f.Set(types.FieldCPU, value)
				return nil
			}
		}
	}
	return fmt.Errorf("no model name in cpuinfo")
}

func parseMemInfo(output string, f *types.Findings) error {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "MemTotal:" {
			continue
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return err
		}
		f.Set(types.FieldRAM, FormatCapacity(kb*1024))
		return nil
	}
	return fmt.Errorf("no MemTotal in meminfo")
}

// parseDF reads POSIX df output in bytes
// Filesystem 1-blocks Used Available Capacity Mounted on
func parseDF(output string, f *types.Findings) error {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) < 2 {
		return errEmptyOutput
	}
	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 4 {
		return fmt.Errorf("unexpected df output")
	}
	total, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return err
	}
	free, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return err
	}
	f.Set(types.FieldHDD, FormatDisk(free, total))
	return nil
}

func parseOSRelease(output string, f *types.Findings) error {
	values := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		if unquoted, err := strconv.Unquote(value); err == nil {
			value = unquoted
		} else {
			value = strings.Trim(value, `'`)
		}
		values[key] = value
	}

	name := values["PRETTY_NAME"]
	if name == "" {
		name = values["NAME"]
	}
	if name == "" {
		return fmt.Errorf("no NAME in os-release")
	}
	f.Set(types.FieldOS, name)
	f.Set(types.FieldOSVersion, values["VERSION_ID"])
	return nil
}

func dmiField(field types.Field) func(string, *types.Findings) error {
	return func(output string, f *types.Findings) error {
		value := strings.TrimSpace(output)
		if value == "" {
			return errEmptyOutput
		}
		f.Set(field, value)
		return nil
	}
}
