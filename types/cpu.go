package types

// A CPU is a Mach-O cpu type.
type CPU uint32

const (
	cpuArchMask = 0xff000000 //  mask for architecture bits
	cpuArch64   = 0x01000000 // 64 bit ABI
	cpuArch6432 = 0x02000000 // ABI for 64-bit hardware with 32-bit types; LP32
)

const (
	CPU386     CPU = 7
	CPUAmd64   CPU = CPU386 | cpuArch64
	CPUArm     CPU = 12
	CPUArm64   CPU = CPUArm | cpuArch64
	CPUArm6432     = CPUArm | cpuArch6432
	CPUPpc     CPU = 18
	CPUPpc64   CPU = CPUPpc | cpuArch64
)

var cpuStrings = []intName{
	{uint32(CPU386), "i386"},
	{uint32(CPUAmd64), "Amd64"},
	{uint32(CPUArm), "ARM"},
	{uint32(CPUArm64), "AARCH64"},
	{uint32(CPUPpc), "PowerPC"},
	{uint32(CPUPpc64), "PowerPC 64"},
}

func (i CPU) String() string   { return stringName(uint32(i), cpuStrings, false) }
func (i CPU) GoString() string { return stringName(uint32(i), cpuStrings, true) }

// Is64bit reports whether the cpu type carries the 64-bit ABI bit.
func (i CPU) Is64bit() bool { return (uint32(i) & cpuArch64) != 0 }

// PageAlign returns the default page-alignment exponent for slices of
// this cpu type inside a fat container: 2^14 (16 KiB) pages for ARM
// flavors, 2^12 (4 KiB) pages for everything else. Used when a thin
// file's synthesized descriptor needs an alignment and none is known.
func (i CPU) PageAlign() uint32 {
	switch i &^ cpuArchMask {
	case CPUArm:
		return 14
	default:
		return 12
	}
}

type CPUSubtype uint32

// X86 subtypes
const (
	CPUSubtypeX86All   CPUSubtype = 3
	CPUSubtypeX8664All CPUSubtype = 3
	CPUSubtypeX86Arch1 CPUSubtype = 4
	CPUSubtypeX86_64H  CPUSubtype = 8
)

// ARM subtypes
const (
	CPUSubtypeArmAll CPUSubtype = 0
	CPUSubtypeArmV7  CPUSubtype = 9
	CPUSubtypeArmV7S CPUSubtype = 11
	CPUSubtypeArmV7K CPUSubtype = 12
	CPUSubtypeArmV8  CPUSubtype = 13
)

// ARM64 subtypes
const (
	CPUSubtypeArm64All CPUSubtype = 0
	CPUSubtypeArm64V8  CPUSubtype = 1
	CPUSubtypeArm64E   CPUSubtype = 2
)

// Capability bits used in the definition of cpu_subtype.
const (
	CpuSubtypeFeatureMask CPUSubtype = 0xff000000                         /* mask for feature flags */
	CpuSubtypeMask                   = CPUSubtype(^CpuSubtypeFeatureMask) /* mask for cpu subtype */
	CpuSubtypeLib64                  = 0x80000000                         /* 64 bit libraries */
)

var cpuSubtypeX86Strings = []intName{
	{uint32(CPUSubtypeX8664All), "x86_64"},
	{uint32(CPUSubtypeX86Arch1), "x86 Arch1"},
	{uint32(CPUSubtypeX86_64H), "x86_64 (Haswell)"},
}

var cpuSubtypeArmStrings = []intName{
	{uint32(CPUSubtypeArmAll), "ArmAll"},
	{uint32(CPUSubtypeArmV7), "ArmV7"},
	{uint32(CPUSubtypeArmV7S), "ArmV7s"},
	{uint32(CPUSubtypeArmV7K), "ArmV7k"},
	{uint32(CPUSubtypeArmV8), "ArmV8"},
}

var cpuSubtypeArm64Strings = []intName{
	{uint32(CPUSubtypeArm64All), "ARM64"},
	{uint32(CPUSubtypeArm64V8), "ARM64v8"},
	{uint32(CPUSubtypeArm64E), "ARM64e"},
}

// String returns the subtype's name; the owning cpu type selects the
// namespace the raw value is interpreted in.
func (st CPUSubtype) String(cpu CPU) string {
	masked := uint32(st & CpuSubtypeMask)
	switch cpu {
	case CPU386, CPUAmd64:
		return stringName(masked, cpuSubtypeX86Strings, false)
	case CPUArm:
		return stringName(masked, cpuSubtypeArmStrings, false)
	case CPUArm64:
		return stringName(masked, cpuSubtypeArm64Strings, false)
	}
	return stringName(masked, nil, false)
}
