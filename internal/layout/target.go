package layout

// Target describes the ABI target triple and its pointer properties.
type Target struct {
	Triple   string // e.g. "x86_64-linux-gnu"
	PtrBytes int    // pointer width in bytes (4 or 8)
}

func X86_64LinuxGNU() Target {
	return Target{
		Triple:   "x86_64-linux-gnu",
		PtrBytes: 8,
	}
}

func Wasm32() Target {
	return Target{
		Triple:   "wasm32-unknown-unknown",
		PtrBytes: 4,
	}
}

// SmallStrBytes is the inline capacity of a string value: two machine words.
// Strings strictly shorter than this are stored without a heap buffer.
func (t Target) SmallStrBytes() int {
	return 2 * t.PtrBytes
}

// RefcountHeaderBytes is the number of bytes reserved in front of a heap
// block whose data requires the given alignment.
func (t Target) RefcountHeaderBytes(align int) int {
	return max(align, t.PtrBytes)
}

// TargetByName resolves a short target name used in configuration files.
func TargetByName(name string) (Target, bool) {
	switch name {
	case "", "x86_64", "x86_64-linux-gnu":
		return X86_64LinuxGNU(), true
	case "wasm32", "wasm32-unknown-unknown":
		return Wasm32(), true
	default:
		return Target{}, false
	}
}
