package emulator

// Emulator describes one child of a MultiLewisLauncher.
type Emulator struct {
	LauncherAddress int
	Device          string
	VarDir          string
	Port            int
	Options         Options
}

// TestEmulatorData is what a multi-device test declares per emulator.
type TestEmulatorData struct {
	EmulatorName    string
	Port            int
	LauncherAddress int
}

func (d TestEmulatorData) Emulator(varDir string, options Options) Emulator {
	return Emulator{
		LauncherAddress: d.LauncherAddress,
		Device:          d.EmulatorName,
		VarDir:          varDir,
		Port:            d.Port,
		Options:         options,
	}
}
