package run

// Markers searched for in the logs a run leaves behind.
const (
	FinishedMarker  = "FT-X driver:finalize called"
	ErrorMarker     = "ERROR"
	TimeLimitMarker = "DUE TO TIME LIMIT"
)

// SimRootParameter is force-bound to the work directory of every run.
const SimRootParameter = "SIM_ROOT"

// Layout names the files a run reads and writes inside its work directory.
type Layout struct {
	ConfigFile       string `yaml:"config_file"`       // rendered simulation config
	PlatformFile     string `yaml:"platform_file"`     // rendered platform config
	CompletionLog    string `yaml:"completion_log"`    // scanned for FinishedMarker and restart markers
	WarningLog       string `yaml:"warning_log"`       // scanned for ErrorMarker
	CleanScript      string `yaml:"clean_script"`      // run before a restart is submitted
	CheckpointSource string `yaml:"checkpoint_source"` // engine checkpoint of a finished run
	CheckpointFile   string `yaml:"checkpoint_file"`   // restart checkpoint of the next run
	StateSource      string `yaml:"state_source"`      // final intermediate state of a finished run
	StateFile        string `yaml:"state_file"`        // restart state of the next run
}

// DefaultLayout returns the file layout produced by the coupled workflow.
func DefaultLayout() Layout {
	return Layout{
		ConfigFile:       "ips.ftx.config",
		PlatformFile:     "conf.ips",
		CompletionLog:    "log.ftx",
		WarningLog:       "log.warning",
		CleanScript:      "clean.sh",
		CheckpointSource: "work/workers__xolotlWorker_3/xolotlStop.h5",
		CheckpointFile:   "networkFile.h5",
		StateSource:      "work/workers__ftridynWorker_2/last_TRIDYN.dat",
		StateFile:        "last_TRIDYN.dat",
	}
}
