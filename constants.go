package uvbridge

import "github.com/behrlich/uvbridge/internal/envcfg"

// Re-exported environment configuration (spec.md §6).
const (
	DefaultThreadPoolSize = 4
	MinThreadPoolSize     = 1
	MaxThreadPoolSize     = 1024
)

// ThreadPoolSize, AcceptEMFileTrick and TCPSingleAccept read the
// environment once per call; callers that need a stable value for the
// lifetime of a Context should read it at Context construction time.
func ThreadPoolSize() int       { return envcfg.ThreadPoolSize() }
func AcceptEMFileTrick() bool   { return envcfg.AcceptEMFileTrick() }
func TCPSingleAccept() bool     { return envcfg.TCPSingleAccept() }

// OpenFlag is one of the canonical fopen-style open modes accepted by the
// FS module (spec.md §6).
type OpenFlag string

const (
	OpenRead          OpenFlag = "r"
	OpenReadWrite     OpenFlag = "r+"
	OpenWriteTruncate OpenFlag = "w"
	OpenWriteRead     OpenFlag = "w+"
	OpenAppend        OpenFlag = "a"
	OpenAppendRead    OpenFlag = "a+"
)

var openFlagTable = map[OpenFlag]struct{}{
	OpenRead: {}, OpenReadWrite: {}, OpenWriteTruncate: {}, OpenWriteRead: {}, OpenAppend: {}, OpenAppendRead: {},
}

// ParseOpenFlag validates a raw open-mode string against the table in
// spec.md §6, returning an ARG-class error for anything else.
func ParseOpenFlag(raw string) (OpenFlag, error) {
	f := OpenFlag(raw)
	if _, ok := openFlagTable[f]; !ok {
		return "", NewArgError(1, "open flag", "unknown open flag "+raw)
	}
	return f, nil
}

// signalTable is the accepted-by-name signal set from spec.md §6, keyed by
// the normalized uppercase SIG-prefixed name.
var signalTable = map[string]struct{}{}

func init() {
	for _, name := range []string{
		"HUP", "INT", "QUIT", "ILL", "TRAP", "ABRT", "BUS", "FPE", "KILL",
		"USR1", "SEGV", "USR2", "PIPE", "ALRM", "TERM", "CHLD", "CONT",
		"STOP", "TSTP", "TTIN", "TTOU", "URG", "XCPU", "XFSZ", "VTALRM",
		"PROF", "WINCH", "IO", "POLL", "LOST", "PWR", "SYS", "BREAK", "STKFLT",
	} {
		signalTable["SIG"+name] = struct{}{}
	}
}

// ParseSignalName normalizes and validates a signal name against spec.md
// §6's table, returning an ARG-class error for anything unrecognized.
func ParseSignalName(raw string) (string, error) {
	name := normalizeSignalName(raw)
	if _, ok := signalTable[name]; !ok {
		return "", NewArgError(1, "signal name", "unknown signal "+raw)
	}
	return name, nil
}

func normalizeSignalName(raw string) string {
	upper := toUpper(raw)
	if len(upper) >= 3 && upper[:3] == "SIG" {
		return upper
	}
	return "SIG" + upper
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// PollEvent is one of the poll watcher's readiness flags (spec.md §4.6).
type PollEvent string

const (
	PollReadable   PollEvent = "r"
	PollWritable   PollEvent = "w"
	PollDisconnect PollEvent = "d"
	PollPriority   PollEvent = "p"
)

// SpawnOptionKey enumerates the recognized process.spawn option keys
// (spec.md §6). Unknown keys are ignored by the spawn path, not rejected.
type SpawnOptionKey string

const (
	SpawnArgs        SpawnOptionKey = "args"
	SpawnStdio       SpawnOptionKey = "stdio"
	SpawnEnv         SpawnOptionKey = "env"
	SpawnCwd         SpawnOptionKey = "cwd"
	SpawnUID         SpawnOptionKey = "uid"
	SpawnGID         SpawnOptionKey = "gid"
	SpawnVerbatim    SpawnOptionKey = "verbatim"
	SpawnDetached    SpawnOptionKey = "detached"
	SpawnHide        SpawnOptionKey = "hide"
	SpawnHideConsole SpawnOptionKey = "hide_console"
	SpawnHideGUI     SpawnOptionKey = "hide_gui"
	SpawnStackSize   SpawnOptionKey = "stack_size"
)
