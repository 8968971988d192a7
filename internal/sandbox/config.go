// Package sandbox routes tool execution (shell commands, file reads) through
// short-lived Docker containers instead of the host filesystem/process
// table. It shells out to the docker CLI rather than linking a Docker SDK,
// the same way the tools package shells out to system binaries for exec.
package sandbox

// Mode controls which agent runs get a sandbox container at all.
type Mode string

const (
	ModeOff     Mode = "off"      // never sandbox
	ModeNonMain Mode = "non-main" // sandbox everything except the default/main agent
	ModeAll     Mode = "all"      // sandbox every agent
)

// Access controls how much of the host workspace a sandbox container can see.
type Access string

const (
	AccessNone Access = "none" // no workspace mount
	AccessRO   Access = "ro"   // workspace mounted read-only
	AccessRW   Access = "rw"   // workspace mounted read-write
)

// Scope controls how containers are shared across runs.
type Scope string

const (
	ScopeSession Scope = "session" // one container per chat session
	ScopeAgent   Scope = "agent"   // one container per agent, shared across its sessions
	ScopeShared  Scope = "shared"  // one container for the whole gateway
)

// Config is the resolved sandbox configuration for one agent, after
// config.SandboxConfig.ToSandboxConfig has applied defaults.
type Config struct {
	Mode            Mode
	Image           string
	WorkspaceAccess Access
	Scope           Scope
	MemoryMB        int
	CPUs            float64
	TimeoutSec      int
	NetworkEnabled  bool
	ReadOnlyRoot    bool
	SetupCommand    string
	Env             map[string]string

	User           string
	TmpfsSizeMB    int
	MaxOutputBytes int

	IdleHours        int
	MaxAgeDays       int
	PruneIntervalMin int
}

// DefaultConfig returns the baseline sandbox configuration: disabled, and
// the settings a container would use if enabled without further overrides.
func DefaultConfig() Config {
	return Config{
		Mode:            ModeOff,
		Image:           "relaygate-sandbox:bookworm-slim",
		WorkspaceAccess: AccessRW,
		Scope:           ScopeSession,
		MemoryMB:        512,
		CPUs:            1.0,
		TimeoutSec:      300,
		NetworkEnabled:  false,
		ReadOnlyRoot:    true,
		MaxOutputBytes:  1 << 20,

		IdleHours:        24,
		MaxAgeDays:       7,
		PruneIntervalMin: 5,
	}
}
