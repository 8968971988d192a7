package store

// Stores is the top-level container for storage backends handed to the
// gateway at startup. The gateway is single-tenant: one process, one set
// of agents defined in config.json, one session store. Cron and pairing
// keep their own file-backed persistence (internal/cron, internal/pairing)
// rather than living here, since neither needs the session store's
// compaction/summarization machinery.
type Stores struct {
	Sessions SessionStore
}
