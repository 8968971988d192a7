package store

// PairingStore issues and checks channel-pairing codes: the short-lived
// tokens a channel plugin gives an unpaired external user to prove identity
// before the gateway will route messages from them to an agent.
type PairingStore interface {
	// RequestPairing issues a pairing code for userID on the given channel,
	// recording chatID as the origin chat and defaultKind as the session
	// kind to bind once the code is approved.
	RequestPairing(userID, channel, chatID, defaultKind string) (code string, err error)

	// IsPaired reports whether userID already has an approved pairing on
	// channel.
	IsPaired(userID, channel string) bool
}
