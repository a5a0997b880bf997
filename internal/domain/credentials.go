package domain

// Credentials identify the local account and the single peer it talks to.
type Credentials struct {
	Token   string `json:"-"`
	PeerID  string `json:"peerId"`
	Enabled bool   `json:"enabled"`
}

// Usable reports whether a connection attempt may be made with these credentials.
func (c Credentials) Usable() bool {
	return c.Enabled && c.Token != ""
}
