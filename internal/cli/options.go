package cli

import "time"

// StoreOptions selects and configures the local and remote stores.
type StoreOptions struct {
	// Dir holds the local store (.chatflow by default).
	Dir string
	// Local is "file" or "sqlite".
	Local string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	DynamoTable   string
	PostgresDSN   string
	RemoteTTL     time.Duration

	// MetadataOnly keeps conversations on the device and sends progress only.
	MetadataOnly bool
	// EncryptionKey is a base64 AES-256 key sealing remote snapshots.
	EncryptionKey string
	// PIIPatterns are answer keys masked before remote writes.
	PIIPatterns []string
}

// RunOptions configures an interactive session.
type RunOptions struct {
	FlowPath      string
	UserID        string
	Scenario      string
	Session       string
	SaveStrategy  string
	RemoteTimeout time.Duration
	Headless      bool
	Debug         bool
	LogLevel      string
	Store         StoreOptions
}
