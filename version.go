package chatflow

// Version is stamped at build time with -ldflags "-X github.com/aretw0/chatflow.Version=...".
var Version = "dev"
