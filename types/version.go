package types

// Version is the canonical project version.
// The CLI, the audit log schema and the completion event share this version.
const Version = "0.3.0"
