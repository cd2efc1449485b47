package mapforms

// Version is the release of this module, reported by the CLI.
const Version = "0.1.0"
