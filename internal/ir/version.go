package ir

// Version is the treesync release version.
const Version = "0.1.0"
