package common

// PackageName identifies this service in logs and metrics.
const PackageName = "evidence-engine"

// Version is set at build time via -ldflags.
var Version = "dev"
