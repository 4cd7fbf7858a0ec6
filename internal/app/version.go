package app

const ServiceName = "contact-service"

// Set via -ldflags during build:
//
//	go build -ldflags="-X 'contact-service/internal/app.Version=1.0.0'"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
