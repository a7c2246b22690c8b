package core

// Environment is the deployment environment of the copilot service. It
// selects the log format in pkg/logger and gin's release mode in the HTTP
// server.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether the environment corresponds to production.
func (e Environment) IsProduction() bool {
	return e == Production
}

// ParseEnvironment normalises the APP_ENV value into one of the known
// environments. Unknown values fall back to Development so a typo in the
// deployment config degrades to verbose logging instead of a crash.
func ParseEnvironment(v string) Environment {
	switch Environment(v) {
	case Production:
		return Production
	case Staging:
		return Staging
	case Testing:
		return Testing
	default:
		return Development
	}
}
