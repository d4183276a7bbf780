package core

// Environment is the deployment environment the backend runs in. It drives
// logger setup: production logs structured JSON, everything else gets the
// console writer.
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

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool {
	return e == Production
}

// ParseEnvironment maps the raw ENVIRONMENT variable onto a known
// environment. Anything unrecognised counts as development, so a typo in
// deployment config degrades to verbose logging rather than a dead process.
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
