package constants

const (
	AppName      = "franchise_backend"
	ConfigName   = "config"
	ConfigFormat = "yaml"
	EnvPrefix    = "FRANCHISE"
)

// Default NATS subject prefix; overridable through nats.subject_prefix.
const DefaultSubjectPrefix = "franchise"

const (
	DefaultPage    = 1
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// DefaultPhoneRegion is used to parse member phone numbers written without a
// country code.
const DefaultPhoneRegion = "KR"
