package core

// Operation IDs of the built-in endpoints. HTTP adapters bind their
// framework-specific handlers by these names.
const (
	OpGetUser         = "getUser"
	OpRegister        = "registerAccount"
	OpLogin           = "login"
	OpLogout          = "logOut"
	OpValidateSession = "validateSession"
	OpVerifySession   = "verifySession"
)

type Endpoint struct {
	Path     string
	Method   string
	Metadata EndpointMetadata
}

type EndpointMetadata struct {
	OperationID  string
	Description  string
	RequiresAuth bool
}

// ErrorResponse represents an error response structure
type ErrorResponse struct {
	Error      string      `json:"error"`
	Violations []Violation `json:"violations,omitempty"`
}
