package domain

import "errors"

// Error taxonomy shared by adapters and use cases. Adapters wrap these so callers can
// branch with errors.Is without knowing which adapter produced the failure.
var (
	ErrConnector      = errors.New("connector failure")
	ErrClassification = errors.New("classification service failure")
	ErrPersistence    = errors.New("persistence failure")
	ErrAuthentication = errors.New("authentication failed")
	ErrParse          = errors.New("parse failure")
)
