package auth

const (
	DefaultBcryptCost        = 10
	DefaultSessionTokenBytes = 8
)
