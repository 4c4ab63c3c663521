package common

// Flow names carried through the delegated-identity handshake.
const (
	FlowRegister = "register"
	FlowLogin    = "login"
)

// DefaultSessionCookieName is used when the configuration leaves it empty.
const DefaultSessionCookieName = "texbridge_sid"
