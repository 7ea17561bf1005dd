package common

// AuthorizationHeaderName is the HTTP header that carries the bearer token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the signed JWT in the Authorization header.
const BearerPrefix = "Bearer "

// InternalErrorMessage is the only text a client ever sees for unexpected failures.
const InternalErrorMessage = "Internal server error"
