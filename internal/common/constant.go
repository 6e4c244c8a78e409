package common

// AuthorizationHeaderName is the HTTP header carrying the access token on
// authenticated requests, as "Bearer <token>".
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the token type reported to clients and expected in the
// Authorization header.
const BearerScheme = "bearer"

// RequestIDHeaderName is echoed back on every response.
const RequestIDHeaderName = "X-Request-Id"
