package common

// AuthorizationHeaderName carries the session token on requests to
// credential-management routes, as "Bearer <token>".
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token value in the Authorization header.
const BearerPrefix = "Bearer "

// DefaultUpstreamURL is used for credentials added without an explicit
// endpoint and for legacy records that never stored one.
const DefaultUpstreamURL = "https://integrate.api.nvidia.com/v1"

// ServerURLEnv names the environment variable the client falls back to
// when no server URL is passed explicitly.
const ServerURLEnv = "API_FARM_SERVER_URL"
