package types

// RegistryCredentials is the decoded form of a base64 registry auth blob, as
// produced by the Docker CLI and credential helpers.
type RegistryCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is a registry token endpoint's reply to a bearer challenge.
type TokenResponse struct {
	Token string `json:"token"`
}
