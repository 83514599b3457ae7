package models

type AuthConfig struct {
	ClerkConfig *ClerkAuthConfig `json:"clerk,omitempty" yaml:"clerk,omitempty"`
	JWTConfig   *JWTAuthConfig   `json:"jwt,omitempty" yaml:"jwt,omitempty"`
}

type ClerkAuthConfig struct {
	SecretKey     string `json:"secret_key" yaml:"secret_key"`
	WebhookSecret string `json:"webhook_secret" yaml:"webhook_secret"`
}

// JWTAuthConfig enables HS256 session tokens issued by a first-party auth service.
type JWTAuthConfig struct {
	Secret string `json:"secret" yaml:"secret"`
	Issuer string `json:"issuer,omitzero" yaml:"issuer"`
}
