package models

// GenerateRequest is the body accepted by the image generation endpoint.
// Image is a pointer so an explicitly empty image can be told apart from none.
type GenerateRequest struct {
	Prompt string  `json:"prompt"`
	Image  *string `json:"image,omitempty"`
	Style  string  `json:"style,omitempty"`
}

type GenerateResponse struct {
	Success bool   `json:"success"`
	Image   string `json:"image"`
}

// ImagePrompt is a validated generation request ready for the upstream model.
type ImagePrompt struct {
	Text  string
	Image []byte
}
