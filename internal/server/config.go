package server

// Config holds the HTTP-facing settings.
type Config struct {
	Port int `envconfig:"SERVER_PORT" default:"8000"`
	// UploadDir stores both uploaded presentations and rendered slides; it is
	// served read-only under the media route.
	UploadDir     string `envconfig:"UPLOAD_DIR" default:"static/uploads"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8000"`
}
