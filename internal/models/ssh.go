package models

// SSHShutdownConfig holds SSH shutdown configuration for the backup target.
type SSHShutdownConfig struct {
	Host          string `validate:"required"`
	Port          int    `validate:"min=1,max=65535"`
	Username      string `validate:"required"`
	PrivateKey    []byte // loaded from file path
	KeyPath       string `validate:"required"` // path to key file
	ShutdownDelay int    // minutes before shutdown (converted to seconds on Windows)
	OS            string `validate:"oneof=linux windows"`
}

// SSHResult holds the result of an SSH operation.
type SSHResult struct {
	CommandRun bool
	ExitStatus int // nonzero when the remote command reported a failing exit status
	Output     string
	Error      error
}
