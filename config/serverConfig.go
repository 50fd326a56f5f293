package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// DefaultRoot is served when no directory argument is given.
const DefaultRoot = "."

// ErrUsage is returned when the required port argument is missing.
var ErrUsage = errors.New("port argument is required")

// ServerConfig is the configuration of the static server.
// It's built once from the command-line arguments and never changes.
type ServerConfig struct {
	Port int    `validate:"min=1,max=65535"`
	Root string `validate:"required,dir"`
}

// ParseArgs builds a ServerConfig from the positional arguments
// `<port> [directory]`, program name excluded.
// The root is resolved to an absolute path.
func ParseArgs(args []string, v *validator.Validate) (*ServerConfig, error) {
	if len(args) < 1 {
		return nil, ErrUsage
	}

	port, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("parse port %q: %w", args[0], err)
	}

	root := DefaultRoot
	if len(args) > 1 {
		root = args[1]
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve directory: %w", err)
	}

	cfg := &ServerConfig{
		Port: port,
		Root: root,
	}
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	return cfg, nil
}

// Addr is the address the server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

// URL is the address printed for the developer to open in a browser.
func (c *ServerConfig) URL() string {
	return fmt.Sprintf("http://localhost:%d/", c.Port)
}
