// pkg/utils/ssh.go

package utils

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHConfig holds SSH connection configuration
type SSHConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	KeyFile  string
	Timeout  time.Duration
}

// SSHConnection represents an SSH connection to a remote host
type SSHConnection struct {
	Config *SSHConfig
	Client *ssh.Client
}

// NewSSHConnection creates a new SSH connection
func NewSSHConnection(config *SSHConfig) (*SSHConnection, error) {
	return &SSHConnection{Config: config}, nil
}

// Connect establishes the SSH connection
func (s *SSHConnection) Connect() error {
	var authMethods []ssh.AuthMethod

	if s.Config.Password != "" {
		authMethods = append(authMethods, ssh.Password(s.Config.Password))
	} else if s.Config.KeyFile != "" {
		keyAuth, err := s.getKeyAuth()
		if err != nil {
			return fmt.Errorf("failed to load SSH key from %s: %v", s.Config.KeyFile, err)
		}
		authMethods = append(authMethods, keyAuth)
	} else {
		// Fall back to the default key
		defaultKeyPath := filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		if _, err := os.Stat(defaultKeyPath); err != nil {
			return fmt.Errorf("no authentication method available - no password provided and no SSH key found")
		}
		s.Config.KeyFile = defaultKeyPath
		keyAuth, err := s.getKeyAuth()
		if err != nil {
			return fmt.Errorf("no authentication method available - please provide either SSH key or password")
		}
		authMethods = append(authMethods, keyAuth)
	}

	sshConfig := &ssh.ClientConfig{
		User:            s.Config.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         s.Config.Timeout,
		HostKeyAlgorithms: []string{
			ssh.KeyAlgoRSA,
			ssh.KeyAlgoED25519,
			ssh.KeyAlgoECDSA256,
			ssh.KeyAlgoECDSA384,
			ssh.KeyAlgoECDSA521,
		},
	}

	if s.Client != nil {
		s.Client.Close()
		s.Client = nil
	}

	address := net.JoinHostPort(s.Config.Host, s.Config.Port)

	client, err := ssh.Dial("tcp", address, sshConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", address, err)
	}

	s.Client = client
	return nil
}

// getKeyAuth returns SSH key authentication method
func (s *SSHConnection) getKeyAuth() (ssh.AuthMethod, error) {
	key, err := os.ReadFile(s.Config.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read private key: %v", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key (it may be passphrase-protected): %v", err)
	}

	return ssh.PublicKeys(signer), nil
}

// RunCommand executes a command on the remote host
func (s *SSHConnection) RunCommand(name string, args ...string) (string, error) {
	if s.Client == nil {
		if err := s.Connect(); err != nil {
			return "", fmt.Errorf("SSH client not connected and reconnection failed: %v", err)
		}
	}

	session, err := s.Client.NewSession()
	if err != nil {
		// The connection may have died; reconnect once.
		if err := s.Connect(); err != nil {
			return "", fmt.Errorf("failed to create session and reconnection failed: %v", err)
		}
		session, err = s.Client.NewSession()
		if err != nil {
			return "", fmt.Errorf("failed to create session after reconnection: %v", err)
		}
	}
	defer session.Close()

	var cmdBuilder strings.Builder
	cmdBuilder.WriteString(name)
	for _, arg := range args {
		cmdBuilder.WriteString(" ")
		if strings.Contains(arg, " ") {
			cmdBuilder.WriteString("\"")
			cmdBuilder.WriteString(arg)
			cmdBuilder.WriteString("\"")
		} else {
			cmdBuilder.WriteString(arg)
		}
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	// Some probe commands legitimately exit non-zero; their output is
	// still the answer.
	_ = session.Run(cmdBuilder.String())

	return stdoutBuf.String() + stderrBuf.String(), nil
}

// RunCommandWithTimeout executes a command with timeout
func (s *SSHConnection) RunCommandWithTimeout(name string, timeout int, args ...string) (string, error) {
	timeoutArgs := []string{fmt.Sprintf("%d", timeout), name}
	timeoutArgs = append(timeoutArgs, args...)
	return s.RunCommand("timeout", timeoutArgs...)
}

// Close closes the SSH connection
func (s *SSHConnection) Close() error {
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}
