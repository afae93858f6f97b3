package sshx

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// Client runs commands on the remediation target over SSH. The connection
// is established lazily on first use and reused for subsequent commands.
type Client struct {
	Host     string
	Port     int
	User     string
	Password string

	client *ssh.Client
}

func NewClient(host string, port int, user, password string) *Client {
	if port == 0 {
		port = 22
	}
	return &Client{Host: host, Port: port, User: user, Password: password}
}

func (c *Client) connect() error {
	if c.client != nil {
		return nil
	}
	cfg := &ssh.ClientConfig{
		User: c.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(c.Password),
		},
		// Patch targets are provisioned hosts; key pinning is handled
		// out of band.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         15 * time.Second,
	}
	client, err := ssh.Dial("tcp", fmt.Sprintf("%s:%d", c.Host, c.Port), cfg)
	if err != nil {
		return fmt.Errorf("ssh dial %s: %w", c.Host, err)
	}
	c.client = client
	return nil
}

// Run executes a command in a fresh session. On success it returns stdout
// when non-empty, otherwise stderr, otherwise a fixed sentinel. A non-zero
// exit status is an error carrying the captured stderr.
func (c *Client) Run(command string) (string, error) {
	if err := c.connect(); err != nil {
		return "", err
	}

	session, err := c.client.NewSession()
	if err != nil {
		// Connection may have gone stale; drop it so the next call
		// re-dials.
		c.client.Close()
		c.client = nil
		return "", fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Run(command); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" {
			return "", fmt.Errorf("command failed: %w", err)
		}
		return "", fmt.Errorf("command failed: %w: %s", err, msg)
	}

	out := strings.TrimSpace(stdout.String())
	if out != "" {
		return out, nil
	}
	if errOut := strings.TrimSpace(stderr.String()); errOut != "" {
		return errOut, nil
	}
	return "Command executed successfully.", nil
}

// Close tears down the connection if one was established.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
