// Package e2e runs questions against a small documentation corpus end to end.
package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Section is one headed passage of the corpus.
type Section struct {
	File    string
	Heading string
	Body    string
}

// QACase is a question whose answer lives in exactly one section.
// AnswerContains must appear in the extractive answer.
type QACase struct {
	Question       string
	File           string
	Heading        string
	AnswerContains string
}

// Corpus holds the sections and the questions asked against them.
type Corpus struct {
	Sections []Section
	Cases    []QACase
}

var entries = []struct {
	file, heading, body, question, answer string
}{
	{"install.md", "Homebrew",
		"Run brew install ferry to get the latest release on macOS. Shell completions are installed alongside the binary.",
		"How do I install with brew on macOS?", "brew install ferry"},
	{"install.md", "Debian packages",
		"Debian and Ubuntu users can download the deb package from the releases page. Install it with dpkg and restart afterwards.",
		"Where do Debian users download the deb package?", "releases page"},
	{"install.md", "Uninstalling",
		"Remove the binary and delete the state directory under var lib to uninstall completely.",
		"How do I uninstall completely and remove the state directory?", "state directory"},
	{"config.md", "Config file location",
		"The daemon reads its settings from daemon toml at startup. A different location can be passed with a flag.",
		"Where does the daemon read its settings at startup?", "daemon toml"},
	{"config.md", "Environment overrides",
		"Every setting can be overridden by an environment variable. Nested keys are joined with double underscores.",
		"How are nested keys joined in environment variable overrides?", "double underscores"},
	{"config.md", "Reloading",
		"Sending SIGHUP makes the daemon reload the configuration without dropping open tunnels.",
		"How do I reload the configuration without dropping tunnels?", "SIGHUP"},
	{"cli.md", "Opening a tunnel",
		"Use ferry open with a local port and a remote host to start a tunnel. It stays up until the terminal closes.",
		"How do I open a tunnel to a remote host from a local port?", "ferry open"},
	{"cli.md", "Listing tunnels",
		"The list command prints every active tunnel with its uptime and transferred bytes.",
		"Which command prints active tunnels with uptime and transferred bytes?", "list command"},
	{"cli.md", "Shell completion",
		"Generate completion scripts for bash, zsh or fish with the completion subcommand.",
		"How do I generate completion scripts for zsh?", "completion subcommand"},
	{"storage.md", "Snapshot retention",
		"Snapshots are kept for fourteen days by default. Raise retention_days to keep them longer.",
		"How many days are snapshots kept by default?", "fourteen days"},
	{"storage.md", "Compression",
		"Archived logs are compressed with zstd at level three to save disk space.",
		"Which algorithm compresses archived logs to save disk space?", "zstd"},
	{"storage.md", "Metadata database",
		"Tunnel metadata lives in an embedded SQLite database that is vacuumed weekly.",
		"Where does tunnel metadata live?", "SQLite"},
	{"network.md", "Ports",
		"The control API listens on port 7400 and the metrics exporter uses port 7401.",
		"Which port does the control API listen on?", "7400"},
	{"network.md", "Proxies",
		"Outbound connections honour the HTTPS_PROXY variable when a corporate proxy is required.",
		"Does ferry honour a corporate proxy for outbound connections?", "HTTPS_PROXY"},
	{"network.md", "IPv6",
		"Dual stack support is enabled automatically when the host has a global IPv6 address.",
		"When is dual stack IPv6 support enabled?", "global IPv6 address"},
	{"security.md", "Certificates",
		"Mutual TLS certificates are rotated every thirty days by the built in certificate authority.",
		"How often are mutual TLS certificates rotated?", "thirty days"},
	{"security.md", "API tokens",
		"API tokens are hashed with argon2 before they are written to disk.",
		"How are API tokens hashed before being written to disk?", "argon2"},
	{"security.md", "Audit trail",
		"Every login attempt is appended to the audit trail together with the client address.",
		"What does the audit trail record for every login attempt?", "client address"},
}

// BuildCorpus returns the corpus with one question per section.
func BuildCorpus() *Corpus {
	c := &Corpus{}
	for _, e := range entries {
		c.Sections = append(c.Sections, Section{File: e.file, Heading: e.heading, Body: e.body})
		c.Cases = append(c.Cases, QACase{
			Question:       e.question,
			File:           e.file,
			Heading:        e.heading,
			AnswerContains: e.answer,
		})
	}
	return c
}

// Files returns the distinct file names in corpus order.
func (c *Corpus) Files() []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range c.Sections {
		if !seen[s.File] {
			seen[s.File] = true
			out = append(out, s.File)
		}
	}
	return out
}

// Markdown renders every section of file under a level-two heading.
func (c *Corpus) Markdown(file string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", strings.TrimSuffix(file, filepath.Ext(file)))
	for _, s := range c.Sections {
		if s.File == file {
			fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Heading, s.Body)
		}
	}
	return b.String()
}

// WriteMarkdown writes the corpus as markdown files under dir.
func (c *Corpus) WriteMarkdown(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, f := range c.Files() {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(c.Markdown(f)), 0644); err != nil {
			return err
		}
	}
	return nil
}
