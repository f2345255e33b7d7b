package federation

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dtroode/journal-exchange/internal/model"
)

// Peer is a known remote instance.
type Peer struct {
	Code    string `yaml:"code"`
	BaseURL string `yaml:"base_url"`
}

type peersFile struct {
	Peers []Peer `yaml:"peers"`
}

// Registry maps instance codes to base URLs.
type Registry struct {
	peers map[string]string
}

// NewRegistry builds a Registry from a list of peers.
func NewRegistry(peers []Peer) (*Registry, error) {
	r := &Registry{peers: make(map[string]string, len(peers))}
	for _, p := range peers {
		if len(p.Code) != model.InstanceCodeLength {
			return nil, fmt.Errorf("peer %q: instance code must be %d characters", p.Code, model.InstanceCodeLength)
		}
		if _, err := endpointURL(p.BaseURL, nil); err != nil {
			return nil, fmt.Errorf("peer %q: %w", p.Code, err)
		}
		if _, dup := r.peers[p.Code]; dup {
			return nil, fmt.Errorf("peer %q listed twice", p.Code)
		}
		r.peers[p.Code] = strings.TrimRight(p.BaseURL, "/")
	}
	return r, nil
}

// LoadRegistry reads a YAML peers file. An empty path yields an empty registry.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read peers file: %w", err)
	}
	var f peersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse peers file: %w", err)
	}
	return NewRegistry(f.Peers)
}

// Lookup returns the base URL registered for an instance code.
func (r *Registry) Lookup(code string) (string, bool) {
	base, ok := r.peers[code]
	return base, ok
}

// HomeOf returns the base URL of the instance owning a federated id.
func (r *Registry) HomeOf(federatedID string) (string, bool) {
	return r.Lookup(model.InstanceCode(federatedID))
}

// Allows reports whether base may take part in imports and SSO handoffs.
// An empty registry allows any instance.
func (r *Registry) Allows(base string) bool {
	if len(r.peers) == 0 {
		return true
	}
	base = strings.TrimRight(base, "/")
	for _, known := range r.peers {
		if known == base {
			return true
		}
	}
	return false
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	return len(r.peers)
}
