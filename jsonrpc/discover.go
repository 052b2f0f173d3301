package jsonrpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/invopop/jsonschema"
	"golang.org/x/crypto/blake2b"
)

// DiscoverMethod is answered by the dispatcher's discovery Provider instead of
// a registered handler.
const DiscoverMethod = "rpc.discover"

// OpenRPCVersion is the OpenRPC document version produced by RegistryProvider.
const OpenRPCVersion = "1.2.6"

// Provider supplies the discovery document returned by rpc.discover.
type Provider interface {
	Document(ctx context.Context) (interface{}, error)
}

// ProviderFunc adapts a function to a Provider.
type ProviderFunc func(ctx context.Context) (interface{}, error)

func (f ProviderFunc) Document(ctx context.Context) (interface{}, error) {
	return f(ctx)
}

// Info is the info object of an OpenRPC document.
type Info struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// OpenRPCDocument is the discovery document derived from a Registry.
type OpenRPCDocument struct {
	OpenRPC string          `json:"openrpc"`
	Info    Info            `json:"info"`
	Methods []OpenRPCMethod `json:"methods"`
}

type OpenRPCMethod struct {
	Name           string              `json:"name"`
	Summary        string              `json:"summary,omitempty"`
	Description    string              `json:"description,omitempty"`
	ParamStructure string              `json:"paramStructure"`
	Params         []ContentDescriptor `json:"params"`
	Result         *ContentDescriptor  `json:"result,omitempty"`
	Errors         []ErrorSpec         `json:"errors,omitempty"`
}

type ContentDescriptor struct {
	Name     string             `json:"name"`
	Summary  string             `json:"summary,omitempty"`
	Required bool               `json:"required,omitempty"`
	Schema   *jsonschema.Schema `json:"schema"`
}

// RegistryProvider describes every method in reg. The document is built on
// first use, after the registry has been frozen, and reused afterwards.
func RegistryProvider(reg *Registry, info Info) Provider {
	var (
		once sync.Once
		doc  *OpenRPCDocument
	)
	return ProviderFunc(func(context.Context) (interface{}, error) {
		once.Do(func() {
			doc = BuildDocument(reg, info)
		})
		return doc, nil
	})
}

// BuildDocument derives an OpenRPC document from the methods in reg.
func BuildDocument(reg *Registry, info Info) *OpenRPCDocument {
	descs := reg.Methods()
	doc := &OpenRPCDocument{
		OpenRPC: OpenRPCVersion,
		Info:    info,
		Methods: make([]OpenRPCMethod, 0, len(descs)),
	}
	for _, d := range descs {
		m := OpenRPCMethod{
			Name:           d.Name,
			Summary:        d.Summary,
			Description:    d.Description,
			ParamStructure: "either",
			Params:         make([]ContentDescriptor, 0, len(d.Params)),
			Errors:         d.Errors,
		}
		for _, p := range d.Params {
			m.Params = append(m.Params, ContentDescriptor{
				Name:     p.Name,
				Summary:  p.Summary,
				Required: p.Required,
				Schema:   schemaOrAny(p.Schema),
			})
		}
		if d.Result != nil {
			m.Result = &ContentDescriptor{
				Name:    d.Result.Name,
				Summary: d.Result.Summary,
				Schema:  schemaOrAny(d.Result.Schema),
			}
		}
		doc.Methods = append(doc.Methods, m)
	}
	return doc
}

func schemaOrAny(s *jsonschema.Schema) *jsonschema.Schema {
	if s == nil {
		return &jsonschema.Schema{}
	}
	return s
}

// StaticProvider serves a fixed, pre-encoded document.
func StaticProvider(doc json.RawMessage) (Provider, error) {
	if !json.Valid(doc) {
		return nil, errors.New("jsonrpc: discovery document is not valid JSON")
	}
	doc = append(json.RawMessage(nil), doc...)
	return ProviderFunc(func(context.Context) (interface{}, error) {
		return doc, nil
	}), nil
}

// LoadStaticProvider reads a discovery document from a file once, at startup.
func LoadStaticProvider(path string) (Provider, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: read discovery document: %w", err)
	}
	p, err := StaticProvider(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, path)
	}
	return p, nil
}

// DocumentETag returns a strong entity tag for an encoded document.
func DocumentETag(encoded []byte) string {
	sum := blake2b.Sum256(encoded)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}
