package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mashiike/concierge"
)

// Function calls a function published by a Handler.
type Function struct {
	baseEndpoint *url.URL
	spec         Specification
	parameters   map[string]any
	client       *http.Client
}

var _ concierge.Function = (*Function)(nil)

type FunctionConfig struct {
	Endpoint           string
	SpecificationPath  string
	SpecificationCache *SpecificationCache
	HTTPClient         *http.Client
}

func NewFunction(ctx context.Context, cfg FunctionConfig) (*Function, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.SpecificationCache == nil {
		cfg.SpecificationCache = DefaultSpecificationCache
	}
	if cfg.SpecificationPath == "" {
		cfg.SpecificationPath = DefaultSpecificationPath
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	f := &Function{
		baseEndpoint: u,
		client:       cfg.HTTPClient,
	}
	spec, ok := cfg.SpecificationCache.Get(u.String())
	if !ok {
		spec, err = f.fetchSpecification(ctx, u.JoinPath(cfg.SpecificationPath))
		if err != nil {
			return nil, err
		}
		cfg.SpecificationCache.Set(u.String(), spec)
	}
	f.spec = spec
	if err := json.Unmarshal(spec.Parameters, &f.parameters); err != nil {
		return nil, fmt.Errorf("failed to parse parameters of `%s`: %w", spec.Name, err)
	}
	return f, nil
}

func (f *Function) fetchSpecification(ctx context.Context, endpoint *url.URL) (Specification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Specification{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Specification{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Specification{}, fmt.Errorf("failed to fetch specification: %s", resp.Status)
	}
	var spec Specification
	if err := json.NewDecoder(resp.Body).Decode(&spec); err != nil {
		return Specification{}, err
	}
	workerEndpoint, err := url.Parse(spec.WorkerEndpoint)
	if err != nil {
		return Specification{}, fmt.Errorf("failed to parse worker endpoint; %w", err)
	}
	if !workerEndpoint.IsAbs() {
		workerEndpoint = f.baseEndpoint.ResolveReference(workerEndpoint)
	}
	spec.WorkerEndpoint = workerEndpoint.String()
	return spec, nil
}

func (f *Function) Name() string {
	return f.spec.Name
}

func (f *Function) Description() string {
	return f.spec.Description
}

func (f *Function) InputSchema() map[string]any {
	return f.parameters
}

func (f *Function) Specification() Specification {
	return f.spec
}

func (f *Function) Call(ctx context.Context, args map[string]any) (any, error) {
	bs, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.spec.WorkerEndpoint, bytes.NewReader(bs))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderFunctionName, f.Name())
	if callID, ok := concierge.CallIDFromContext(ctx); ok {
		req.Header.Set(HeaderCallID, callID)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: worker responded %s", ErrRemoteFunction, resp.Status)
	}
	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// Register fetches the function published at each endpoint and adds it to
// reg.
func Register(ctx context.Context, reg *concierge.Registry, endpoints ...string) error {
	for _, endpoint := range endpoints {
		fn, err := NewFunction(ctx, FunctionConfig{Endpoint: endpoint})
		if err != nil {
			return fmt.Errorf("remote function %s: %w", endpoint, err)
		}
		if err := reg.Register(fn); err != nil {
			return err
		}
	}
	return nil
}
