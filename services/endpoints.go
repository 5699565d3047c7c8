package services

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/lborres/warden/core"
)

// BaseEndpoints returns the framework-agnostic route table of the account
// subsystem, relative to the adapter's base path. Adapters bind handlers by
// Metadata.OperationID and run the authentication gate first when
// Metadata.RequiresAuth is set.
func BaseEndpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:   "/user",
			Method: http.MethodGet,
			Metadata: core.EndpointMetadata{
				OperationID:  core.OpGetUser,
				Description:  "Get the profile of the logged-in account",
				RequiresAuth: true,
			},
		},
		{
			Path:   "/register",
			Method: http.MethodPost,
			Metadata: core.EndpointMetadata{
				OperationID: core.OpRegister,
				Description: "Register an account with email, password and display name",
			},
		},
		{
			Path:   "/login",
			Method: http.MethodPost,
			Metadata: core.EndpointMetadata{
				OperationID: core.OpLogin,
				Description: "Log in with email and password and bind the session",
			},
		},
		{
			Path:   "/log-out",
			Method: http.MethodDelete,
			Metadata: core.EndpointMetadata{
				OperationID:  core.OpLogout,
				Description:  "Destroy the current session",
				RequiresAuth: true,
			},
		},
		{
			Path:   "/validate-session",
			Method: http.MethodGet,
			Metadata: core.EndpointMetadata{
				OperationID:  core.OpValidateSession,
				Description:  "Succeed only when the current session is live",
				RequiresAuth: true,
			},
		},
		{
			Path:   "/verify-session",
			Method: http.MethodGet,
			Metadata: core.EndpointMetadata{
				OperationID: core.OpVerifySession,
				Description: "Report whether the current session is live",
			},
		},
	}
}

// EndpointRegistry holds endpoints keyed by "METHOD:PATH" and rejects
// duplicates.
type EndpointRegistry struct {
	endpoints map[string]core.Endpoint
}

// NewEndpointRegistry creates a registry with BaseEndpoints registered.
func NewEndpointRegistry() *EndpointRegistry {
	reg := &EndpointRegistry{endpoints: make(map[string]core.Endpoint)}
	for _, ep := range BaseEndpoints() {
		reg.endpoints[endpointKey(ep)] = ep
	}
	return reg
}

func endpointKey(ep core.Endpoint) string {
	return ep.Method + ":" + ep.Path
}

// Register adds endpoints as one batch. If any endpoint conflicts with a
// registered one or with another in the batch, nothing is added.
func (r *EndpointRegistry) Register(endpoints []core.Endpoint) error {
	seen := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		key := endpointKey(ep)
		if _, exists := r.endpoints[key]; exists {
			return fmt.Errorf("endpoint conflict: %s %s already registered", ep.Method, ep.Path)
		}
		if seen[key] {
			return fmt.Errorf("duplicate endpoint in batch: %s %s", ep.Method, ep.Path)
		}
		seen[key] = true
	}

	for _, ep := range endpoints {
		r.endpoints[endpointKey(ep)] = ep
	}
	return nil
}

// Endpoints returns all registered endpoints ordered by path, then method.
func (r *EndpointRegistry) Endpoints() []core.Endpoint {
	result := make([]core.Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		result = append(result, ep)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Path != result[j].Path {
			return result[i].Path < result[j].Path
		}
		return result[i].Method < result[j].Method
	})
	return result
}
