package oidcserver

import "encoding/json"

// ProviderMetadata is the discovery document published at the configuration
// endpoint, https://openid.net/specs/openid-connect-discovery-1_0.html.
// Extra fields added by the provider are merged in at marshal time.
type ProviderMetadata struct {
	Issuer string `json:"issuer"`

	AuthorizationEndpoint string `json:"authorization_endpoint,omitempty"`
	TokenEndpoint         string `json:"token_endpoint,omitempty"`
	UserinfoEndpoint      string `json:"userinfo_endpoint,omitempty"`
	JWKSURI               string `json:"jwks_uri,omitempty"`
	IntrospectionEndpoint string `json:"introspection_endpoint,omitempty"`
	RevocationEndpoint    string `json:"revocation_endpoint,omitempty"`
	EndSessionEndpoint    string `json:"end_session_endpoint,omitempty"`

	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported,omitempty"`
	ResponseModesSupported            []string `json:"response_modes_supported,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	SubjectTypesSupported             []string `json:"subject_types_supported,omitempty"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	ClaimsSupported                   []string `json:"claims_supported,omitempty"`

	Extra map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the document. Extra entries win over the
// typed fields so the provider can rewrite anything.
func (m *ProviderMetadata) MarshalJSON() ([]byte, error) {
	type alias ProviderMetadata

	data, err := json.Marshal((*alias)(m))
	if err != nil {
		return nil, err
	}

	if len(m.Extra) == 0 {
		return data, nil
	}

	doc := map[string]any{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	for k, v := range m.Extra {
		doc[k] = v
	}

	return json.Marshal(doc)
}

// SetExtra records a provider-supplied metadata field.
func (m *ProviderMetadata) SetExtra(key string, value any) {
	if m.Extra == nil {
		m.Extra = map[string]any{}
	}
	m.Extra[key] = value
}
