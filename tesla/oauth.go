package tesla

import (
	"golang.org/x/oauth2"

	"github.com/Sara3/tesla-mcp/sessions"
)

// Region-sharded Fleet API and OAuth endpoints.
const (
	fleetBaseNA = "https://fleet-api.prd.na.vn.cloud.tesla.com"
	fleetBaseEU = "https://fleet-api.prd.eu.vn.cloud.tesla.com"
	fleetBaseCN = "https://fleet-api.prd.cn.vn.cloud.tesla.cn"

	authBaseGlobal = "https://auth.tesla.com/oauth2/v3"
	authBaseCN     = "https://auth.tesla.cn/oauth2/v3"
)

// DefaultScopes are requested from Tesla during the login sub-flow.
var DefaultScopes = []string{
	"openid",
	"offline_access",
	"vehicle_device_data",
	"vehicle_location",
	"vehicle_cmds",
	"vehicle_charging_cmds",
}

// FleetBaseURL returns the Fleet API base URL for a region ("na",
// "eu", "cn"). Unknown regions fall back to NA.
func FleetBaseURL(region string) string {
	switch region {
	case "eu":
		return fleetBaseEU
	case "cn":
		return fleetBaseCN
	default:
		return fleetBaseNA
	}
}

func authBaseURL(region string) string {
	if region == "cn" {
		return authBaseCN
	}
	return authBaseGlobal
}

// AuthTokenURL returns the Tesla OAuth token endpoint for a region.
// Used directly by the partner registration flow, which skips the
// browser sub-flow entirely.
func AuthTokenURL(region string) string {
	return authBaseURL(region) + "/token"
}

// oauthConfig builds the oauth2 configuration for a session's
// developer credentials.
func (s *Service) oauthConfig(creds *sessions.Credentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  s.authURL,
			TokenURL: s.tokenURL,
		},
		RedirectURL: s.redirectURL,
		Scopes:      DefaultScopes,
	}
}

// AuthorizationURL builds the Tesla authorize URL for the login
// sub-flow, carrying the session's CSRF state and PKCE challenge.
func (s *Service) AuthorizationURL(creds *sessions.Credentials, state, codeChallenge string) string {
	conf := s.oauthConfig(creds)
	return conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}
