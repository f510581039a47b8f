package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Sara3/tesla-mcp/internal/config"
	"github.com/Sara3/tesla-mcp/tesla"
)

var registerDomain string

var registerCmd = &cobra.Command{
	Use:   "register-partner",
	Short: "Register this gateway's domain as a Tesla partner account",
	Long: `register-partner performs the one-time Fleet API onboarding step:
it obtains a partner token with the client-credentials grant and
registers the given domain against the partner_accounts endpoint.
Tesla requires the domain to serve the partner public key at
/.well-known/appspecific/com.tesla.3p.public-key.pem first.`,
	RunE: runRegisterPartner,
}

func init() {
	registerCmd.Flags().StringVar(&registerDomain, "domain", "", "domain to register (e.g. mcp.example.com)")
	_ = registerCmd.MarkFlagRequired("domain")
	rootCmd.AddCommand(registerCmd)
}

func runRegisterPartner(cmd *cobra.Command, args []string) error {
	cfg := config.New()
	clientID := cfg.GetTeslaClientID()
	clientSecret := cfg.GetTeslaClientSecret()
	if clientID == "" || clientSecret == "" {
		return errors.New("[register-partner] TESLA_CLIENT_ID and TESLA_CLIENT_SECRET must be set")
	}
	region := cfg.GetTeslaRegion()
	fleetBase := tesla.FleetBaseURL(region)

	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tesla.AuthTokenURL(region),
		Scopes:       tesla.DefaultScopes,
		EndpointParams: url.Values{
			"audience": {fleetBase},
		},
	}
	token, err := cc.Token(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "[register-partner] obtaining partner token")
	}

	body, err := json.Marshal(map[string]string{"domain": registerDomain})
	if err != nil {
		return errors.Wrap(err, "[register-partner] encoding request")
	}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, fleetBase+"/api/1/partner_accounts", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "[register-partner] building request")
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[register-partner] calling partner_accounts")
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("[register-partner] partner_accounts returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	fmt.Printf("Registered %s with the %s Fleet API\n", registerDomain, region)
	fmt.Println(strings.TrimSpace(string(respBody)))
	return nil
}
