package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

// apiClient sends requests to the Limelight API.
type apiClient struct {
	http *resty.Client
}

// newAPIClient builds an apiClient from flags or env vars.
func newAPIClient(cmd *cobra.Command) *apiClient {
	server, _ := cmd.Flags().GetString("server")
	secret, _ := cmd.Flags().GetString("scheduler-secret")
	adminKey, _ := cmd.Flags().GetString("admin-key")

	if server == "" {
		server = os.Getenv("LIMELIGHT_SERVER")
	}
	if secret == "" {
		secret = os.Getenv("LIMELIGHT_SCHEDULER_SECRET")
	}
	if adminKey == "" {
		adminKey = os.Getenv("LIMELIGHT_ADMIN_KEY")
	}
	if server == "" {
		server = defaultServer
	}

	client := resty.New().
		SetBaseURL(server).
		SetTimeout(5 * time.Minute).
		SetHeader("Content-Type", "application/json")
	if secret != "" {
		client.SetHeader("X-Scheduler-Secret", secret)
	}
	if adminKey != "" {
		client.SetHeader("X-Admin-Key", adminKey)
	}

	return &apiClient{http: client}
}

// post sends a JSON POST and decodes the response into out.
func (c *apiClient) post(path string, body interface{}, out interface{}) error {
	req := c.http.R()
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decode(resp, out)
}

// put sends a JSON PUT and decodes the response into out.
func (c *apiClient) put(path string, body interface{}, out interface{}) error {
	resp, err := c.http.R().SetBody(body).Put(path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decode(resp, out)
}

// get sends a GET and decodes the response into out.
func (c *apiClient) get(path string, params map[string]string, out interface{}) error {
	req := c.http.R()
	if params != nil {
		req.SetQueryParams(params)
	}
	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decode(resp, out)
}

func decode(resp *resty.Response, out interface{}) error {
	if resp.StatusCode() >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(resp.Body(), &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("server error %d: %s", resp.StatusCode(), errResp.Error)
		}
		return fmt.Errorf("server error %d: %s", resp.StatusCode(), resp.String())
	}
	if out != nil {
		return json.Unmarshal(resp.Body(), out)
	}
	return nil
}

// printJSON pretty-prints any API response body.
func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
