// Package zoho syncs applicants into Zoho CRM as contacts.
package zoho

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	commonhttp "blockhost-portal/internal/common/http"
)

const defaultBaseURL = "https://www.zohoapis.com/crm/v3"

type CRMClient struct {
	apiKey     string
	oauthToken string
	baseURL    string
	httpClient *commonhttp.Client
}

type Contact struct {
	ID          string `json:"id,omitempty"`
	Email       string `json:"Email"`
	FirstName   string `json:"First_Name"`
	LastName    string `json:"Last_Name"`
	Source      string `json:"Lead_Source,omitempty"`
	Description string `json:"Description,omitempty"`
}

type upsertResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

func NewCRMClient(apiKey, oauthToken, baseURL string) *CRMClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &CRMClient{
		apiKey:     apiKey,
		oauthToken: oauthToken,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: commonhttp.NewClient(15 * time.Second),
	}
}

func (c *CRMClient) headers() map[string]string {
	return map[string]string{"Authorization": "Zoho-oauthtoken " + c.oauthToken}
}

// SyncContact creates the contact unless one with the same email exists.
// It returns the CRM id either way.
func (c *CRMClient) SyncContact(ctx context.Context, contact *Contact) (string, error) {
	existing, err := c.SearchContacts(ctx, contact.Email)
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		return existing[0].ID, nil
	}
	return c.CreateContact(ctx, contact)
}

func (c *CRMClient) CreateContact(ctx context.Context, contact *Contact) (string, error) {
	payload := map[string]interface{}{
		"data": []Contact{*contact},
	}

	resp, err := c.httpClient.Send(ctx, http.MethodPost, c.baseURL+"/Contacts", c.headers(), payload)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to create contact (status %d): %s", resp.StatusCode, string(resp.Body))
	}

	var createResp upsertResponse
	if err := resp.Decode(&createResp); err != nil {
		return "", err
	}
	if len(createResp.Data) == 0 {
		return "", fmt.Errorf("no data in response")
	}
	if createResp.Data[0].Status != "success" {
		return "", fmt.Errorf("contact creation failed: %s", createResp.Data[0].Message)
	}

	return createResp.Data[0].Details.ID, nil
}

// SearchContacts looks contacts up by email. Zoho answers 204 when nothing matches.
func (c *CRMClient) SearchContacts(ctx context.Context, email string) ([]Contact, error) {
	endpoint := fmt.Sprintf("%s/Contacts/search?email=%s", c.baseURL, url.QueryEscape(email))

	resp, err := c.httpClient.Send(ctx, http.MethodGet, endpoint, c.headers(), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to search contacts (status %d): %s", resp.StatusCode, string(resp.Body))
	}

	var result struct {
		Data []Contact `json:"data"`
	}
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}
	return result.Data, nil
}
