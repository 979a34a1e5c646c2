package nipr

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"time"

	"agentspace/models"
)

// Gateway retrieves producer licensing data from NIPR. The production
// implementation talks to the agency's NIPR gateway service; the stub keeps
// development and tests independent of it.
type Gateway interface {
	FetchLicenses(ctx context.Context, npn, lastName, ssnLast4 string) (*models.VerificationResult, error)
}

// HTTPGateway calls the NIPR gateway service.
type HTTPGateway struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (g *HTTPGateway) FetchLicenses(ctx context.Context, npn, lastName, ssnLast4 string) (*models.VerificationResult, error) {
	endpoint := fmt.Sprintf("%s/producers/%s/licenses?lastName=%s&ssnLast4=%s",
		g.BaseURL, url.PathEscape(npn), url.QueryEscape(lastName), url.QueryEscape(ssnLast4))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no producer found for NPN %s", npn)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NIPR gateway returned status %d", resp.StatusCode)
	}

	var result models.VerificationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding gateway response: %w", err)
	}
	return &result, nil
}

// StubGateway fabricates a deterministic result from the NPN, so local
// environments exercise the whole queue without network access. Lookups take
// a noticeable amount of time on purpose; the UI is built around a
// several-minute job.
type StubGateway struct {
	// Delay per simulated retrieval step; kept short in tests.
	StepDelay time.Duration
}

var stubCarriers = []string{
	"Mutual of Omaha", "Americo", "Aetna", "Gerber Life",
	"Transamerica", "American Amicable", "Royal Neighbors",
}

var stubStates = []string{"TX", "FL", "GA", "OH", "NC", "AZ"}

func (g *StubGateway) FetchLicenses(ctx context.Context, npn, lastName, ssnLast4 string) (*models.VerificationResult, error) {
	h := fnv.New32a()
	h.Write([]byte(npn))
	seed := h.Sum32()

	steps := 3 + int(seed%3)
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.StepDelay):
		}
	}

	if npn == "" || lastName == "" {
		return nil, fmt.Errorf("producer not found")
	}

	carrierCount := 2 + int(seed%4)
	carriers := make([]string, 0, carrierCount)
	for i := 0; i < carrierCount; i++ {
		carriers = append(carriers, stubCarriers[(int(seed)+i)%len(stubCarriers)])
	}

	licenseCount := 1 + int(seed%3)
	licenses := make([]models.LicenseLine, 0, licenseCount)
	for i := 0; i < licenseCount; i++ {
		licenses = append(licenses, models.LicenseLine{
			State:           stubStates[(int(seed)+i)%len(stubStates)],
			LicenseNumber:   fmt.Sprintf("%d%04d", seed%900+100, i+1),
			LineOfAuthority: "Life, Accident and Health",
			Status:          "Active",
			ExpirationDate:  time.Now().AddDate(1, 0, 0).Format("2006-01-02"),
		})
	}

	return &models.VerificationResult{
		NPN:      npn,
		Carriers: carriers,
		Licenses: licenses,
	}, nil
}
