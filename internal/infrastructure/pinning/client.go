// Package pinning uploads minted files and metadata to the IPFS pinning
// gateway.
package pinning

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"ipmarket-server/internal/config"
	"ipmarket-server/internal/domain/market"
)

// Client implements market.Pinner against a Pinata-compatible gateway.
type Client struct {
	httpClient *resty.Client
	log        zerolog.Logger
}

var _ market.Pinner = (*Client)(nil)

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// NewClient creates the pinning client.
func NewClient(cfg *config.Config, log zerolog.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.PinningGatewayURL).
		SetAuthToken(cfg.PinningToken).
		SetHeader("User-Agent", "ipmarket-server/1.0").
		SetTimeout(60 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)

	return &Client{
		httpClient: client,
		log:        log.With().Str("component", "pinning-client").Logger(),
	}
}

// PinFile uploads one file and returns its ipfs:// URI.
func (c *Client) PinFile(ctx context.Context, name string, content io.Reader) (string, error) {
	var result pinResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFileReader("file", name, content).
		SetResult(&result).
		Post("/pinning/pinFileToIPFS")
	if err != nil {
		return "", fmt.Errorf("pin file %s: %w", name, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("pin file %s: gateway returned %s", name, resp.Status())
	}
	if result.IpfsHash == "" {
		return "", fmt.Errorf("pin file %s: gateway returned no hash", name)
	}

	c.log.Debug().Str("name", name).Str("cid", result.IpfsHash).Msg("file pinned")
	return "ipfs://" + result.IpfsHash, nil
}

// PinJSON uploads a JSON document and returns its ipfs:// URI.
func (c *Client) PinJSON(ctx context.Context, name string, payload any) (string, error) {
	var result pinResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"pinataMetadata": map[string]any{"name": name},
			"pinataContent":  payload,
		}).
		SetResult(&result).
		Post("/pinning/pinJSONToIPFS")
	if err != nil {
		return "", fmt.Errorf("pin json %s: %w", name, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("pin json %s: gateway returned %s", name, resp.Status())
	}
	if result.IpfsHash == "" {
		return "", fmt.Errorf("pin json %s: gateway returned no hash", name)
	}

	c.log.Debug().Str("name", name).Str("cid", result.IpfsHash).Msg("metadata pinned")
	return "ipfs://" + result.IpfsHash, nil
}
