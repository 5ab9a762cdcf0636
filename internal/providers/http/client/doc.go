// Package client is the HTTP transport behind artifact downloads.
//
// Built on go-resty/resty with a go-retryablehttp round tripper:
//   - Retries with exponential backoff on connection errors, 5xx and 429
//   - A token-bucket rate limit shared by all hosts
//   - One circuit breaker per host; 4xx responses do not trip it
//   - Context-based cancellation
//
// Example Usage:
//
//	c := client.New(client.FromConfig(cfg.Fetch, logger))
//	body, err := c.Open(ctx, "https://cdn.example.com/app/app.jar")
//	if err != nil {
//		return err
//	}
//	defer body.Close()
package client
