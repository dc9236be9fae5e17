package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const stripeAPIBase = "https://api.stripe.com"

// stripeGet issues an authenticated GET against Stripe's REST API. There is
// no outer context here deliberately: it is only ever called from inside
// PriceCache's fetch function, which runs detached from any one request's
// deadline since its result is shared across concurrent callers.
func (c *Coordinator) stripeGet(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, stripeAPIBase+"/v1/prices/"+url.PathEscape(path), nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.StripeKey, "")
	return c.doStripe(req, out)
}

// stripePost issues an authenticated form-encoded POST against Stripe's
// REST API, the wire format Stripe's own (non-Go) SDKs use for writes.
func (c *Coordinator) stripePost(ctx context.Context, path string, form map[string]string, out any) error {
	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, stripeAPIBase+path, strings.NewReader(values.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.StripeKey, "")
	return c.doStripe(req, out)
}

func (c *Coordinator) doStripe(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("billing: stripe request failed with status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
