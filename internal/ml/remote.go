package ml

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loan-predictor/internal/schema"

	"github.com/go-resty/resty/v2"
)

// RemoteClassifier asks an external model server for the label.
type RemoteClassifier struct {
	base string
	rest *resty.Client
}

type classifyReq struct {
	Columns []string  `json:"columns"`
	Row     []float64 `json:"row"`
}

type classifyResp struct {
	Label string `json:"label"`
	Error string `json:"error,omitempty"`
}

func NewRemoteClassifier(base string, timeout time.Duration) *RemoteClassifier {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	return &RemoteClassifier{base: strings.TrimRight(base, "/"), rest: r}
}

func (c *RemoteClassifier) Classify(ctx context.Context, row []float64) (string, error) {
	resp := &classifyResp{}
	res, err := c.rest.R().
		SetContext(ctx).
		SetBody(classifyReq{Columns: schema.Names(), Row: row}).
		SetResult(resp).
		SetError(resp).
		Post(c.base + "/classify")
	if err != nil {
		return "", err
	}
	if res.IsError() {
		if resp.Error != "" {
			return "", fmt.Errorf("model server: %d %s", res.StatusCode(), resp.Error)
		}
		return "", fmt.Errorf("model server: %d", res.StatusCode())
	}
	if resp.Label == "" {
		return "", fmt.Errorf("model server returned an empty label")
	}
	return resp.Label, nil
}
