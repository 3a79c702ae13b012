package distributor

import (
	"context"
	"net/http"
	"time"
)

// ProbeResult describes the last HTTP attempt made by Probe.
type ProbeResult struct {
	URL          string `json:"url"`
	Method       string `json:"method"`
	StatusCode   int    `json:"status_code,omitempty"`
	FallbackUsed bool   `json:"fallback_used"`
	Err          error  `json:"-"`
}

// Reachable reports whether the final attempt got a status below 400.
func (r ProbeResult) Reachable() bool {
	return r.Err == nil && r.StatusCode > 0 && r.StatusCode < http.StatusBadRequest
}

// Probe checks the public URL of slugID with a HEAD request. A transport
// error triggers one GET with the same timeout and verification. Unlike
// other HEAD statuses, which decide the result on their own, 405 and 501
// mean the server does not support HEAD and also trigger the GET; any other
// 4xx or 5xx from HEAD is final. A non-positive timeout defaults to three
// seconds.
func (d *Distributor) Probe(ctx context.Context, slugID string, timeout time.Duration, verify TLSVerify) ProbeResult {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	target := d.CreateDataURL(slugID)

	head := d.attempt(ctx, http.MethodHead, target, timeout, verify)
	if head.Err == nil && !headUnsupported(head.StatusCode) {
		return head
	}
	d.logger.Debug("falling back to GET", "url", target, "head_status", head.StatusCode, "head_error", head.Err)

	get := d.attempt(ctx, http.MethodGet, target, timeout, verify)
	get.FallbackUsed = true
	return get
}

// URLExists reports whether the public URL of slugID answers with a status
// below 400. Network failures yield false.
func (d *Distributor) URLExists(ctx context.Context, slugID string, timeout time.Duration, verify TLSVerify) bool {
	return d.Probe(ctx, slugID, timeout, verify).Reachable()
}

func (d *Distributor) attempt(ctx context.Context, method, target string, timeout time.Duration, verify TLSVerify) ProbeResult {
	res := ProbeResult{URL: target, Method: method}

	client, release, err := d.newClient(target, timeout, verify)
	if err != nil {
		res.Err = err
		return res
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		res.Err = err
		return res
	}
	resp, err := client.Do(req)
	if err != nil {
		res.Err = err
		return res
	}
	// The body of a GET is never read; only the status line matters.
	_ = resp.Body.Close()

	res.StatusCode = resp.StatusCode
	return res
}

func headUnsupported(status int) bool {
	return status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented
}
