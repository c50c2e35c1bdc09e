package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/mindline/internal/cli"
	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/internal/query"
)

// remote talks to a running mindline server, which holds the storage locks.
type remote struct {
	base   string
	client *http.Client
}

func newRemote(base string) *remote {
	return &remote{base: strings.TrimRight(base, "/"), client: &http.Client{Timeout: 20 * time.Minute}}
}

func (r *remote) do(req *http.Request, out any) error {
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (r *remote) analyze(start, end time.Time) (*analysisSummary, error) {
	body, err := json.Marshal(map[string]time.Time{"start": start, "end": end})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, r.base+"/api/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var out analysisSummary
	if err := r.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func writeRemoteAnalysis(w io.Writer, a *analysisSummary, format cli.OutputFormat) error {
	if format == cli.OutputJSON {
		return writeJSON(w, a)
	}
	return cli.WriteAnalysis(w, a.result(), "", format)
}

func (r *remote) search(w io.Writer, text string, substring bool, fuzziness int, opts models.ListOptions, format cli.OutputFormat) error {
	q := url.Values{"q": {text}, "limit": {strconv.Itoa(opts.Limit)}}
	for _, s := range opts.Sources {
		q.Add("source", string(s))
	}
	if substring {
		q.Set("mode", "substring")
	} else {
		q.Set("mode", "fulltext")
		q.Set("fuzziness", strconv.Itoa(fuzziness))
	}
	req, err := http.NewRequest(http.MethodGet, r.base+"/api/v1/search?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	if substring {
		var out struct {
			Items []models.TimelineItem `json:"items"`
		}
		if err := r.do(req, &out); err != nil {
			return err
		}
		return cli.WriteItems(w, out.Items, format)
	}
	var out struct {
		Results []query.Result `json:"results"`
	}
	if err := r.do(req, &out); err != nil {
		return err
	}
	return cli.WriteResults(w, out.Results, format)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
