package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"toolgate/tool"
)

// maxFetchBytes bounds how much of a response body is handed back to the
// model.
const maxFetchBytes = 64 * 1024

type FetchURLParams struct {
	URL string `json:"url" description:"Absolute http(s) URL to fetch."`
}

var FetchURL = tool.Func(
	"Fetch URL",
	"Fetches the given URL and returns the response body as text. Large bodies are truncated.",
	"fetch_url",
	func(ctx context.Context, r tool.Runner, p FetchURLParams) tool.Result {
		target, err := url.Parse(p.URL)
		if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
			return tool.Error("Fetch URL", fmt.Errorf("url must be absolute http(s), got %q", p.URL))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
		if err != nil {
			return tool.Error("Fetch URL", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return tool.Error("Fetch URL", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return tool.Error("Fetch URL", fmt.Errorf("%s returned status %d", target.Host, resp.StatusCode))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
		if err != nil {
			return tool.Error("Fetch URL", err)
		}

		text := string(body)
		truncated := false
		if len(body) > maxFetchBytes {
			text = text[:maxFetchBytes]
			truncated = true
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Fetched %s (%s)\n\n", target.String(), resp.Header.Get("Content-Type"))
		sb.WriteString(text)
		if truncated {
			sb.WriteString("\n\n(truncated)")
		}
		return tool.Success(fmt.Sprintf("Fetched %s", target.Host), sb.String())
	},
)
