package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const DefaultWikipediaURL = "https://en.wikipedia.org/w/api.php"

type WikipediaResponse struct {
	Status  string `json:"status"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

// Wikipedia looks up the best-matching article and returns its intro as plain
// text, via the MediaWiki action API.
type Wikipedia struct {
	api apiClient
}

func NewWikipedia(apiURL string, client *http.Client) *Wikipedia {
	if apiURL == "" {
		apiURL = DefaultWikipediaURL
	}
	return &Wikipedia{
		api: newAPIClient("Wikipedia", apiURL, client, map[string]string{
			"User-Agent": "toolchat/1.0",
		}),
	}
}

func (w *Wikipedia) Search(ctx context.Context, query string) WikipediaResponse {
	notFound := WikipediaResponse{Status: "error", Message: fmt.Sprintf("No Wikipedia article found for '%s'", query)}

	search := url.Values{}
	search.Set("action", "query")
	search.Set("format", "json")
	search.Set("list", "search")
	search.Set("srsearch", query)
	search.Set("srlimit", "1")

	var hits struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := w.api.do(ctx, http.MethodGet, "?"+search.Encode(), nil, &hits); err != nil {
		return WikipediaResponse{Status: "error", Message: err.Error()}
	}
	if len(hits.Query.Search) == 0 {
		return notFound
	}

	extract := url.Values{}
	extract.Set("action", "query")
	extract.Set("format", "json")
	extract.Set("titles", hits.Query.Search[0].Title)
	extract.Set("prop", "extracts")
	extract.Set("exintro", "true")
	extract.Set("explaintext", "true")
	extract.Set("redirects", "1")

	var pages struct {
		Query struct {
			Pages map[string]struct {
				Title   string `json:"title"`
				Extract string `json:"extract"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := w.api.do(ctx, http.MethodGet, "?"+extract.Encode(), nil, &pages); err != nil {
		return WikipediaResponse{Status: "error", Message: err.Error()}
	}

	for id, page := range pages.Query.Pages {
		if id == "-1" {
			continue
		}
		return WikipediaResponse{Status: "success", Title: page.Title, Content: strings.TrimSpace(page.Extract)}
	}
	return notFound
}

func registerWikipedia(reg *Registry, w *Wikipedia) error {
	return reg.Register(Tool{
		Name:        "wikipedia.search",
		Description: "Look up a topic on Wikipedia and return the article introduction",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Topic to look up"},
			},
			"required": []any{"query"},
		},
		Func: func(ctx context.Context, args map[string]any) (any, error) {
			return w.Search(ctx, argString(args, "query")), nil
		},
	})
}
