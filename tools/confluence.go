package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type ConfluenceSpace struct {
	ID    int64           `json:"id"`
	Key   string          `json:"key"`
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Links ConfluenceLinks `json:"_links"`
}

type ConfluenceStorage struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

type ConfluenceVersion struct {
	Number int    `json:"number"`
	When   string `json:"when,omitempty"`
}

type ConfluenceLinks struct {
	WebUI string `json:"webui"`
}

type ConfluencePage struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Status  string             `json:"status"`
	Title   string             `json:"title"`
	Body    *pageBody          `json:"body,omitempty"`
	Version *ConfluenceVersion `json:"version,omitempty"`
	Links   ConfluenceLinks    `json:"_links"`
}

type confluenceList[T any] struct {
	Results []T `json:"results"`
	Start   int `json:"start"`
	Limit   int `json:"limit"`
	Size    int `json:"size"`
}

// Confluence talks to the Confluence Cloud REST API with basic auth.
type Confluence struct {
	api apiClient
}

// NewConfluence takes the site URL (https://example.atlassian.net); the REST
// prefix is appended here.
func NewConfluence(siteURL, email, apiToken string, client *http.Client) *Confluence {
	token := base64.StdEncoding.EncodeToString([]byte(email + ":" + apiToken))
	base := strings.TrimRight(siteURL, "/")
	if !strings.HasSuffix(base, "/wiki/rest/api") {
		base += "/wiki/rest/api"
	}
	return &Confluence{
		api: newAPIClient("Confluence", base, client, map[string]string{
			"Authorization": "Basic " + token,
		}),
	}
}

// GetSpaces lists spaces as chat-ready text. Failures are reported in the text.
func (c *Confluence) GetSpaces(ctx context.Context, limit, start int) string {
	var body struct {
		Results *[]ConfluenceSpace `json:"results"`
	}
	path := fmt.Sprintf("/space?limit=%d&start=%d", limit, start)
	if err := c.api.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return "Error fetching Confluence spaces: " + err.Error()
	}
	if body.Results == nil {
		return "Error: Unexpected response format from Confluence API"
	}

	spaces := *body.Results
	if len(spaces) == 0 {
		return "No Confluence spaces found"
	}

	entries := make([]string, 0, len(spaces))
	for _, s := range spaces {
		entries = append(entries, fmt.Sprintf("• %s\n  Key: %s\n  Type: %s\n  URL: %s",
			s.Name, s.Key, s.Type, s.Links.WebUI))
	}
	return fmt.Sprintf("Found %d Confluence space(s):\n\n%s", len(spaces), strings.Join(entries, "\n\n"))
}

func (c *Confluence) GetPages(ctx context.Context, spaceKey string, limit int) ([]ConfluencePage, error) {
	params := url.Values{}
	params.Set("spaceKey", spaceKey)
	params.Set("expand", "body.storage,version")
	params.Set("limit", strconv.Itoa(limit))

	var body confluenceList[ConfluencePage]
	if err := c.api.do(ctx, http.MethodGet, "/content?"+params.Encode(), nil, &body); err != nil {
		return nil, err
	}
	return body.Results, nil
}

func (c *Confluence) GetPage(ctx context.Context, pageID string) (*ConfluencePage, error) {
	var page ConfluencePage
	if err := c.api.do(ctx, http.MethodGet, "/content/"+url.PathEscape(pageID)+"?expand=body.storage,version", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Search runs a CQL query.
func (c *Confluence) Search(ctx context.Context, cql string, limit int) ([]ConfluencePage, error) {
	params := url.Values{}
	params.Set("cql", cql)
	params.Set("limit", strconv.Itoa(limit))

	var body confluenceList[ConfluencePage]
	if err := c.api.do(ctx, http.MethodGet, "/content/search?"+params.Encode(), nil, &body); err != nil {
		return nil, err
	}
	return body.Results, nil
}

type pageWrite struct {
	ID        string             `json:"id,omitempty"`
	Type      string             `json:"type"`
	Title     string             `json:"title"`
	Space     *spaceRef          `json:"space,omitempty"`
	Ancestors []pageRef          `json:"ancestors,omitempty"`
	Body      pageBody           `json:"body"`
	Version   *ConfluenceVersion `json:"version,omitempty"`
}

type spaceRef struct {
	Key string `json:"key"`
}

type pageRef struct {
	ID string `json:"id"`
}

type pageBody struct {
	Storage ConfluenceStorage `json:"storage"`
}

func storageBody(content string) pageBody {
	return pageBody{Storage: ConfluenceStorage{Value: content, Representation: "storage"}}
}

// CreatePage creates a page in spaceKey, under parentID when given.
func (c *Confluence) CreatePage(ctx context.Context, spaceKey, title, content, parentID string) (*ConfluencePage, error) {
	req := pageWrite{
		Type:  "page",
		Title: title,
		Space: &spaceRef{Key: spaceKey},
		Body:  storageBody(content),
	}
	if parentID != "" {
		req.Ancestors = []pageRef{{ID: parentID}}
	}

	var page ConfluencePage
	if err := c.api.do(ctx, http.MethodPost, "/content", req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UpdatePage replaces a page's title and body. The current version is fetched
// first since Confluence requires the next version number on every update.
func (c *Confluence) UpdatePage(ctx context.Context, pageID, title, content string) (*ConfluencePage, error) {
	current, err := c.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	version := 0
	if current.Version != nil {
		version = current.Version.Number
	}
	if title == "" {
		title = current.Title
	}

	req := pageWrite{
		ID:      pageID,
		Type:    "page",
		Title:   title,
		Body:    storageBody(content),
		Version: &ConfluenceVersion{Number: version + 1},
	}

	var page ConfluencePage
	if err := c.api.do(ctx, http.MethodPut, "/content/"+url.PathEscape(pageID), req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func pageList(heading string, pages []ConfluencePage) string {
	if len(pages) == 0 {
		return "No Confluence pages found"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d):\n", heading, len(pages))
	for _, p := range pages {
		fmt.Fprintf(&b, "\n• %s\n  ID: %s", p.Title, p.ID)
		if p.Version != nil {
			fmt.Fprintf(&b, "\n  Version: %d", p.Version.Number)
		}
		if p.Links.WebUI != "" {
			fmt.Fprintf(&b, "\n  URL: %s", p.Links.WebUI)
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func registerConfluence(reg *Registry, c *Confluence) error {
	defs := []Tool{
		{
			Name:        "confluence.getSpaces",
			Description: "List Confluence spaces",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit": map[string]any{"type": "number", "minimum": 1, "maximum": 100, "description": "Maximum number of spaces (default: 25)"},
					"start": map[string]any{"type": "number", "minimum": 0, "description": "Offset for paging (default: 0)"},
				},
			},
			Func: func(ctx context.Context, args map[string]any) (any, error) {
				return c.GetSpaces(ctx, argInt(args, "limit", 25), argInt(args, "start", 0)), nil
			},
		},
		{
			Name:        "confluence.getPages",
			Description: "List pages in a Confluence space",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"spaceKey": map[string]any{"type": "string", "description": "Space key"},
					"limit":    map[string]any{"type": "number", "minimum": 1, "maximum": 100, "description": "Maximum number of pages (default: 25)"},
				},
				"required": []any{"spaceKey"},
			},
			Func: func(ctx context.Context, args map[string]any) (any, error) {
				key := argString(args, "spaceKey")
				pages, err := c.GetPages(ctx, key, argInt(args, "limit", 25))
				if err != nil {
					return nil, err
				}
				return pageList("Pages in space "+key, pages), nil
			},
		},
		{
			Name:        "confluence.search",
			Description: "Search Confluence content with a CQL query, e.g. text ~ \"runbook\"",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"cql":   map[string]any{"type": "string", "description": "CQL query"},
					"limit": map[string]any{"type": "number", "minimum": 1, "maximum": 100, "description": "Maximum number of results (default: 25)"},
				},
				"required": []any{"cql"},
			},
			Func: func(ctx context.Context, args map[string]any) (any, error) {
				pages, err := c.Search(ctx, argString(args, "cql"), argInt(args, "limit", 25))
				if err != nil {
					return nil, err
				}
				return pageList("Search results", pages), nil
			},
		},
		{
			Name:        "confluence.createPage",
			Description: "Create a Confluence page",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"spaceKey": map[string]any{"type": "string", "description": "Space key"},
					"title":    map[string]any{"type": "string", "description": "Page title"},
					"content":  map[string]any{"type": "string", "description": "Page body in storage format (XHTML)"},
					"parentId": map[string]any{"type": "string", "description": "Parent page ID (optional)"},
				},
				"required": []any{"spaceKey", "title", "content"},
			},
			Func: func(ctx context.Context, args map[string]any) (any, error) {
				page, err := c.CreatePage(ctx, argString(args, "spaceKey"), argString(args, "title"),
					argString(args, "content"), argString(args, "parentId"))
				if err != nil {
					return nil, err
				}
				return fmt.Sprintf("Created page %q (ID: %s)", page.Title, page.ID), nil
			},
		},
		{
			Name:        "confluence.updatePage",
			Description: "Replace the content of an existing Confluence page",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pageId":  map[string]any{"type": "string", "description": "Page ID"},
					"title":   map[string]any{"type": "string", "description": "New title (optional, keeps the current one)"},
					"content": map[string]any{"type": "string", "description": "New body in storage format (XHTML)"},
				},
				"required": []any{"pageId", "content"},
			},
			Func: func(ctx context.Context, args map[string]any) (any, error) {
				page, err := c.UpdatePage(ctx, argString(args, "pageId"), argString(args, "title"), argString(args, "content"))
				if err != nil {
					return nil, err
				}
				version := 0
				if page.Version != nil {
					version = page.Version.Number
				}
				return fmt.Sprintf("Updated page %q (ID: %s) to version %d", page.Title, page.ID, version), nil
			},
		},
	}

	for _, t := range defs {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
