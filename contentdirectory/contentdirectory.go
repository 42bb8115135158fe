// Package contentdirectory implements the ContentDirectory:1 typed service
// client: Browse/Search with sort/search-capability
// validation, DIDL-Lite result parsing, and lazy paged iteration over a
// container's full contents.
package contentdirectory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"upnpcp/gena"
	"upnpcp/httpclient"
	"upnpcp/service"
	"upnpcp/soap"
	"upnpcp/upnp"
	"upnpcp/upnperrors"
	"upnpcp/xmlutil"
)

// SortMode is the caller's ascending/descending direction for one sort
// property; the client maps it to the wire's leading "+"/"-" (spec
// §4.6.4).
type SortMode int

const (
	Ascending SortMode = iota
	Descending
)

// SortCriterion is one entry of a Browse/Search SortCriteria list.
type SortCriterion struct {
	Property string
	Mode     SortMode
}

// SearchCriterion is one "<property> contains <value>" predicate, joined
// with "and" in Search requests.
type SearchCriterion struct {
	Property string
	Contains string
}

// BrowseFlag selects Browse's directory-vs-metadata mode.
type BrowseFlag string

const (
	BrowseMetadata     BrowseFlag = "BrowseMetadata"
	BrowseDirectChildren BrowseFlag = "BrowseDirectChildren"
)

// BrowseRequest is one Browse call's parameters.
type BrowseRequest struct {
	ObjectID       string
	BrowseFlag     BrowseFlag
	Filter         string
	StartingIndex  int
	RequestedCount int
	SortCriteria   []SortCriterion
}

// SearchRequest is one Search call's parameters.
type SearchRequest struct {
	ContainerID    string
	Criteria       []SearchCriterion
	Filter         string
	StartingIndex  int
	RequestedCount int
	SortCriteria   []SortCriterion
}

// BrowseResult is the decoded result of a Browse or Search call.
type BrowseResult struct {
	Items          []upnp.Item
	NumberReturned int
	TotalMatches   int
	UpdateID       int
}

// DefaultPageSize is GetAllInContainer's default page size.
const DefaultPageSize = 32

// Client is the ContentDirectory:1 typed service client. SortCapabilities
// and SearchCapabilities are cached at bind time.
type Client struct {
	*service.Base

	sortCapabilities   []string
	searchCapabilities []string
}

// New builds an unbound ContentDirectory client.
func New(httpClient *httpclient.Client, genaManager *gena.Manager) *Client {
	return &Client{Base: service.NewBase(upnp.ContentDirectory, httpClient, genaManager)}
}

// LoadCapabilities fetches GetSortCapabilities/GetSearchCapabilities and
// caches them for validating future Browse/Search calls. Call once after
// Bind.
func (c *Client) LoadCapabilities(ctx context.Context) error {
	sortResult, err := c.Invoke(ctx, "GetSortCapabilities", nil)
	if err != nil {
		return err
	}
	sortCSV, _ := sortResult.Get("SortCaps")
	c.sortCapabilities = splitCSV(sortCSV)

	searchResult, err := c.Invoke(ctx, "GetSearchCapabilities", nil)
	if err != nil {
		return err
	}
	searchCSV, _ := searchResult.Get("SearchCaps")
	c.searchCapabilities = splitCSV(searchCSV)

	return nil
}

func splitCSV(csv string) []string {
	var out []string
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func formatSortCriteria(criteria []SortCriterion) (string, error) {
	var parts []string
	for _, c := range criteria {
		sign := "+"
		if c.Mode == Descending {
			sign = "-"
		}
		parts = append(parts, sign+c.Property)
	}
	return strings.Join(parts, ","), nil
}

// checkSortCriteria rejects any property not in the device's cached
// SortCapabilities, before any request is sent.
func (c *Client) checkSortCriteria(criteria []SortCriterion) error {
	for _, crit := range criteria {
		if !slices.Contains(c.sortCapabilities, crit.Property) {
			return &upnperrors.InvalidArgumentError{Reason: fmt.Sprintf("sort property %q not in device SortCapabilities", crit.Property)}
		}
	}
	return nil
}

// checkSearchCriteria rejects any property not in the device's cached
// SearchCapabilities.
func (c *Client) checkSearchCriteria(criteria []SearchCriterion) error {
	for _, crit := range criteria {
		if !slices.Contains(c.searchCapabilities, crit.Property) {
			return &upnperrors.InvalidArgumentError{Reason: fmt.Sprintf("search property %q not in device SearchCapabilities", crit.Property)}
		}
	}
	return nil
}

func formatSearchCriteria(criteria []SearchCriterion) string {
	var parts []string
	for _, c := range criteria {
		parts = append(parts, fmt.Sprintf("%s contains \"%s\"", c.Property, c.Contains))
	}
	return strings.Join(parts, " and ")
}

// Browse issues a Browse action and parses the DIDL-Lite result.
func (c *Client) Browse(ctx context.Context, req BrowseRequest) (*BrowseResult, error) {
	if err := c.checkSortCriteria(req.SortCriteria); err != nil {
		return nil, err
	}
	sortCriteria, _ := formatSortCriteria(req.SortCriteria)

	filter := req.Filter
	if filter == "" {
		filter = "*"
	}
	flag := req.BrowseFlag
	if flag == "" {
		flag = BrowseDirectChildren
	}

	result, err := c.Invoke(ctx, "Browse", []soap.Arg{
		{Name: "ObjectID", Value: req.ObjectID},
		{Name: "BrowseFlag", Value: string(flag)},
		{Name: "Filter", Value: filter},
		{Name: "StartingIndex", Value: strconv.Itoa(req.StartingIndex)},
		{Name: "RequestedCount", Value: strconv.Itoa(req.RequestedCount)},
		{Name: "SortCriteria", Value: sortCriteria},
	})
	if err != nil {
		return nil, err
	}
	return parseBrowseResult(result)
}

// Search issues a Search action and parses the DIDL-Lite result.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*BrowseResult, error) {
	if err := c.checkSortCriteria(req.SortCriteria); err != nil {
		return nil, err
	}
	if err := c.checkSearchCriteria(req.Criteria); err != nil {
		return nil, err
	}
	sortCriteria, _ := formatSortCriteria(req.SortCriteria)

	filter := req.Filter
	if filter == "" {
		filter = "*"
	}

	result, err := c.Invoke(ctx, "Search", []soap.Arg{
		{Name: "ContainerID", Value: req.ContainerID},
		{Name: "SearchCriteria", Value: formatSearchCriteria(req.Criteria)},
		{Name: "Filter", Value: filter},
		{Name: "StartingIndex", Value: strconv.Itoa(req.StartingIndex)},
		{Name: "RequestedCount", Value: strconv.Itoa(req.RequestedCount)},
		{Name: "SortCriteria", Value: sortCriteria},
	})
	if err != nil {
		return nil, err
	}
	return parseBrowseResult(result)
}

func parseBrowseResult(result *soap.ActionResult) (*BrowseResult, error) {
	resultXML, _ := result.Get("Result")
	numberReturned, _ := result.Get("NumberReturned")
	totalMatches, _ := result.Get("TotalMatches")
	updateID, _ := result.Get("UpdateID")

	didl, err := xmlutil.ParseDIDLLite([]byte(resultXML))
	if err != nil {
		return nil, err
	}

	items := make([]upnp.Item, 0, len(didl.Objects))
	for _, o := range didl.Objects {
		item := upnp.Item{
			ObjectID:    o.ID,
			ParentID:    o.ParentID,
			RefID:       o.RefID,
			Restricted:  o.Restricted,
			IsContainer: o.IsContainer,
			ChildCount:  o.ChildCount,
			Title:       o.Title,
			Class:       o.Class,
			AlbumArt:    o.AlbumArt,
			Meta:        o.Extra,
		}
		for _, r := range o.Resources {
			pi, _ := upnp.ParseProtocolInfo(r.ProtocolInfo)
			item.Resources = append(item.Resources, upnp.Resource{URL: r.URL, ProtocolInfo: pi})
		}
		items = append(items, item)
	}

	numberReturnedN, _ := strconv.Atoi(numberReturned)
	totalMatchesN, _ := strconv.Atoi(totalMatches)
	updateIDN, _ := strconv.Atoi(updateID)

	return &BrowseResult{
		Items:          items,
		NumberReturned: numberReturnedN,
		TotalMatches:   totalMatchesN,
		UpdateID:       updateIDN,
	}, nil
}

// GetAllInContainer returns a lazy, finite, non-restartable sequence of
// every Item in objectID, fetched via repeated Browse calls of pageSize
//. pageSize <= 0 uses DefaultPageSize. The sequence ends
// when a page returns zero items.
func (c *Client) GetAllInContainer(ctx context.Context, objectID string, pageSize int) func(yield func(upnp.Item, error) bool) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return func(yield func(upnp.Item, error) bool) {
		start := 0
		for {
			page, err := c.Browse(ctx, BrowseRequest{
				ObjectID:       objectID,
				BrowseFlag:     BrowseDirectChildren,
				StartingIndex:  start,
				RequestedCount: pageSize,
			})
			if err != nil {
				yield(upnp.Item{}, err)
				return
			}
			if page.NumberReturned == 0 {
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
			start += page.NumberReturned
		}
	}
}
