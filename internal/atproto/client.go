package atproto

import (
	"context"
	"fmt"

	atclient "github.com/bluesky-social/indigo/atproto/client"
	"github.com/bluesky-social/indigo/atproto/syntax"
)

// listPageSize is the largest page listRecords accepts.
const listPageSize = 100

// PutRecordInput creates or replaces the record at Collection/RKey.
type PutRecordInput struct {
	Collection string
	RKey       string
	Record     map[string]interface{}
}

// DeleteRecordInput removes the record at Collection/RKey.
type DeleteRecordInput struct {
	Collection string
	RKey       string
}

// Record is one listed record.
type Record struct {
	URI   string                 `json:"uri"`
	CID   string                 `json:"cid"`
	Value map[string]interface{} `json:"value"`
}

// RecordClient is the subset of repo operations sync needs.
type RecordClient interface {
	DID() syntax.DID
	PutRecord(ctx context.Context, input *PutRecordInput) error
	DeleteRecord(ctx context.Context, input *DeleteRecordInput) error
	ListAllRecords(ctx context.Context, collection string) ([]Record, error)
}

// Client performs repo operations for one authenticated account.
type Client struct {
	api *atclient.APIClient
	did syntax.DID
}

var _ RecordClient = (*Client)(nil)

// NewClient wraps an authenticated API client.
func NewClient(api *atclient.APIClient, did syntax.DID) *Client {
	return &Client{api: api, did: did}
}

func (c *Client) DID() syntax.DID { return c.did }

func (c *Client) PutRecord(ctx context.Context, input *PutRecordInput) error {
	body := map[string]interface{}{
		"repo":       c.did.String(),
		"collection": input.Collection,
		"rkey":       input.RKey,
		"record":     input.Record,
	}
	if err := c.api.Post(ctx, syntax.NSID(methodPutRecord), body, nil); err != nil {
		return fmt.Errorf("failed to put record %s/%s: %w", input.Collection, input.RKey, err)
	}
	return nil
}

func (c *Client) DeleteRecord(ctx context.Context, input *DeleteRecordInput) error {
	body := map[string]interface{}{
		"repo":       c.did.String(),
		"collection": input.Collection,
		"rkey":       input.RKey,
	}
	if err := c.api.Post(ctx, syntax.NSID(methodDeleteRecord), body, nil); err != nil {
		return fmt.Errorf("failed to delete record %s/%s: %w", input.Collection, input.RKey, err)
	}
	return nil
}

type listRecordsOutput struct {
	Cursor  *string  `json:"cursor,omitempty"`
	Records []Record `json:"records"`
}

// ListAllRecords follows the cursor until every record of the collection is read.
func (c *Client) ListAllRecords(ctx context.Context, collection string) ([]Record, error) {
	var all []Record
	cursor := ""
	for {
		params := map[string]any{
			"repo":       c.did.String(),
			"collection": collection,
			"limit":      listPageSize,
		}
		if cursor != "" {
			params["cursor"] = cursor
		}

		var out listRecordsOutput
		if err := c.api.Get(ctx, syntax.NSID(methodListRecords), params, &out); err != nil {
			return nil, fmt.Errorf("failed to list %s records: %w", collection, err)
		}
		all = append(all, out.Records...)

		if out.Cursor == nil || *out.Cursor == "" || len(out.Records) == 0 {
			return all, nil
		}
		cursor = *out.Cursor
	}
}
