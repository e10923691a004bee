package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"inspectcore/internal/blob"
)

const archivePrefix = "protocols"

// Archived identifies one stored revision of an order's protocol.
type Archived struct {
	Key      string
	Revision int
	Info     blob.Info
}

// Key returns the archive key of a protocol revision.
func Key(orderID string, revision int) string {
	return fmt.Sprintf("%s/%s/%d.json", archivePrefix, orderID, revision)
}

func orderPrefix(orderID string) string {
	return archivePrefix + "/" + orderID + "/"
}

// Archive stores doc as the next revision of its order. Revisions count up
// from zero; an existing revision is never overwritten.
func Archive(ctx context.Context, store blob.Store, doc Document) (Archived, error) {
	if doc.OrderID == "" {
		return Archived{}, errors.New("protocol: document has no order id")
	}
	existing, err := ListArchived(ctx, store, doc.OrderID)
	if err != nil {
		return Archived{}, err
	}
	revision := len(existing)
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Archived{}, fmt.Errorf("protocol: encode: %w", err)
	}
	key := Key(doc.OrderID, revision)
	info, err := store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"order_id": doc.OrderID,
			"revision": strconv.Itoa(revision),
		},
	})
	if err != nil {
		return Archived{}, fmt.Errorf("protocol: archive %s: %w", key, err)
	}
	return Archived{Key: key, Revision: revision, Info: info}, nil
}

// ListArchived returns the archived revisions of orderID, oldest first.
func ListArchived(ctx context.Context, store blob.Store, orderID string) ([]Archived, error) {
	prefix := orderPrefix(orderID)
	infos, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("protocol: list %s: %w", prefix, err)
	}
	out := make([]Archived, 0, len(infos))
	for _, info := range infos {
		name := strings.TrimPrefix(info.Key, prefix)
		rev, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil || !strings.HasSuffix(name, ".json") {
			continue
		}
		out = append(out, Archived{Key: info.Key, Revision: rev, Info: info})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Revision < out[j].Revision })
	return out, nil
}

// LoadArchived reads back one archived revision.
func LoadArchived(ctx context.Context, store blob.Store, orderID string, revision int) (Document, error) {
	key := Key(orderID, revision)
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return Document{}, fmt.Errorf("protocol: load %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	var doc Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("protocol: decode %s: %w", key, err)
	}
	return doc, nil
}
