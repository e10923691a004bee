package protocol

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"inspectcore/internal/blob"
	blobmemory "inspectcore/internal/infra/blob/memory"
)

func TestArchiveRevisions(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	order, _ := seed(t, store)
	doc, err := Assemble(ctx, store, order.ID)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	archive := blobmemory.New()
	for want := 0; want < 3; want++ {
		got, err := Archive(ctx, archive, doc)
		if err != nil {
			t.Fatalf("archive: %v", err)
		}
		if got.Revision != want || got.Key != Key(order.ID, want) {
			t.Fatalf("expected revision %d, got %+v", want, got)
		}
		if got.Info.ContentType != "application/json" {
			t.Fatalf("unexpected content type %q", got.Info.ContentType)
		}
	}

	listed, err := ListArchived(ctx, archive, order.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 revisions, got %d", len(listed))
	}
	loaded, err := LoadArchived(ctx, archive, order.ID, 1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.OrderID != doc.OrderID || loaded.Client != doc.Client || loaded.Summary.Total != doc.Summary.Total {
		t.Fatalf("loaded document differs: %+v", loaded)
	}
}

func TestListArchivedSortsNumerically(t *testing.T) {
	ctx := context.Background()
	archive := blobmemory.New()
	for _, key := range []string{"protocols/o1/10.json", "protocols/o1/2.json", "protocols/o1/notes.txt", "protocols/o10/0.json"} {
		if _, err := archive.Put(ctx, key, strings.NewReader("{}"), blob.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	listed, err := ListArchived(ctx, archive, "o1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var revs []int
	for _, a := range listed {
		revs = append(revs, a.Revision)
	}
	if !reflect.DeepEqual(revs, []int{2, 10}) {
		t.Fatalf("unexpected revisions %v", revs)
	}
}

func TestArchiveNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	archive := blobmemory.New()
	// a gap leaves revision 1 taken while only one document is listed
	if _, err := archive.Put(ctx, Key("o1", 1), bytes.NewReader([]byte("{}")), blob.PutOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := Archive(ctx, archive, Document{OrderID: "o1"})
	if !errors.Is(err, blob.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestArchiveRequiresOrderID(t *testing.T) {
	if _, err := Archive(context.Background(), blobmemory.New(), Document{}); err == nil {
		t.Fatalf("expected error for document without order id")
	}
}

func TestLoadArchivedMissing(t *testing.T) {
	_, err := LoadArchived(context.Background(), blobmemory.New(), "o1", 0)
	if !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
